package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/carousell/ct-go/pkg/logger"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/chat-node/internal/server/middleware"
	"go.uber.org/fx"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
	chats ChatController,
	sync SyncController,
) {
	e := echo.New()
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = errorHandler()

	logConfig := pkgmdw.LogRequestConfig{
		Logger: logger.MustNamed("http"),
		Enabled: func(c echo.Context) bool {
			uri := c.Request().RequestURI
			return uri != "/health" && uri != "/metrics"
		},
	}

	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return nil
		},
	}))

	e.GET("/health", handler.Health)

	internal := e.Group("/internal/v1")
	internal.POST("/events/batch", sync.ApplyBatch)

	api := e.Group("/api/v1/chats/:chat_id")
	api.POST("/messages", chats.SendMessage)
	api.PUT("/messages/:message_id", chats.EditMessage)
	api.DELETE("/messages/:message_id", chats.DeleteMessage)
	api.POST("/messages/:message_id/reactions", chats.AddReaction)
	api.DELETE("/messages/:message_id/reactions", chats.RemoveReaction)
	api.POST("/messages/:message_id/votes", chats.RegisterPollVote)
	api.POST("/messages/:message_id/end-poll", chats.EndPoll)
	api.POST("/threads/:root/follow", chats.FollowThread)
	api.POST("/threads/:root/unfollow", chats.UnfollowThread)
	api.POST("/calls/start", chats.StartVideoCall)
	api.POST("/calls/join", chats.JoinVideoCall)
	api.POST("/calls/end", chats.EndVideoCall)
	api.POST("/proposals", chats.SubmitProposal)
	api.POST("/proposals/:proposal_id/votes", chats.RegisterProposalVote)
	api.POST("/proposals/:proposal_id/resolve", chats.ResolveProposal)
	api.PUT("/members", chats.UpdateMembers)

	api.GET("/events", chats.GetEvents)
	api.GET("/events/window", chats.GetEventsWindow)
	api.GET("/events/lookup", chats.GetEventsByIndexes)
	api.GET("/search", chats.SearchMessages)
	api.GET("/threads", chats.GetThreadPreviews)
	api.GET("/threads/:root/events", chats.GetThreadEvents)
	api.GET("/latest", chats.GetLatestIndex)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func errorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			c.Logger().Error(err)
		} else {
			he = &echo.HTTPError{
				Code:    http.StatusInternalServerError,
				Message: http.StatusText(http.StatusInternalServerError),
			}
		}

		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(he.Code)
			} else {
				err = c.JSON(he.Code, he)
			}
			if err != nil {
				c.Logger().Error(err)
			}
		}
	}
}
