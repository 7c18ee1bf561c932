package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/internal/usecase"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
)

type ChatController interface {
	SendMessage(c echo.Context) error
	EditMessage(c echo.Context) error
	DeleteMessage(c echo.Context) error
	AddReaction(c echo.Context) error
	RemoveReaction(c echo.Context) error
	RegisterPollVote(c echo.Context) error
	EndPoll(c echo.Context) error
	FollowThread(c echo.Context) error
	UnfollowThread(c echo.Context) error
	StartVideoCall(c echo.Context) error
	JoinVideoCall(c echo.Context) error
	EndVideoCall(c echo.Context) error
	SubmitProposal(c echo.Context) error
	RegisterProposalVote(c echo.Context) error
	ResolveProposal(c echo.Context) error
	UpdateMembers(c echo.Context) error

	GetEvents(c echo.Context) error
	GetEventsWindow(c echo.Context) error
	GetEventsByIndexes(c echo.Context) error
	SearchMessages(c echo.Context) error
	GetThreadPreviews(c echo.Context) error
	GetThreadEvents(c echo.Context) error
	GetLatestIndex(c echo.Context) error
}

type chatController struct {
	chatUsecase usecase.ChatUsecase
}

func NewChatController(chatUsecase usecase.ChatUsecase) ChatController {
	return &chatController{
		chatUsecase: chatUsecase,
	}
}

func chatID(c echo.Context) models.ChatID {
	return models.ChatID(c.Param("chat_id"))
}

func eventIndexParam(c echo.Context, name string) (models.EventIndex, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return models.EventIndex(v), nil
}

type SendMessageRequest struct {
	Sender     string             `json:"sender" validate:"required"`
	Text       string             `json:"text"`
	ExpiresAt  *int64             `json:"expires_at,omitempty"`
	Poll       *models.PollConfig `json:"poll,omitempty"`
	ThreadRoot *uint64            `json:"thread_root,omitempty"`
}

func (cc *chatController) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" && req.Poll == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "message text or poll required")
	}

	input := usecase.SendMessageInput{
		Sender:    models.UserID(req.Sender),
		Text:      req.Text,
		ExpiresAt: req.ExpiresAt,
		Poll:      req.Poll,
	}
	if req.ThreadRoot != nil {
		root := models.EventIndex(*req.ThreadRoot)
		input.ThreadRoot = &root
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.SendMessage(ctx, chatID(c), input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, event)
}

type EditMessageRequest struct {
	Editor string `json:"editor" validate:"required"`
	Text   string `json:"text" validate:"required"`
}

func (cc *chatController) EditMessage(c echo.Context) error {
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.EditMessage(ctx, chatID(c), msgID, models.UserID(req.Editor), req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type DeleteMessageRequest struct {
	DeletedBy string `json:"deleted_by" validate:"required"`
}

func (cc *chatController) DeleteMessage(c echo.Context) error {
	var req DeleteMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.DeleteMessage(ctx, chatID(c), msgID, models.UserID(req.DeletedBy))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type ReactionRequest struct {
	User     string `json:"user" validate:"required"`
	Reaction string `json:"reaction" validate:"required"`
}

func (cc *chatController) AddReaction(c echo.Context) error {
	var req ReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.AddReaction(ctx, chatID(c), msgID, models.UserID(req.User), req.Reaction)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

func (cc *chatController) RemoveReaction(c echo.Context) error {
	var req ReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.RemoveReaction(ctx, chatID(c), msgID, models.UserID(req.User), req.Reaction)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type PollVoteRequest struct {
	Voter  string `json:"voter" validate:"required"`
	Option *int   `json:"option" validate:"required"`
}

func (cc *chatController) RegisterPollVote(c echo.Context) error {
	var req PollVoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.RegisterPollVote(ctx, chatID(c), msgID, models.UserID(req.Voter), util.Val(req.Option))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type EndPollRequest struct {
	EndedBy string `json:"ended_by" validate:"required"`
}

func (cc *chatController) EndPoll(c echo.Context) error {
	var req EndPollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	msgID := models.MessageID(c.Param("message_id"))
	event, err := cc.chatUsecase.EndPoll(ctx, chatID(c), msgID, models.UserID(req.EndedBy))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type ThreadFollowRequest struct {
	User string `json:"user" validate:"required"`
}

func (cc *chatController) FollowThread(c echo.Context) error {
	var req ThreadFollowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	root, err := eventIndexParam(c, "root")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.FollowThread(ctx, chatID(c), root, models.UserID(req.User))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

func (cc *chatController) UnfollowThread(c echo.Context) error {
	var req ThreadFollowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	root, err := eventIndexParam(c, "root")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.UnfollowThread(ctx, chatID(c), root, models.UserID(req.User))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type VideoCallRequest struct {
	User string `json:"user" validate:"required"`
}

func (cc *chatController) StartVideoCall(c echo.Context) error {
	var req VideoCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.StartVideoCall(ctx, chatID(c), models.UserID(req.User))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, event)
}

func (cc *chatController) JoinVideoCall(c echo.Context) error {
	var req VideoCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.JoinVideoCall(ctx, chatID(c), models.UserID(req.User))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

func (cc *chatController) EndVideoCall(c echo.Context) error {
	var req VideoCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.EndVideoCall(ctx, chatID(c), models.UserID(req.User))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type SubmitProposalRequest struct {
	Proposer string `json:"proposer" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Summary  string `json:"summary"`
}

func (cc *chatController) SubmitProposal(c echo.Context) error {
	var req SubmitProposalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	event, err := cc.chatUsecase.SubmitProposal(ctx, chatID(c), models.UserID(req.Proposer), req.Title, req.Summary)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, event)
}

type ProposalVoteRequest struct {
	Voter string `json:"voter" validate:"required"`
	Adopt *bool  `json:"adopt" validate:"required"`
}

func (cc *chatController) RegisterProposalVote(c echo.Context) error {
	var req ProposalVoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	proposalID := c.Param("proposal_id")
	event, err := cc.chatUsecase.RegisterProposalVote(ctx, chatID(c), proposalID, models.UserID(req.Voter), util.Val(req.Adopt))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type ResolveProposalRequest struct {
	Adopted *bool `json:"adopted" validate:"required"`
}

func (cc *chatController) ResolveProposal(c echo.Context) error {
	var req ResolveProposalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	proposalID := c.Param("proposal_id")
	event, err := cc.chatUsecase.ResolveProposal(ctx, chatID(c), proposalID, util.Val(req.Adopted))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

type UpdateMembersRequest struct {
	Joined []string `json:"joined"`
	Left   []string `json:"left"`
}

func (cc *chatController) UpdateMembers(c echo.Context) error {
	var req UpdateMembersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Joined) == 0 && len(req.Left) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "joined or left members required")
	}

	toUserID := func(id string) models.UserID { return models.UserID(id) }

	ctx := c.Request().Context()
	if err := cc.chatUsecase.UpdateMembers(ctx, chatID(c),
		util.ConvertList(req.Joined, toUserID),
		util.ConvertList(req.Left, toUserID),
	); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}

func (cc *chatController) GetEvents(c echo.Context) error {
	lo, err := queryIndex(c, "from", 0)
	if err != nil {
		return err
	}
	hi, err := queryIndex(c, "to", ^uint64(0))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	events, err := cc.chatUsecase.Events(ctx, chatID(c), lo, hi)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (cc *chatController) GetEventsWindow(c echo.Context) error {
	mid, err := queryIndex(c, "mid", 0)
	if err != nil {
		return err
	}
	if c.QueryParam("mid") == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mid query param required")
	}
	before := queryInt(c, "before", 25)
	after := queryInt(c, "after", 25)

	ctx := c.Request().Context()
	events, err := cc.chatUsecase.EventsWindow(ctx, chatID(c), mid, before, after)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (cc *chatController) GetEventsByIndexes(c echo.Context) error {
	raw := c.QueryParam("indexes")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "indexes query param required")
	}
	parts := strings.Split(raw, ",")
	indexes := make([]models.EventIndex, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid index "+part)
		}
		indexes = append(indexes, models.EventIndex(v))
	}

	ctx := c.Request().Context()
	lookups, err := cc.chatUsecase.GetByIndexes(ctx, chatID(c), indexes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, lookups)
}

func (cc *chatController) SearchMessages(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q query param required")
	}
	limit := queryInt(c, "limit", 20)

	var senders []models.UserID
	if raw := c.QueryParam("senders"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			senders = append(senders, models.UserID(strings.TrimSpace(s)))
		}
	}

	ctx := c.Request().Context()
	results, err := cc.chatUsecase.Search(ctx, chatID(c), query, limit, senders)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (cc *chatController) GetThreadPreviews(c echo.Context) error {
	ctx := c.Request().Context()
	previews, err := cc.chatUsecase.ThreadPreviews(ctx, chatID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, previews)
}

func (cc *chatController) GetThreadEvents(c echo.Context) error {
	root, err := eventIndexParam(c, "root")
	if err != nil {
		return err
	}
	lo, err := queryIndex(c, "from", 0)
	if err != nil {
		return err
	}
	hi, err := queryIndex(c, "to", ^uint64(0))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	events, err := cc.chatUsecase.ThreadEvents(ctx, chatID(c), root, lo, hi)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (cc *chatController) GetLatestIndex(c echo.Context) error {
	ctx := c.Request().Context()
	index, ok, err := cc.chatUsecase.LatestEventIndex(ctx, chatID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"latest_index": index,
		"has_events":   ok,
	})
}

func queryIndex(c echo.Context, name string, def uint64) (models.EventIndex, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return models.EventIndex(def), nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return models.EventIndex(v), nil
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	return def
}
