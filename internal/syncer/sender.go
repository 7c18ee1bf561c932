package syncer

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/nguyentranbao-ct/chat-node/internal/config"
	"github.com/nguyentranbao-ct/chat-node/internal/models"
	"github.com/nguyentranbao-ct/chat-node/pkg/util"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sender performs the remote call carrying one batch.
type Sender interface {
	SendBatch(ctx context.Context, addr string, batch models.EventBatch) error
}

type httpSender struct {
	client *resty.Client
	self   models.NodeID
}

func NewHTTPSender(conf *config.Config) Sender {
	return &httpSender{
		client: util.NewRestyClient(conf.Sync.SendTimeout),
		self:   models.NodeID(conf.Node.ID),
	}
}

// SendBatch posts the batch to the destination node. Errors come back as
// grpc-coded statuses so the worker's classifier can separate transient
// failures from terminal rejections.
func (s *httpSender) SendBatch(ctx context.Context, addr string, batch models.EventBatch) error {
	req := models.ApplyBatchRequest{
		SourceNodeID: s.self,
		Items:        batch.Items,
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(addr + "/internal/v1/events/batch")

	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, rawResponse(resp), err)
	switch {
	case err != nil && retry:
		return status.Errorf(codes.Unavailable, "deliver to %s: %v", batch.Destination, err)
	case err != nil:
		return status.Errorf(codes.InvalidArgument, "deliver to %s: %v", batch.Destination, err)
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusTooManyRequests:
		return status.Errorf(codes.ResourceExhausted, "deliver to %s: throttled", batch.Destination)
	case retry:
		return status.Errorf(codes.Unavailable, "deliver to %s: http %d", batch.Destination, resp.StatusCode())
	default:
		return status.Errorf(codes.InvalidArgument, "deliver to %s: http %d: %.200s",
			batch.Destination, resp.StatusCode(), resp.String())
	}
}

func rawResponse(resp *resty.Response) *http.Response {
	if resp == nil {
		return nil
	}
	return resp.RawResponse
}
