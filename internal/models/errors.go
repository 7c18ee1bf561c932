package models

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound     = status.Errorf(codes.NotFound, "not found")
	ErrInvalidState = status.Errorf(codes.FailedPrecondition, "invalid state")

	ErrMessageDeleted  = status.Errorf(codes.FailedPrecondition, "message deleted")
	ErrPollEnded       = status.Errorf(codes.FailedPrecondition, "poll already ended")
	ErrInvalidOption   = status.Errorf(codes.FailedPrecondition, "invalid poll option")
	ErrCallInProgress  = status.Errorf(codes.FailedPrecondition, "video call already in progress")
	ErrNoActiveCall    = status.Errorf(codes.FailedPrecondition, "no video call in progress")
	ErrProposalClosed  = status.Errorf(codes.FailedPrecondition, "proposal already resolved")
	ErrNotMessageEvent = status.Errorf(codes.FailedPrecondition, "event is not a message")
)

func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
