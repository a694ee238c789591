package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var statusBySentinel = []struct {
	err  error
	code codes.Code
}{
	{common.ErrInvalidPassword, codes.PermissionDenied},
	{common.ErrAccountNotFound, codes.PermissionDenied},
	{common.ErrAccountDisabled, codes.PermissionDenied},
	{common.ErrUnknownProvider, codes.PermissionDenied},
	{common.ErrTooManyAttempts, codes.ResourceExhausted},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrorAlreadyExists, codes.AlreadyExists},
}

// toStatus converts a service error into a gRPC status. Only sentinel
// messages reach the caller; anything unclassified becomes Internal.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var regErr *services.RegistrationError
	if errors.As(err, &regErr) {
		s.logger.Error(ctx, "registration incomplete", "user_id", regErr.User.ID, "error", err)
		return status.Error(codes.Aborted, "registration incomplete: "+common.ErrProviderCreate.Error())
	}

	var delErr *services.DeletionError
	if errors.As(err, &delErr) {
		s.logger.Error(ctx, "deletion incomplete", "user_id", delErr.User.ID, "error", err)
		return status.Error(codes.Aborted, "deletion incomplete: "+common.ErrProviderDelete.Error())
	}

	if errors.Is(err, common.ErrorValidation) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return status.Error(m.code, m.err.Error())
		}
	}

	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
