package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// methods that require a valid access token
var authenticatedMethods = map[string]bool{
	pb.AuthService_DeleteAccount_FullMethodName: true,
	pb.AuthService_WhoAmI_FullMethodName:        true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if authenticatedMethods[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		principal, err := s.auth.Authenticate(ctx, accessToken)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
			}
			return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
		}

		ctx = context.WithValue(ctx, principalKey, principal)
	}

	return handler(ctx, req)
}

// RequestIDHeader carries the request id in both directions. A caller
// supplied id is kept, otherwise one is generated.
const RequestIDHeader = "x-request-id"

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	id := requestID(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

	resp, err := handler(ctx, req)
	s.logger.With("request_id", id).Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

func principalFromContext(ctx context.Context) (*services.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*services.Principal)
	return p, ok && p != nil
}
