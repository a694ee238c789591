package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	password := []byte(pb.String(req, "password"))
	defer common.WipeByteArray(password)

	user, err := s.auth.Register(ctx, services.RegistrationRequest{
		Email:     pb.String(req, "email"),
		Password:  password,
		FirstName: pb.String(req, "first_name"),
		LastName:  pb.String(req, "last_name"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", user.ID)
	return pb.Message(map[string]string{
		"id":         user.ID,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	password := []byte(pb.String(req, "password"))
	defer common.WipeByteArray(password)

	result, err := s.auth.Login(ctx, pb.String(req, "email"), password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := tokenMessage(&result.Tokens)
	resp.Fields["user_id"] = structpb.NewStringValue(result.User.ID)
	return resp, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	pair, err := s.auth.Refresh(ctx, pb.String(req, "refresh_token"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return tokenMessage(pair), nil
}

func (s *GRPCServer) DeleteAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	principal, ok := principalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	password := []byte(pb.String(req, "password"))
	defer common.WipeByteArray(password)

	if err := s.auth.DeleteByID(ctx, principal.UserID, password); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Deleted", "user_id", principal.UserID)
	return pb.Message(map[string]string{"status": "OK"}), nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	principal, ok := principalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	return pb.Message(map[string]string{
		"user_id": principal.UserID,
		"email":   principal.Email,
	}), nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	return pb.Message(map[string]string{"status": "OK"}), nil

}

func tokenMessage(p *services.TokenPair) *structpb.Struct {
	return pb.Message(map[string]string{
		"access_token":       p.Access,
		"refresh_token":      p.Refresh,
		"access_expires_at":  pb.FormatTime(p.AccessExpiresAt),
		"refresh_expires_at": pb.FormatTime(p.RefreshExpiresAt),
	})
}
