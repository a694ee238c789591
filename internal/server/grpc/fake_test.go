package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type fakeAuth struct {
	RegisterFunc     func(ctx context.Context, req services.RegistrationRequest) (*models.User, error)
	LoginFunc        func(ctx context.Context, email string, password []byte) (*services.LoginResult, error)
	RefreshFunc      func(ctx context.Context, token string) (*services.TokenPair, error)
	DeleteByIDFunc   func(ctx context.Context, userID string, password []byte) error
	AuthenticateFunc func(ctx context.Context, token string) (*services.Principal, error)
}

func (f *fakeAuth) Register(ctx context.Context, req services.RegistrationRequest) (*models.User, error) {
	return f.RegisterFunc(ctx, req)
}

func (f *fakeAuth) Login(ctx context.Context, email string, password []byte) (*services.LoginResult, error) {
	return f.LoginFunc(ctx, email, password)
}

func (f *fakeAuth) Refresh(ctx context.Context, token string) (*services.TokenPair, error) {
	return f.RefreshFunc(ctx, token)
}

func (f *fakeAuth) DeleteByID(ctx context.Context, userID string, password []byte) error {
	return f.DeleteByIDFunc(ctx, userID, password)
}

func (f *fakeAuth) Authenticate(ctx context.Context, token string) (*services.Principal, error) {
	return f.AuthenticateFunc(ctx, token)
}
