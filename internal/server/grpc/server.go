// Package grpc exposes AuthService over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AuthService is the part of services.AuthService the transport needs.
type AuthService interface {
	Register(ctx context.Context, req services.RegistrationRequest) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	DeleteByID(ctx context.Context, userID string, password []byte) error
	Authenticate(ctx context.Context, accessToken string) (*services.Principal, error)
}

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address string
	auth    AuthService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, as AuthService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	pb.RegisterAuthServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
