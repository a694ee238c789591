package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	session      *Session
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// accessTokenInterceptor attaches the access token and, when the server
// reports it expired, refreshes the pair once and retries the call.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil || method == pb.AuthService_Refresh_FullMethodName {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refresh == "" {
		return err
	}

	resp, rerr := s.client.Refresh(ctx, pb.Message(map[string]string{"refresh_token": refresh}))
	if rerr != nil {
		return err
	}
	s.storeTokens(resp)

	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func (s *GRPCClient) storeTokens(resp *structpb.Struct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = pb.String(resp, "access_token")
	s.refreshToken = pb.String(resp, "refresh_token")
	if s.session != nil {
		s.session.AccessExpiresAt = pb.Time(resp, "access_expires_at")
		s.session.RefreshExpiresAt = pb.Time(resp, "refresh_expires_at")
	}
}

func NewGRPCClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, r Registration) (*Account, error) {

	req := pb.Message(map[string]string{
		"email":      r.Email,
		"password":   string(r.Password),
		"first_name": r.FirstName,
		"last_name":  r.LastName,
	})

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &Account{
		ID:        pb.String(resp, "id"),
		Email:     pb.String(resp, "email"),
		FirstName: pb.String(resp, "first_name"),
		LastName:  pb.String(resp, "last_name"),
	}, nil
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) (*Session, error) {

	req := pb.Message(map[string]string{"email": email, "password": string(password)})

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	session := &Session{UserID: pb.String(resp, "user_id"), Email: common.NormalizeEmail(email)}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.storeTokens(resp)

	out := *session
	return &out, nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*Session, error) {

	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.WhoAmI(ctx, pb.Message(nil))
	if err != nil {
		return nil, s.mapError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := Session{UserID: pb.String(resp, "user_id"), Email: pb.String(resp, "email")}
	if s.session != nil {
		out.AccessExpiresAt = s.session.AccessExpiresAt
		out.RefreshExpiresAt = s.session.RefreshExpiresAt
	}
	return &out, nil
}

// DeleteAccount removes the logged-in account and forgets the session.
func (s *GRPCClient) DeleteAccount(ctx context.Context, password []byte) error {

	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}

	_, err := s.client.DeleteAccount(ctx, pb.Message(map[string]string{"password": string(password)}))
	if err != nil {
		err = s.mapError(err)
		// The local record is already gone once the server reports a partial delete.
		if errors.Is(err, ErrIncomplete) {
			s.Logout()
		}
		return err
	}

	s.Logout()
	return nil
}

func (s *GRPCClient) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.session = nil
}

func (s *GRPCClient) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, pb.Message(nil))
	if err != nil {
		return s.mapError(err)
	}

	if pb.String(resp, "status") != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied, codes.InvalidArgument, codes.AlreadyExists, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Aborted:
		return fmt.Errorf("%w: %s", ErrIncomplete, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
