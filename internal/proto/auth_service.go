// Package proto describes the gophauth.AuthService gRPC service. Messages
// are google.protobuf.Struct values, so the descriptor and stubs are
// written out here instead of generated.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gophauth.AuthService"

const (
	AuthService_Register_FullMethodName      = "/gophauth.AuthService/Register"
	AuthService_Login_FullMethodName         = "/gophauth.AuthService/Login"
	AuthService_Refresh_FullMethodName       = "/gophauth.AuthService/Refresh"
	AuthService_DeleteAccount_FullMethodName = "/gophauth.AuthService/DeleteAccount"
	AuthService_WhoAmI_FullMethodName        = "/gophauth.AuthService/WhoAmI"
	AuthService_Ping_FullMethodName          = "/gophauth.AuthService/Ping"
)

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedAuthServiceServer can be embedded to have forward compatible implementations.
type UnimplementedAuthServiceServer struct{}

func (UnimplementedAuthServiceServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedAuthServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedAuthServiceServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedAuthServiceServer) DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteAccount not implemented")
}
func (UnimplementedAuthServiceServer) WhoAmI(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method WhoAmI not implemented")
}
func (UnimplementedAuthServiceServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

type unaryCall func(AuthServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthService_ServiceDesc is the grpc.ServiceDesc for AuthService.
var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(AuthService_Register_FullMethodName, AuthServiceServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(AuthService_Login_FullMethodName, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(AuthService_Refresh_FullMethodName, AuthServiceServer.Refresh)},
		{MethodName: "DeleteAccount", Handler: unaryHandler(AuthService_DeleteAccount_FullMethodName, AuthServiceServer.DeleteAccount)},
		{MethodName: "WhoAmI", Handler: unaryHandler(AuthService_WhoAmI_FullMethodName, AuthServiceServer.WhoAmI)},
		{MethodName: "Ping", Handler: unaryHandler(AuthService_Ping_FullMethodName, AuthServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/auth_service",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

// AuthServiceClient is the client API for AuthService.
type AuthServiceClient interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc}
}

func (c *authServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Register_FullMethodName, in, opts...)
}

func (c *authServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Login_FullMethodName, in, opts...)
}

func (c *authServiceClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Refresh_FullMethodName, in, opts...)
}

func (c *authServiceClient) DeleteAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_DeleteAccount_FullMethodName, in, opts...)
}

func (c *authServiceClient) WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_WhoAmI_FullMethodName, in, opts...)
}

func (c *authServiceClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, AuthService_Ping_FullMethodName, in, opts...)
}
