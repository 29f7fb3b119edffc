package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Описание сервиса auth.v1.Identity собрано вручную на well-known типах:
// запрос — StringValue с access-токеном, ответ — Struct с полями identity.
const (
	IdentityServiceName  = "auth.v1.Identity"
	IntrospectFullMethod = "/" + IdentityServiceName + "/Introspect"
)

// IdentityServer — серверная часть auth.v1.Identity.
type IdentityServer interface {
	Introspect(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

// IdentityServiceDesc — дескриптор для grpc.Server.RegisterService.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Introspect",
			Handler:    introspectHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/identity.proto",
}

// RegisterIdentityServer регистрирует реализацию на gRPC-сервере.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(IdentityServer).Introspect(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IntrospectFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

// IdentityClient — клиент auth.v1.Identity для других сервисов приложения.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

// Introspect отправляет access-токен на проверку.
func (c *IdentityClient) Introspect(ctx context.Context, accessToken string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IntrospectFullMethod, wrapperspb.String(accessToken), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
