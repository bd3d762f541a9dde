package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/channelhub/internal/common"
)

// ServiceName is the fully-qualified gRPC service name. Messages are
// google.protobuf.Struct values keyed like the HTTP JSON bodies.
const ServiceName = common.AccountServiceName

// AccountServiceServer is the server API for the account service.
type AccountServiceServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CurrentUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAvatar(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCoverImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(AccountServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// FullMethod returns the wire name of a method.
func FullMethod(method string) string {
	return common.AccountMethod(method)
}

func unary(method string, fn unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AccountServiceServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", AccountServiceServer.Register),
		unary("Login", AccountServiceServer.Login),
		unary("RefreshSession", AccountServiceServer.RefreshSession),
		unary("Logout", AccountServiceServer.Logout),
		unary("ChangePassword", AccountServiceServer.ChangePassword),
		unary("CurrentUser", AccountServiceServer.CurrentUser),
		unary("UpdateAccount", AccountServiceServer.UpdateAccount),
		unary("UpdateAvatar", AccountServiceServer.UpdateAvatar),
		unary("UpdateCoverImage", AccountServiceServer.UpdateCoverImage),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "channelhub/accounts/v1/accounts.proto",
}

// RegisterAccountServiceServer registers srv on s.
func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
