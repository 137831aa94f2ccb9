package handler

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "identity.v1.IdentityService"

// Full method names, as seen by interceptors.
const (
	MethodLogin                = "/" + ServiceName + "/Login"
	MethodCheckTokenExpiry     = "/" + ServiceName + "/CheckTokenExpiry"
	MethodCreateIdentity       = "/" + ServiceName + "/CreateIdentity"
	MethodCheckIdentityPresent = "/" + ServiceName + "/CheckIdentityPresent"
	MethodGetMe                = "/" + ServiceName + "/GetMe"
	MethodGetIdentity          = "/" + ServiceName + "/GetIdentity"
	MethodListIdentities       = "/" + ServiceName + "/ListIdentities"
	MethodUpdateIdentity       = "/" + ServiceName + "/UpdateIdentity"
	MethodDeleteIdentity       = "/" + ServiceName + "/DeleteIdentity"
)

// PublicMethods need no access token.
var PublicMethods = []string{MethodLogin, MethodCheckTokenExpiry, MethodCreateIdentity, MethodCheckIdentityPresent}

// AdminMethods require the admin role.
var AdminMethods = []string{MethodListIdentities, MethodUpdateIdentity, MethodDeleteIdentity}

// IdentityServiceServer is the server API for identity.v1.IdentityService.
type IdentityServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	CheckTokenExpiry(context.Context, *CheckTokenExpiryRequest) (*CheckTokenExpiryResponse, error)
	CreateIdentity(context.Context, *CreateIdentityRequest) (*IdentityResponse, error)
	CheckIdentityPresent(context.Context, *CheckIdentityPresentRequest) (*CheckIdentityPresentResponse, error)
	GetMe(context.Context, *GetMeRequest) (*IdentityResponse, error)
	GetIdentity(context.Context, *GetIdentityRequest) (*IdentityResponse, error)
	ListIdentities(context.Context, *ListIdentitiesRequest) (*ListIdentitiesResponse, error)
	UpdateIdentity(context.Context, *UpdateIdentityRequest) (*IdentityResponse, error)
	DeleteIdentity(context.Context, *DeleteIdentityRequest) (*DeleteIdentityResponse, error)
}

var _ IdentityServiceServer = (*Server)(nil)

// ServiceDesc describes identity.v1.IdentityService. Messages are JSON (see internal/server/codec).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", IdentityServiceServer.Login),
		unary("CheckTokenExpiry", IdentityServiceServer.CheckTokenExpiry),
		unary("CreateIdentity", IdentityServiceServer.CreateIdentity),
		unary("CheckIdentityPresent", IdentityServiceServer.CheckIdentityPresent),
		unary("GetMe", IdentityServiceServer.GetMe),
		unary("GetIdentity", IdentityServiceServer.GetIdentity),
		unary("ListIdentities", IdentityServiceServer.ListIdentities),
		unary("UpdateIdentity", IdentityServiceServer.UpdateIdentity),
		unary("DeleteIdentity", IdentityServiceServer.DeleteIdentity),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterIdentityServiceServer registers srv with s.
func RegisterIdentityServiceServer(s grpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](name string, call func(IdentityServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IdentityServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IdentityServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
