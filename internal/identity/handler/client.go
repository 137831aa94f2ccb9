package handler

import (
	"context"

	"google.golang.org/grpc"

	"user-session-service/internal/server/codec"
)

// Client calls identity.v1.IdentityService with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *Client) CheckTokenExpiry(ctx context.Context, in *CheckTokenExpiryRequest, opts ...grpc.CallOption) (*CheckTokenExpiryResponse, error) {
	return invoke[CheckTokenExpiryResponse](ctx, c.cc, MethodCheckTokenExpiry, in, opts)
}

func (c *Client) CreateIdentity(ctx context.Context, in *CreateIdentityRequest, opts ...grpc.CallOption) (*IdentityResponse, error) {
	return invoke[IdentityResponse](ctx, c.cc, MethodCreateIdentity, in, opts)
}

func (c *Client) CheckIdentityPresent(ctx context.Context, in *CheckIdentityPresentRequest, opts ...grpc.CallOption) (*CheckIdentityPresentResponse, error) {
	return invoke[CheckIdentityPresentResponse](ctx, c.cc, MethodCheckIdentityPresent, in, opts)
}

func (c *Client) GetMe(ctx context.Context, in *GetMeRequest, opts ...grpc.CallOption) (*IdentityResponse, error) {
	return invoke[IdentityResponse](ctx, c.cc, MethodGetMe, in, opts)
}

func (c *Client) GetIdentity(ctx context.Context, in *GetIdentityRequest, opts ...grpc.CallOption) (*IdentityResponse, error) {
	return invoke[IdentityResponse](ctx, c.cc, MethodGetIdentity, in, opts)
}

func (c *Client) ListIdentities(ctx context.Context, in *ListIdentitiesRequest, opts ...grpc.CallOption) (*ListIdentitiesResponse, error) {
	return invoke[ListIdentitiesResponse](ctx, c.cc, MethodListIdentities, in, opts)
}

func (c *Client) UpdateIdentity(ctx context.Context, in *UpdateIdentityRequest, opts ...grpc.CallOption) (*IdentityResponse, error) {
	return invoke[IdentityResponse](ctx, c.cc, MethodUpdateIdentity, in, opts)
}

func (c *Client) DeleteIdentity(ctx context.Context, in *DeleteIdentityRequest, opts ...grpc.CallOption) (*DeleteIdentityResponse, error) {
	return invoke[DeleteIdentityResponse](ctx, c.cc, MethodDeleteIdentity, in, opts)
}
