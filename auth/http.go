package auth

import (
	"context"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/transport"
)

// Backend endpoints.
const (
	PathLogin                = "/auth/login"
	PathRegister             = "/auth/register"
	PathSocial               = "/auth/social"
	PathVerifyOTP            = "/auth/verify-otp"
	PathProfile              = "/auth/profile"
	PathResetPassword        = "/auth/reset-password"
	PathConfirmResetPassword = "/auth/confirm-reset-password"
)

// HTTPBackend implements Backend over the REST API.
type HTTPBackend struct {
	client *transport.Client
}

// compile-time check
var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a Backend that talks to the API through client.
func NewHTTPBackend(client *transport.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func (b *HTTPBackend) Login(ctx context.Context, req learnhub.LoginRequest) (*learnhub.AuthResponse, error) {
	return b.exchange(ctx, PathLogin, req)
}

func (b *HTTPBackend) Register(ctx context.Context, req learnhub.RegisterRequest) (*learnhub.AuthResponse, error) {
	return b.exchange(ctx, PathRegister, req)
}

func (b *HTTPBackend) Social(ctx context.Context, req learnhub.SocialAuthRequest) (*learnhub.AuthResponse, error) {
	return b.exchange(ctx, PathSocial, req)
}

func (b *HTTPBackend) VerifyOTP(ctx context.Context, req learnhub.VerifyOTPRequest) (*learnhub.AuthResponse, error) {
	return b.exchange(ctx, PathVerifyOTP, req)
}

func (b *HTTPBackend) Profile(ctx context.Context) (*learnhub.User, error) {
	return transport.Call[*learnhub.User](ctx, b.client, transport.Get(PathProfile, nil)).Unwrap()
}

func (b *HTTPBackend) ResetPassword(ctx context.Context, email string) error {
	return transport.Exec(ctx, b.client, transport.Post(PathResetPassword, map[string]string{"email": email}))
}

func (b *HTTPBackend) ConfirmResetPassword(ctx context.Context, req learnhub.ConfirmResetPasswordRequest) error {
	return transport.Exec(ctx, b.client, transport.Post(PathConfirmResetPassword, req))
}

func (b *HTTPBackend) exchange(ctx context.Context, path string, body any) (*learnhub.AuthResponse, error) {
	return transport.Call[*learnhub.AuthResponse](ctx, b.client, transport.Post(path, body)).Unwrap()
}
