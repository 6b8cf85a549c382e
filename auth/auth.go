// Package auth provides the AuthService implementation.
package auth

import (
	"context"
	"errors"
	"fmt"

	learnhub "github.com/chimerakang/learnhub-go"
)

// Backend defines the contract for pluggable authentication backends.
type Backend interface {
	Login(ctx context.Context, req learnhub.LoginRequest) (*learnhub.AuthResponse, error)
	Register(ctx context.Context, req learnhub.RegisterRequest) (*learnhub.AuthResponse, error)
	Social(ctx context.Context, req learnhub.SocialAuthRequest) (*learnhub.AuthResponse, error)
	VerifyOTP(ctx context.Context, req learnhub.VerifyOTPRequest) (*learnhub.AuthResponse, error)
	Profile(ctx context.Context) (*learnhub.User, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmResetPassword(ctx context.Context, req learnhub.ConfirmResetPasswordRequest) error
}

// Service implements learnhub.AuthService with a configurable backend.
// Requests are validated before anything is sent.
type Service struct {
	backend Backend
}

// compile-time check
var _ learnhub.AuthService = (*Service)(nil)

// New creates a new AuthService with the given backend.
func New(backend Backend) *Service {
	return &Service{backend: backend}
}

// Login exchanges email/password credentials for a session.
func (s *Service) Login(ctx context.Context, req learnhub.LoginRequest) (*learnhub.AuthResponse, error) {
	if err := learnhub.Validate(req); err != nil {
		return nil, err
	}
	return checkAuth(s.backend.Login(ctx, req))
}

// Register creates an account and opens a session for it.
func (s *Service) Register(ctx context.Context, req learnhub.RegisterRequest) (*learnhub.AuthResponse, error) {
	if err := learnhub.Validate(req); err != nil {
		return nil, err
	}
	return checkAuth(s.backend.Register(ctx, req))
}

// LoginWithSocial exchanges a third-party assertion for a session.
func (s *Service) LoginWithSocial(ctx context.Context, req learnhub.SocialAuthRequest) (*learnhub.AuthResponse, error) {
	if err := learnhub.Validate(req); err != nil {
		return nil, err
	}
	return checkAuth(s.backend.Social(ctx, req))
}

// VerifyOTP confirms a one-time passcode and opens a session.
func (s *Service) VerifyOTP(ctx context.Context, req learnhub.VerifyOTPRequest) (*learnhub.AuthResponse, error) {
	if err := learnhub.Validate(req); err != nil {
		return nil, err
	}
	return checkAuth(s.backend.VerifyOTP(ctx, req))
}

// Profile returns the user the stored token belongs to.
func (s *Service) Profile(ctx context.Context) (*learnhub.User, error) {
	u, err := s.backend.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("learnhub/auth: %w", err)
	}
	if u == nil || u.ID == 0 {
		return nil, &learnhub.Error{Kind: learnhub.KindDecode, Message: "profile response has no user"}
	}
	return u, nil
}

// ResetPassword asks the backend to email a reset link.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	if email == "" {
		return &learnhub.Error{Kind: learnhub.KindInvalid, Message: "Email is required"}
	}
	if err := s.backend.ResetPassword(ctx, email); err != nil {
		return fmt.Errorf("learnhub/auth: %w", err)
	}
	return nil
}

// ConfirmResetPassword sets a new password with a reset token.
func (s *Service) ConfirmResetPassword(ctx context.Context, req learnhub.ConfirmResetPasswordRequest) error {
	if err := learnhub.Validate(req); err != nil {
		return err
	}
	if err := s.backend.ConfirmResetPassword(ctx, req); err != nil {
		return fmt.Errorf("learnhub/auth: %w", err)
	}
	return nil
}

var errIncomplete = errors.New("response has no token or user")

// checkAuth wraps backend failures and rejects a response that cannot open
// a session.
func checkAuth(resp *learnhub.AuthResponse, err error) (*learnhub.AuthResponse, error) {
	if err != nil {
		return nil, fmt.Errorf("learnhub/auth: %w", err)
	}
	if resp == nil || resp.Token == "" || resp.User.ID == 0 {
		return nil, &learnhub.Error{Kind: learnhub.KindDecode, Err: errIncomplete}
	}
	return resp, nil
}
