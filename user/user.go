// Package user provides the UserService implementation.
package user

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/query"
)

// Backend defines the contract for pluggable user account backends.
type Backend interface {
	Profile(ctx context.Context) (*learnhub.User, error)
	UpdateProfile(ctx context.Context, data learnhub.UpdateProfileData) (*learnhub.User, error)
	ChangePassword(ctx context.Context, data learnhub.ChangePasswordData) error
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (*learnhub.FileUploadResponse, error)
	Enrollments(ctx context.Context) ([]learnhub.Enrollment, error)
	Certificates(ctx context.Context) ([]learnhub.Certificate, error)
	DownloadCertificate(ctx context.Context, certificateID int64) ([]byte, error)
	DeleteAccount(ctx context.Context) error
	ExportData(ctx context.Context) ([]byte, error)
}

// Service implements learnhub.UserService with a configurable backend.
type Service struct {
	backend Backend
	cache   *query.Cache
}

// compile-time check
var _ learnhub.UserService = (*Service)(nil)

// New creates a new UserService. Reads are cached in cache.
func New(backend Backend, cache *query.Cache) *Service {
	return &Service{backend: backend, cache: cache}
}

// Profile returns the authenticated learner's profile.
func (s *Service) Profile(ctx context.Context) (*learnhub.User, error) {
	u, err := query.Fetch(ctx, s.cache, query.User(), s.backend.Profile)
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return u.Clone(), nil
}

// UpdateProfile saves profile fields and refreshes the cached profile.
func (s *Service) UpdateProfile(ctx context.Context, data learnhub.UpdateProfileData) (*learnhub.User, error) {
	if data == (learnhub.UpdateProfileData{}) {
		return nil, &learnhub.Error{Kind: learnhub.KindInvalid, Message: "nothing to update"}
	}
	u, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*learnhub.User, error) {
		return s.backend.UpdateProfile(ctx, data)
	}, query.Updates(query.User()))
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return u.Clone(), nil
}

// ChangePassword replaces the account password.
func (s *Service) ChangePassword(ctx context.Context, data learnhub.ChangePasswordData) error {
	if err := learnhub.Validate(data); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.ChangePassword(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("learnhub/user: %w", err)
	}
	return nil
}

// UploadAvatar uploads a new profile picture.
func (s *Service) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*learnhub.FileUploadResponse, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) || r == nil {
		return nil, &learnhub.Error{Kind: learnhub.KindInvalid, Message: "avatar file is required"}
	}
	resp, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (*learnhub.FileUploadResponse, error) {
		return s.backend.UploadAvatar(ctx, filename, r)
	}, query.Invalidates(query.User()))
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return resp, nil
}

// Enrollments lists the learner's enrollments. They are cached per learner
// when the context carries the user ID.
func (s *Service) Enrollments(ctx context.Context) ([]learnhub.Enrollment, error) {
	var (
		items []learnhub.Enrollment
		err   error
	)
	if uid, ok := learnhub.UserIDFromContext(ctx); ok {
		items, err = query.Fetch(ctx, s.cache, query.UserEnrollments(uid), s.backend.Enrollments)
	} else {
		items, err = s.backend.Enrollments(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return items, nil
}

// Certificates lists the learner's certificates. They are cached per
// learner when the context carries the user ID.
func (s *Service) Certificates(ctx context.Context) ([]learnhub.Certificate, error) {
	var (
		items []learnhub.Certificate
		err   error
	)
	if uid, ok := learnhub.UserIDFromContext(ctx); ok {
		items, err = query.Fetch(ctx, s.cache, query.Certificates(uid), s.backend.Certificates)
	} else {
		items, err = s.backend.Certificates(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return items, nil
}

// DownloadCertificate returns the certificate document.
func (s *Service) DownloadCertificate(ctx context.Context, certificateID int64) ([]byte, error) {
	if certificateID <= 0 {
		return nil, &learnhub.Error{Kind: learnhub.KindInvalid, Message: "certificate id must be positive"}
	}
	data, err := s.backend.DownloadCertificate(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return data, nil
}

// DeleteAccount deletes the learner's account and drops every cached value.
func (s *Service) DeleteAccount(ctx context.Context) error {
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.DeleteAccount(ctx)
	})
	if err != nil {
		return fmt.Errorf("learnhub/user: %w", err)
	}
	s.cache.Clear()
	return nil
}

// ExportData returns an export of everything stored about the learner.
func (s *Service) ExportData(ctx context.Context) ([]byte, error) {
	data, err := s.backend.ExportData(ctx)
	if err != nil {
		return nil, fmt.Errorf("learnhub/user: %w", err)
	}
	return data, nil
}

// ExportStreamer is implemented by backends that can stream the export
// instead of buffering it.
type ExportStreamer interface {
	ExportDataTo(ctx context.Context, w io.Writer) (int64, error)
}

// ExportDataTo writes the learner's export to w and returns its size.
func (s *Service) ExportDataTo(ctx context.Context, w io.Writer) (int64, error) {
	if es, ok := s.backend.(ExportStreamer); ok {
		n, err := es.ExportDataTo(ctx, w)
		if err != nil {
			return n, fmt.Errorf("learnhub/user: %w", err)
		}
		return n, nil
	}
	data, err := s.ExportData(ctx)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
