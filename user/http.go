package user

import (
	"context"
	"fmt"
	"io"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/transport"
)

// AvatarField is the multipart field the avatar is uploaded in.
const AvatarField = "avatar"

// HTTPBackend implements Backend over the REST API.
type HTTPBackend struct {
	client *transport.Client
}

// compile-time check
var (
	_ Backend        = (*HTTPBackend)(nil)
	_ ExportStreamer = (*HTTPBackend)(nil)
)

// NewHTTPBackend creates a Backend that talks to the API through client.
func NewHTTPBackend(client *transport.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func (b *HTTPBackend) Profile(ctx context.Context) (*learnhub.User, error) {
	return transport.Call[*learnhub.User](ctx, b.client, transport.Get("/users/profile", nil)).Unwrap()
}

func (b *HTTPBackend) UpdateProfile(ctx context.Context, data learnhub.UpdateProfileData) (*learnhub.User, error) {
	return transport.Call[*learnhub.User](ctx, b.client, transport.Put("/users/profile", data)).Unwrap()
}

func (b *HTTPBackend) ChangePassword(ctx context.Context, data learnhub.ChangePasswordData) error {
	return transport.Exec(ctx, b.client, transport.Put("/users/change-password", data))
}

func (b *HTTPBackend) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*learnhub.FileUploadResponse, error) {
	req := transport.Request{
		Method: "POST",
		Path:   "/users/avatar",
		File:   &transport.File{Field: AvatarField, Name: filename, Reader: r},
	}
	return transport.Call[*learnhub.FileUploadResponse](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) Enrollments(ctx context.Context) ([]learnhub.Enrollment, error) {
	return transport.Call[[]learnhub.Enrollment](ctx, b.client, transport.Get("/users/enrollments", nil)).Unwrap()
}

func (b *HTTPBackend) Certificates(ctx context.Context) ([]learnhub.Certificate, error) {
	return transport.Call[[]learnhub.Certificate](ctx, b.client, transport.Get("/users/certificates", nil)).Unwrap()
}

func (b *HTTPBackend) DownloadCertificate(ctx context.Context, certificateID int64) ([]byte, error) {
	return transport.Download(ctx, b.client, transport.Get(fmt.Sprintf("/users/certificates/%d/download", certificateID), nil))
}

func (b *HTTPBackend) DeleteAccount(ctx context.Context) error {
	return transport.Exec(ctx, b.client, transport.Delete("/users/account"))
}

func (b *HTTPBackend) ExportData(ctx context.Context) ([]byte, error) {
	return transport.Download(ctx, b.client, transport.Get("/users/export-data", nil))
}

func (b *HTTPBackend) ExportDataTo(ctx context.Context, w io.Writer) (int64, error) {
	return transport.DownloadTo(ctx, b.client, transport.Get("/users/export-data", nil), w)
}
