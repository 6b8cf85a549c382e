package user

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/query"
	"github.com/chimerakang/learnhub-go/transport"
)

// mockBackend implements Backend for testing
type mockBackend struct {
	user  *learnhub.User
	err   error
	calls map[string]int

	avatarName string
	avatarBody string
}

func newMock() *mockBackend {
	return &mockBackend{
		user:  &learnhub.User{ID: 1, Email: "a@b.com", FirstName: "A"},
		calls: map[string]int{},
	}
}

func (m *mockBackend) Profile(context.Context) (*learnhub.User, error) {
	m.calls["Profile"]++
	if m.err != nil {
		return nil, m.err
	}
	return m.user.Clone(), nil
}

func (m *mockBackend) UpdateProfile(_ context.Context, d learnhub.UpdateProfileData) (*learnhub.User, error) {
	m.calls["UpdateProfile"]++
	if m.err != nil {
		return nil, m.err
	}
	if d.LastName != "" {
		m.user.LastName = d.LastName
	}
	return m.user.Clone(), nil
}

func (m *mockBackend) ChangePassword(context.Context, learnhub.ChangePasswordData) error {
	m.calls["ChangePassword"]++
	return m.err
}

func (m *mockBackend) UploadAvatar(_ context.Context, name string, r io.Reader) (*learnhub.FileUploadResponse, error) {
	m.calls["UploadAvatar"]++
	b, _ := io.ReadAll(r)
	m.avatarName, m.avatarBody = name, string(b)
	return &learnhub.FileUploadResponse{URL: "/a/" + name, Filename: name, Size: int64(len(b))}, m.err
}

func (m *mockBackend) Enrollments(context.Context) ([]learnhub.Enrollment, error) {
	m.calls["Enrollments"]++
	return []learnhub.Enrollment{{ID: 1}}, m.err
}

func (m *mockBackend) Certificates(context.Context) ([]learnhub.Certificate, error) {
	m.calls["Certificates"]++
	return []learnhub.Certificate{{ID: 2}}, m.err
}

func (m *mockBackend) DownloadCertificate(context.Context, int64) ([]byte, error) {
	m.calls["DownloadCertificate"]++
	return []byte("%PDF"), m.err
}

func (m *mockBackend) DeleteAccount(context.Context) error {
	m.calls["DeleteAccount"]++
	return m.err
}

func (m *mockBackend) ExportData(context.Context) ([]byte, error) {
	m.calls["ExportData"]++
	return []byte(`{}`), m.err
}

func newService(t *testing.T, b Backend) (*Service, *query.Cache) {
	t.Helper()
	p := query.DefaultPolicy()
	p.RetryDelay = time.Millisecond
	cache := query.New(query.WithPolicy(p))
	t.Cleanup(func() { _ = cache.Close() })
	return New(b, cache), cache
}

func TestProfile_CachedCopy(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	u, err := svc.Profile(context.Background())
	require.NoError(t, err)
	u.FirstName = "changed"

	again, err := svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", again.FirstName)
	assert.Equal(t, 1, m.calls["Profile"])
}

func TestUpdateProfile_RefreshesCache(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)
	_, _ = svc.Profile(context.Background())

	u, err := svc.UpdateProfile(context.Background(), learnhub.UpdateProfileData{LastName: "Smith"})
	require.NoError(t, err)
	assert.Equal(t, "Smith", u.LastName)

	cached, err := svc.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Smith", cached.LastName)
	assert.Equal(t, 1, m.calls["Profile"])
}

func TestUpdateProfile_Empty(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	_, err := svc.UpdateProfile(context.Background(), learnhub.UpdateProfileData{})

	assert.Equal(t, learnhub.KindInvalid, learnhub.KindOf(err))
	assert.Zero(t, m.calls["UpdateProfile"])
}

func TestChangePassword_Validation(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	err := svc.ChangePassword(context.Background(), learnhub.ChangePasswordData{CurrentPassword: "secret12", NewPassword: "secret12"})
	assert.Equal(t, learnhub.KindInvalid, learnhub.KindOf(err))

	err = svc.ChangePassword(context.Background(), learnhub.ChangePasswordData{CurrentPassword: "secret12", NewPassword: "short"})
	assert.Equal(t, "NewPassword must be at least 8 characters", learnhub.MessageOf(err))
	assert.Zero(t, m.calls["ChangePassword"])
}

func TestChangePassword_FailureNotRetried(t *testing.T) {
	m := newMock()
	m.err = errors.New("connection reset")
	svc, _ := newService(t, m)

	err := svc.ChangePassword(context.Background(), learnhub.ChangePasswordData{CurrentPassword: "secret12", NewPassword: "secret123"})

	require.Error(t, err)
	assert.Equal(t, 1, m.calls["ChangePassword"])
}

func TestUploadAvatar(t *testing.T) {
	m := newMock()
	svc, cache := newService(t, m)
	cache.SetData(query.User(), m.user.Clone())

	resp, err := svc.UploadAvatar(context.Background(), " /home/me/photo.png ", strings.NewReader("img"))

	require.NoError(t, err)
	assert.Equal(t, "photo.png", m.avatarName)
	assert.Equal(t, "img", m.avatarBody)
	assert.Equal(t, int64(3), resp.Size)
	_, ok := query.GetData[*learnhub.User](cache, query.User())
	assert.False(t, ok, "avatar upload invalidates the cached profile")
}

func TestUploadAvatar_Missing(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	_, err := svc.UploadAvatar(context.Background(), "", strings.NewReader("img"))
	assert.Equal(t, learnhub.KindInvalid, learnhub.KindOf(err))
	_, err = svc.UploadAvatar(context.Background(), "a.png", nil)
	assert.Equal(t, learnhub.KindInvalid, learnhub.KindOf(err))
	assert.Zero(t, m.calls["UploadAvatar"])
}

func TestEnrollments_CachedPerLearner(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)
	ctx := learnhub.WithUserID(context.Background(), 1)

	_, _ = svc.Enrollments(ctx)
	_, _ = svc.Enrollments(ctx)
	_, _ = svc.Certificates(ctx)
	_, _ = svc.Certificates(ctx)
	assert.Equal(t, 1, m.calls["Enrollments"])
	assert.Equal(t, 1, m.calls["Certificates"])

	_, _ = svc.Enrollments(context.Background())
	assert.Equal(t, 2, m.calls["Enrollments"])
}

func TestDownloadCertificate_InvalidID(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	_, err := svc.DownloadCertificate(context.Background(), -1)

	assert.Equal(t, learnhub.KindInvalid, learnhub.KindOf(err))
	assert.Zero(t, m.calls["DownloadCertificate"])
}

func TestDeleteAccount_ClearsCache(t *testing.T) {
	m := newMock()
	svc, cache := newService(t, m)
	cache.SetData(query.User(), m.user)
	cache.SetData(query.Courses(), "x")

	require.NoError(t, svc.DeleteAccount(context.Background()))
	assert.Zero(t, cache.Len())
}

func TestDeleteAccount_FailureKeepsCache(t *testing.T) {
	m := newMock()
	m.err = &learnhub.Error{Kind: learnhub.KindForbidden}
	svc, cache := newService(t, m)
	cache.SetData(query.User(), m.user)

	require.Error(t, svc.DeleteAccount(context.Background()))
	assert.Equal(t, 1, cache.Len())
}

func TestHTTPBackend_UploadAvatarMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/avatar", r.URL.Path)
		mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		assert.Equal(t, "multipart/form-data", mt)
		f, fh, err := r.FormFile(AvatarField)
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "me.png", fh.Filename)
		assert.Equal(t, "pixels", string(body))
		_, _ = w.Write([]byte(`{"success":true,"data":{"url":"/a/me.png","filename":"me.png","size":6}}`))
	}))
	defer srv.Close()

	tc, err := transport.New(srv.URL)
	require.NoError(t, err)
	resp, err := NewHTTPBackend(tc).UploadAvatar(context.Background(), "me.png", strings.NewReader("pixels"))

	require.NoError(t, err)
	assert.Equal(t, "/a/me.png", resp.URL)
}

func TestHTTPBackend_DownloadCertificate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/certificates/7/download", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	tc, err := transport.New(srv.URL)
	require.NoError(t, err)
	data, err := NewHTTPBackend(tc).DownloadCertificate(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestExportDataTo_BufferedFallback(t *testing.T) {
	m := newMock()
	svc, _ := newService(t, m)

	var buf bytes.Buffer
	n, err := svc.ExportDataTo(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "{}", buf.String())
	assert.Equal(t, 1, m.calls["ExportData"])
}

func TestHTTPBackend_ExportLargerThanDownloadLimit(t *testing.T) {
	payload := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/export-data", r.URL.Path)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	tc, err := transport.New(srv.URL, transport.WithMaxDownloadSize(16))
	require.NoError(t, err)
	svc, _ := newService(t, NewHTTPBackend(tc))

	_, err = svc.ExportData(context.Background())
	assert.Equal(t, learnhub.KindDecode, learnhub.KindOf(err))

	var buf bytes.Buffer
	n, err := svc.ExportDataTo(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, buf.String())
}
