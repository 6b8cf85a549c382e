package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/securecookie"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	learnhub "github.com/chimerakang/learnhub-go"
)

// File keeps the token as a single Set-Cookie line in a file. The cookie
// carries the token's expiry and is marked Secure and SameSite=Strict.
// When a signing key is configured the value is authenticated with
// securecookie, and a file tampered with on disk is discarded.
type File struct {
	path string
	sc   *securecookie.SecureCookie
	opts options

	mu sync.Mutex
}

// FileOption configures a File store.
type FileOption func(*File)

// WithSigningKey authenticates the stored value with key.
func WithSigningKey(key []byte) FileOption {
	return func(f *File) {
		if len(key) == 0 {
			return
		}
		sc := securecookie.New(key, nil)
		sc.SetSerializer(securecookie.JSONEncoder{})
		f.sc = sc
	}
}

// NewFile creates a store backed by the file at path. The parent directory
// is created on first save.
func NewFile(path string, fileOpts []FileOption, opts ...Option) (*File, error) {
	if path == "" {
		return nil, errors.New("tokenstore: file path is required")
	}
	f := &File{path: path, opts: buildOptions(opts)}
	for _, o := range fileOpts {
		o(f)
	}
	if f.sc != nil {
		f.sc.MaxAge(int(f.opts.ttl.Seconds()))
	}
	return f, nil
}

// Path returns the file the token is stored in.
func (f *File) Path() string { return f.path }

// Load reads the token back. A missing, expired, unparsable or tampered
// file yields learnhub.ErrNoToken; the latter three are also removed.
func (f *File) Load(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", learnhub.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: read %s: %w", f.path, err)
	}

	token, err := f.decode(strings.TrimSpace(string(raw)))
	if err != nil {
		f.opts.logger.Warn("discarding stored token", zap.String("path", f.path), zap.Error(err))
		if rmErr := f.remove(); rmErr != nil {
			f.opts.logger.Warn("remove token file", zap.Error(rmErr))
		}
		return "", learnhub.ErrNoToken
	}
	return token, nil
}

// Save writes the token atomically with owner-only permissions.
func (f *File) Save(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	value := token
	if f.sc != nil {
		enc, err := f.sc.Encode(CookieName, token)
		if err != nil {
			return fmt.Errorf("tokenstore: sign token: %w", err)
		}
		value = enc
	}
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  f.opts.now().Add(f.opts.ttl).UTC(),
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
	if err := cookie.Valid(); err != nil {
		return fmt.Errorf("tokenstore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("tokenstore: create directory: %w", err)
	}
	if err := atomic.WriteFile(f.path, strings.NewReader(cookie.String()+"\n")); err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", f.path, err)
	}
	return os.Chmod(f.path, 0o600)
}

// Delete removes the file. A missing file is not an error.
func (f *File) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remove()
}

func (f *File) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: remove %s: %w", f.path, err)
	}
	return nil
}

func (f *File) decode(line string) (string, error) {
	cookie, err := http.ParseSetCookie(line)
	if err != nil {
		return "", err
	}
	if cookie.Name != CookieName {
		return "", fmt.Errorf("unexpected cookie %q", cookie.Name)
	}
	now := f.opts.now()
	if !cookie.Expires.IsZero() && !now.Before(cookie.Expires) {
		return "", errExpired
	}

	token := cookie.Value
	if f.sc != nil {
		if err := f.sc.Decode(CookieName, cookie.Value, &token); err != nil {
			return "", err
		}
	}
	if token == "" {
		return "", errors.New("empty token")
	}
	if err := checkExpiry(token, now); err != nil {
		return "", err
	}
	return token, nil
}
