package social

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/chimerakang/learnhub-go/config"
)

func init() { gin.SetMode(gin.TestMode) }

// provider is a minimal OAuth2 token endpoint that checks the PKCE verifier
// against the challenge seen on the authorization URL.
type provider struct {
	*httptest.Server

	mu        sync.Mutex
	challenge string
}

func (p *provider) setChallenge(c string) {
	p.mu.Lock()
	p.challenge = c
	p.mu.Unlock()
}

func (p *provider) verify(verifier string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := sha256.Sum256([]byte(verifier))
	return p.challenge != "" && base64.RawURLEncoding.EncodeToString(sum[:]) == p.challenge
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	p := &provider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" || r.ParseForm() != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.FormValue("code") != "auth-code" || !p.verify(r.FormValue("code_verifier")) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     "eyJ.id.token",
		})
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *provider) config() oauth2.Config {
	return oauth2.Config{
		ClientID: "cli",
		Endpoint: oauth2.Endpoint{AuthURL: p.URL + "/authorize", TokenURL: p.URL + "/token"},
		Scopes:   []string{"openid", "email"},
	}
}

// consent plays the browser: it follows the authorization URL straight to
// the redirect URI with the given query.
func (p *provider) consent(t *testing.T, extra url.Values) func(string) error {
	return func(raw string) error {
		u, err := url.Parse(raw)
		if err != nil {
			return err
		}
		q := u.Query()
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		p.setChallenge(q.Get("code_challenge"))

		cb := url.Values{"state": {q.Get("state")}}
		for k, v := range extra {
			cb[k] = v
		}
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?" + cb.Encode())
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestRun_ExchangesCodeWithVerifier(t *testing.T) {
	p := newProvider(t)
	f := New("google", p.config(), WithOpener(p.consent(t, url.Values{"code": {"auth-code"}})), WithTimeout(5*time.Second))

	req, err := f.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "google", req.Provider)
	assert.Equal(t, "ya29.access", req.AccessToken)
	assert.Equal(t, "eyJ.id.token", req.IDToken)
}

func TestRun_ProviderDenied(t *testing.T) {
	p := newProvider(t)
	f := New("google", p.config(), WithOpener(p.consent(t, url.Values{
		"error": {"access_denied"}, "error_description": {"user cancelled"},
	})), WithTimeout(5*time.Second))

	_, err := f.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestRun_TimesOut(t *testing.T) {
	p := newProvider(t)
	f := New("google", p.config(), WithOpener(func(string) error { return nil }), WithTimeout(50*time.Millisecond))

	_, err := f.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandler_RejectsWrongState(t *testing.T) {
	results := make(chan callback, 1)
	h := New("google", oauth2.Config{}).handler("expected", results)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=other&code=x", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, results)
}

func TestHandler_FirstCallbackWins(t *testing.T) {
	results := make(chan callback, 1)
	h := New("google", oauth2.Config{}).handler("s", results)

	for _, code := range []string{"first", "second"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=s&code="+code, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	require.Len(t, results, 1)
	assert.Equal(t, "first", (<-results).code)
}

func TestHandler_MissingCode(t *testing.T) {
	results := make(chan callback, 1)
	h := New("google", oauth2.Config{}).handler("s", results)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=s", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, results)
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(config.Social{Provider: "google"})
	require.Error(t, err)

	f, err := FromConfig(config.Social{
		Provider: "github", ClientID: "id", AuthURL: "https://example.com/a", TokenURL: "https://example.com/t",
	})
	require.NoError(t, err)
	assert.Equal(t, "github", f.Provider())
}
