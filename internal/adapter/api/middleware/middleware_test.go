package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/pii"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/token"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain/mocks"
)

type stubSessions map[string]string // cookie value -> user id

func (s stubSessions) SessionUserID(r *http.Request) string {
	c, err := r.Cookie("sid")
	if err != nil {
		return ""
	}
	return s[c.Value]
}

func newTestAuthenticator(denylist domain.TokenDenylist) (*Authenticator, *token.Manager) {
	tokens := token.NewManager("0123456789abcdef0123456789abcdef", "BlogMvc", "BlogMvcUsers", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewBlogMetrics(prometheus.NewRegistry())
	return NewAuthenticator(tokens, denylist, stubSessions{"abc": "session-user"}, m, logger), tokens
}

func TestAuthenticator_Resolve(t *testing.T) {
	denylist := &mocks.MockTokenDenylist{}
	auth, tokens := newTestAuthenticator(denylist)

	issued, err := tokens.Issue(domain.User{ID: "bearer-user", Email: "b@example.com"})
	require.NoError(t, err)
	revoked, err := tokens.Issue(domain.User{ID: "revoked-user"})
	require.NoError(t, err)
	require.NoError(t, denylist.Revoke(context.Background(), revoked.ID, time.Hour))

	tests := []struct {
		name       string
		authHeader string
		cookie     string
		wantID     string
		wantScheme Scheme
	}{
		{"guest", "", "", "", SchemeNone},
		{"bearer", "Bearer " + issued.Token, "", "bearer-user", SchemeBearer},
		{"bearer wins over session", "Bearer " + issued.Token, "abc", "bearer-user", SchemeBearer},
		{"session", "", "abc", "session-user", SchemeSession},
		{"unknown session", "", "zzz", "", SchemeNone},
		{"invalid bearer is guest", "Bearer garbage", "abc", "", SchemeNone},
		{"revoked bearer is guest", "Bearer " + revoked.Token, "", "", SchemeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sid", Value: tt.cookie})
			}
			c := auth.Resolve(req)
			assert.Equal(t, tt.wantID, c.ID)
			assert.Equal(t, tt.wantScheme, c.Scheme)
			if tt.wantScheme == SchemeBearer {
				assert.Equal(t, issued.ID, c.TokenID)
				assert.False(t, c.TokenExpiresAt.IsZero())
			}
		})
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	idp := &mocks.MockIdentityProvider{Roles: map[string]domain.RoleSet{
		"user":  {domain.RoleUser},
		"guest": {domain.RoleGuest},
	}}
	var denied *domain.Error
	deny := func(w http.ResponseWriter, r *http.Request, err *domain.Error) {
		denied = err
		w.WriteHeader(http.StatusTeapot)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAuth(deny)(RequireRole(idp, deny, domain.RoleUser, domain.RoleAdmin)(ok))

	tests := []struct {
		caller string
		status int
		code   domain.ErrorCode
	}{
		{"", http.StatusTeapot, domain.CodeUnauthorized},
		{"guest", http.StatusTeapot, domain.CodeForbidden},
		{"user", http.StatusOK, ""},
	}
	for _, tt := range tests {
		denied = nil
		req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
		req = req.WithContext(WithCaller(req.Context(), Caller{ID: tt.caller}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, "caller %q", tt.caller)
		if tt.code != "" {
			require.NotNil(t, denied)
			assert.Equal(t, tt.code, denied.Code)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"), "limits are per IP")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("1.1.1.1"), "one token refills every 30s at 2/min")

	var status int
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request, err *domain.Error) {
		status = http.StatusTooManyRequests
		assert.Equal(t, CodeTooManyRequests, err.Code)
		w.WriteHeader(status)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "1.1.1.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	redactor := pii.NewRedactor(pii.CredentialFields, logger)

	var seenBody, seenID string
	h := Logging(logger, redactor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		seenID = RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	body := `{"email":"a@example.com","password":"Secret1!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, body, seenBody, "handler must still see the full body")
	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.NotContains(t, entry["body"], "Secret1!")
	assert.Contains(t, entry["body"], pii.RedactedPlaceholder)

	buf.Reset()
	seenID = "unset"
	req = httptest.NewRequest(http.MethodGet, "/static/site.css", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, "static assets are still served")
	assert.Empty(t, seenID, "static assets get no request id")
	assert.Empty(t, rec.Header().Get(RequestIDHeader))
	assert.Zero(t, buf.Len(), "static assets are not logged")

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", seenID)
	assert.Equal(t, "given-id", rec.Header().Get(RequestIDHeader))
}
