package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "blogmvc_session"

	userIDKey = "uid"
	emailKey  = "email"
	csrfKey   = "csrf"

	flashSuccess = "success"
	flashError   = "error"

	sessionMaxAge = 7 * 24 * 60 * 60
)

// SessionStore wraps a signed cookie store holding the signed-in user, the
// CSRF token and one-shot flash messages.
type SessionStore struct {
	store  *sessions.CookieStore
	logger *slog.Logger
}

// NewSessionStore creates a cookie store keyed by secret. The cookie is
// HttpOnly and SameSite=Lax so it is not sent on cross-site form posts.
func NewSessionStore(secret string, secure bool, logger *slog.Logger) *SessionStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, logger: logger.With("component", "session_store")}
}

// Load returns the request's session. A cookie that fails to decode yields a
// fresh session.
func (s *SessionStore) Load(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		s.logger.Debug("discarding undecodable session cookie", "error", err)
	}
	return sess
}

func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save session", "error", err)
	}
}

// SessionUserID implements middleware.SessionReader.
func (s *SessionStore) SessionUserID(r *http.Request) string {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[userIDKey].(string)
	return id
}

func sessionEmail(sess *sessions.Session) string {
	e, _ := sess.Values[emailKey].(string)
	return e
}

// signIn records the user and rotates the CSRF token.
func signIn(sess *sessions.Session, userID, email string) {
	sess.Values[userIDKey] = userID
	sess.Values[emailKey] = email
	sess.Values[csrfKey] = uuid.NewString()
}

// signOut clears identity but keeps the session so a flash survives the redirect.
func signOut(sess *sessions.Session) {
	delete(sess.Values, userIDKey)
	delete(sess.Values, emailKey)
	sess.Values[csrfKey] = uuid.NewString()
}

// csrfToken returns the session's token, creating one if needed. The caller
// must save the session when created is true.
func csrfToken(sess *sessions.Session) (token string, created bool) {
	if t, ok := sess.Values[csrfKey].(string); ok && t != "" {
		return t, false
	}
	t := uuid.NewString()
	sess.Values[csrfKey] = t
	return t, true
}

func validCSRF(sess *sessions.Session, submitted string) bool {
	want, _ := sess.Values[csrfKey].(string)
	if want == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(submitted)) == 1
}

func flashStrings(sess *sessions.Session, kind string) []string {
	var out []string
	for _, f := range sess.Flashes(kind) {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
