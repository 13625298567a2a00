package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/metrics"
	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/pii"
)

const (
	RequestIDHeader = "X-Request-ID"

	maxLoggedBody   = 500
	maxBufferedBody = 64 << 10
)

const requestIDKey ctxKey = iota + 100

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// responseWriter is a wrapper that captures the HTTP status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logging is a middleware factory that logs HTTP requests. Static assets are
// not logged. JSON bodies of API writes are logged after credential fields
// are redacted.
func Logging(logger *slog.Logger, redactor *pii.Redactor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))

			attrs := []any{
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			if body, ok := captureBody(r, redactor); ok {
				attrs = append(attrs, "body", body)
			}

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			attrs = append(attrs,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			level := slog.LevelInfo
			if rw.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "handled request", attrs...)
		})
	}
}

// captureBody reads and restores the body of API writes, returning the
// redacted and truncated text to log.
func captureBody(r *http.Request, redactor *pii.Redactor) (string, bool) {
	if redactor == nil || r.Body == nil || !strings.HasPrefix(r.URL.Path, "/api/") {
		return "", false
	}
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return "", false
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBufferedBody))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if err != nil || len(raw) == 0 {
		return "", false
	}

	redacted, _, err := redactor.Redact(raw)
	if err != nil {
		return "[unparseable body omitted]", true
	}
	if len(redacted) > maxLoggedBody {
		return string(redacted[:maxLoggedBody]) + "...", true
	}
	return string(redacted), true
}

// Instrument records request latency by chi route pattern.
func Instrument(m *metrics.BlogMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RequestDuration.
				WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).
				Observe(time.Since(start).Seconds())
		})
	}
}
