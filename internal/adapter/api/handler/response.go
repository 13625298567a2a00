package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Nef3rp1tou/BlogMvc/internal/adapter/api/middleware"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

// StatusFor maps an error code onto an HTTP status.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	case middleware.CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"isSuccess":false,"error":{"code":"INTERNAL_SERVER_ERROR","message":"An unexpected error occurred"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respond writes v in a success envelope with status, or err in a failure
// envelope with its mapped status.
func respond[T any](w http.ResponseWriter, status int, v T, err error) {
	if err != nil {
		RespondError(w, err)
		return
	}
	respondWithJSON(w, status, domain.Ok(v))
}

// respondOK writes a success envelope without a value.
func respondOK(w http.ResponseWriter) {
	respondWithJSON(w, http.StatusOK, domain.Result[struct{}]{IsSuccess: true})
}

// RespondError writes err as a failure envelope.
func RespondError(w http.ResponseWriter, err error) {
	de := domain.AsError(err)
	respondWithJSON(w, StatusFor(de.Code), domain.Result[struct{}]{Error: de})
}

// Deny adapts RespondError to middleware.DenyFunc.
func Deny(w http.ResponseWriter, _ *http.Request, err *domain.Error) {
	RespondError(w, err)
}

// NotFound is the router's fallback for unknown API paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondError(w, domain.NotFound("Route", r.URL.Path))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusMethodNotAllowed, domain.Result[struct{}]{
		Error: &domain.Error{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"},
	})
}
