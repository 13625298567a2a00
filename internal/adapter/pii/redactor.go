package pii

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const RedactedPlaceholder = "[REDACTED]"

// CredentialFields are the request body keys that must never reach a log line.
var CredentialFields = []string{"password", "confirmPassword", "currentPassword", "newPassword", "confirmNewPassword", "token"}

// Redactor replaces sensitive values in JSON request bodies before they are logged.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lower-cased keys
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor. Field names are matched case-insensitively.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[strings.ToLower(field)] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact returns body with every configured field replaced, at any depth.
// The second result reports whether anything was replaced. Bodies that are
// not JSON are returned as an error so the caller can drop them entirely.
func (r *Redactor) Redact(body []byte) ([]byte, bool, error) {
	if len(r.fieldsToRedact) == 0 || len(body) == 0 {
		return body, false, nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		r.logger.Debug("request body is not JSON, cannot redact", "error", err)
		return nil, false, err
	}

	if !r.walk(doc) {
		return body, false, nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		r.logger.Error("failed to marshal redacted body", "error", err)
		return nil, false, err
	}
	return out, true, nil
}

func (r *Redactor) walk(v any) bool {
	redacted := false
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if _, ok := r.fieldsToRedact[strings.ToLower(k)]; ok {
				node[k] = RedactedPlaceholder
				redacted = true
				continue
			}
			if r.walk(child) {
				redacted = true
			}
		}
	case []any:
		for _, child := range node {
			if r.walk(child) {
				redacted = true
			}
		}
	}
	return redacted
}
