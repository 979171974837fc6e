package middleware

import (
	"encoding/json"
	"net/http"

	"highbid/internal/i18n"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError renders the shared {error, message} body with a localized message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, key string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:   code,
		Message: i18n.T(LocaleFromContext(r.Context()), key),
	})
}
