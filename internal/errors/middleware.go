package errors

import (
	"net/http"

	"github.com/openblog/backend/internal/logger"
)

// Handler wraps an http.HandlerFunc with error handling capabilities
type Handler func(w http.ResponseWriter, r *http.Request) error

// HandleFunc converts a Handler to a standard http.HandlerFunc with automatic
// translation of returned errors into the uniform envelope
func HandleFunc(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			requestID := logger.GetRequestID(r.Context())
			WriteError(w, requestID, err)
		}
	}
}
