package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/tripdesk/internal/apperr"
)

const maxBodyBytes = 1 << 20

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success or informational response using the common envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

// Reject writes an error envelope for conditions outside the error taxonomy, such as throttling.
func Reject(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Code: status, Message: message, Error: code})
}

// Status maps an error kind to its HTTP status.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err with the shared envelope. Internal errors are logged and replaced with a
// generic message; their cause never reaches the client.
func Error(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		code := apperr.CodeInternal
		message := "Internal server error"
		if ok {
			code = e.Code
			message = e.Message
		}
		if log != nil {
			log.Errorw("request failed", "code", code, "err", err)
		}
		write(w, http.StatusInternalServerError, Envelope{Code: http.StatusInternalServerError, Message: message, Error: code})
		return
	}
	status := Status(e.Kind)
	write(w, status, Envelope{Code: status, Message: e.Message, Error: e.Code})
}

// Decode reads a JSON body into dst.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation(apperr.CodeValidation, "Request body is required")
		}
		return apperr.Validation(apperr.CodeValidation, "Invalid JSON payload").Wrap(err)
	}
	return nil
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
