package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/logger"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response: %v", err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrResourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the user-visible text for err. Quota errors are
// localized; internal errors are not exposed.
func errorMessage(err error, status int, lang string) string {
	switch status {
	case http.StatusTooManyRequests:
		return domain.RateLimitMessage(lang)
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithFields(logger.Fields{"request_id": RequestID(r.Context())}).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: errorMessage(err, status, requestLanguage(r, ""))})
}

// requestLanguage prefers an explicit language, then Accept-Language.
func requestLanguage(r *http.Request, explicit string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	accept := r.Header.Get("Accept-Language")
	tag, _, _ := strings.Cut(accept, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.ToLower(strings.TrimSpace(tag))
}

// decode reads and validates a JSON body into dst.
// An empty body is accepted and validates the zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, domain.ErrFileTooLarge)
		}
		return fmt.Errorf("malformed JSON body: %v: %w", err, domain.ErrInvalidInput)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w", formatValidationErrors(err), domain.ErrInvalidInput)
	}
	return nil
}

// formatValidationErrors renders validator failures as one sentence.
func formatValidationErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' rule", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
