package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/lox/laundrydesk/internal/feed"
	"github.com/lox/laundrydesk/internal/forecast"
	"github.com/lox/laundrydesk/internal/inventory"
)

var validate = validator.New()

type errorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// badRequestError wraps malformed or invalid input.
type badRequestError struct {
	msg     string
	details []string
}

func (e *badRequestError) Error() string { return e.msg }

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrInsufficientData),
		errors.Is(err, feed.ErrNoData),
		errors.Is(err, inventory.ErrNoTransactions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var bad *badRequestError
	if errors.As(err, &bad) {
		resp.Details = bad.details
	}
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

// bindJSON applies struct defaults, decodes an optional JSON body over them
// and validates the result.
func bindJSON(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return validateStruct(r.Context(), dst)
}

// decodeJSON is bindJSON without validation, for handlers that normalise
// fields first.
func decodeJSON(r *http.Request, dst any) error {
	if err := defaults.Set(dst); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return &badRequestError{msg: "invalid JSON body: " + err.Error()}
		}
	}
	return nil
}

func validateStruct(ctx context.Context, v any) error {
	err := validate.StructCtx(ctx, v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &badRequestError{msg: err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, validationMessage(fe))
	}
	return &badRequestError{msg: "invalid request", details: details}
}

func validationMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if fe.Type().Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}
