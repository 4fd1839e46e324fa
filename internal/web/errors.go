package web

// errors.go turns handler errors into JSON responses.
//
// The flow:
//  1. Handler encounters an error and calls respondError
//  2. statusFor picks the HTTP status from the error's type
//  3. core.MapError supplies the user message and support code
//  4. The technical error is logged with the request id for correlation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/images"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/shop"
	"github.com/JonMunkholm/catalog/internal/tabular"
)

var (
	errNoFile      = errors.New("no file provided")
	errUnavailable = errors.New("feature not configured")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// GateResponse is returned when an import is refused because rows failed
// validation.
type GateResponse struct {
	ErrorResponse
	Errors []core.ValidationError `json:"errors"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var (
		gate     *core.GateError
		parse    *tabular.ParseError
		tooLarge *http.MaxBytesError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &gate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.As(err, &tooLarge),
		errors.Is(err, core.ErrFileTooLarge),
		errors.Is(err, images.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnavailable):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoRows),
		errors.Is(err, errNoFile),
		errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.As(err, &parse),
		errors.Is(err, images.ErrUnsupportedType),
		errors.Is(err, shop.ErrMissingOwner),
		errors.Is(err, shop.ErrMissingProduct),
		errors.As(err, &reqErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.As(err, new(*http.MaxBytesError)) {
		err = core.ErrFileTooLarge
	}
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request error",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("code", userMsg.Code),
	)

	body := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}

	var gate *core.GateError
	if errors.As(err, &gate) {
		writeJSON(w, r, status, GateResponse{ErrorResponse: body, Errors: gate.Errors})
		return
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, r, status, body)
}
