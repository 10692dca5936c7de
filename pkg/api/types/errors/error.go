package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrorMessage is the error payload of the console API.
//
// It also decodes the backend shape, `{"message": ..., "validationErrors": {...}}`.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`

	// per-field messages, keyed by the field name of an edit form.
	Validation map[string]string `json:"validation,omitempty"`

	Cause error `json:"-"`
}

type wireErrorMessage struct {
	Reason           string            `json:"reason"`
	Message          string            `json:"message"`
	Advice           string            `json:"advice"`
	Validation       map[string]string `json:"validation"`
	ValidationErrors map[string]string `json:"validationErrors"`
}

func (em *ErrorMessage) UnmarshalJSON(bytes []byte) error {
	var w wireErrorMessage
	if err := json.Unmarshal(bytes, &w); err != nil {
		return err
	}

	reason := w.Reason
	if reason == "" {
		reason = w.Message
	}
	if reason == "" {
		return fmt.Errorf(`required field missing: "reason" or "message"`)
	}

	validation := w.Validation
	if len(validation) == 0 {
		validation = w.ValidationErrors
	}
	if len(validation) == 0 {
		validation = nil
	}

	*em = ErrorMessage{Reason: reason, Advice: w.Advice, Validation: validation}
	return nil
}

func (em ErrorMessage) String() string {
	sb := new(strings.Builder)
	sb.WriteString(em.Reason)
	if em.Advice != "" {
		fmt.Fprintf(sb, "\n%s", em.Advice)
	}

	fields := make([]string, 0, len(em.Validation))
	for f := range em.Validation {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(sb, "\n - %s: %s", f, em.Validation[f])
	}

	if em.Cause != nil {
		fmt.Fprintf(sb, "\n caused by: %s", em.Cause)
	}
	return sb.String()
}

func (em ErrorMessage) Error() string {
	return em.String()
}

func (em ErrorMessage) Unwrap() error {
	return em.Cause
}

type Option func(*ErrorMessage)

// WithAdvice tells the user what to do. Empty advice is ignored.
func WithAdvice(advice string) Option {
	return func(em *ErrorMessage) {
		if advice != "" {
			em.Advice = advice
		}
	}
}

func WithError(err error) Option {
	return func(em *ErrorMessage) {
		if err != nil {
			em.Cause = err
		}
	}
}

func WithValidation(v map[string]string) Option {
	return func(em *ErrorMessage) {
		if len(v) != 0 {
			em.Validation = v
		}
	}
}

// New creates an echo.HTTPError carrying ErrorMessage as both message and internal error.
//
// When reason is empty, the status text of code is used.
func New(code int, reason string, options ...Option) *echo.HTTPError {
	if reason == "" {
		reason = strings.ToLower(http.StatusText(code))
	}
	em := ErrorMessage{Reason: reason}
	for _, opt := range options {
		opt(&em)
	}
	return echo.NewHTTPError(code, em).SetInternal(em)
}

func NotFound(options ...Option) *echo.HTTPError {
	return New(http.StatusNotFound, "", options...)
}

func BadRequest(advice string, err error) *echo.HTTPError {
	return New(http.StatusBadRequest, "", WithAdvice(advice), WithError(err))
}

func BadGateway(advice string, err error) *echo.HTTPError {
	return New(http.StatusBadGateway, "", WithAdvice(advice), WithError(err))
}

func InternalServerError(err error) *echo.HTTPError {
	return New(http.StatusInternalServerError, "unexpected error", WithError(err))
}
