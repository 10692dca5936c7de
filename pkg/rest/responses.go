package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apierr "github.com/opst/fleetdeck/pkg/api/types/errors"
)

var (
	// ErrForbidden is wrapped by TransportError of 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is wrapped by TransportError of 404.
	ErrNotFound = errors.New("not found")
)

// TransportError is a failure reported by the backend with non-2xx status.
type TransportError struct {
	StatusCode int

	// Message is the message from the backend, or a summary of the status when the backend says nothing.
	Message string

	// Validation has per-field messages, when the backend rejects an edit.
	Validation map[string]string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s (status code = %d)", e.Message, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

type MessageFor map[StatusCodeRange]string

// unmarshal http response which has json content.
//
// args:
//   - resp: http response to be processed.
//   - v: value which response should be.
//   - messageFor: fallback message for HTTP status code range.
//
// return:
//
//	error if...
//	- can not read response body
//	- response body is not shaped of v
//	- status code is in 4xx or 5xx (*TransportError)
//
// Empty body with 2xx leaves v untouched.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr <= Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("unexpected response: %w (status code = %d)", err, resp.StatusCode)
		}
		return nil
	}
	return transportError(resp, messageFor)
}

func unmarshalResponseDiscardingPayload(resp *http.Response, messageFor MessageFor) error {
	if StatusCodeRangeOf(resp) <= Status2xx {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return transportError(resp, messageFor)
}

func transportError(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	message, ok := messageFor[scr]
	if !ok {
		message = scr.String()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s\ncannot read server message: %s", message, err.Error()),
		}
	}

	terr := &TransportError{StatusCode: resp.StatusCode, Message: message}
	if em, ok := parseErrorMessage(body); ok {
		terr.Message = em.Reason
		terr.Validation = em.Validation
	}
	return terr
}

func parseErrorMessage(body []byte) (apierr.ErrorMessage, bool) {
	em := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &em); err != nil || em.Reason == "" {
		return apierr.ErrorMessage{}, false
	}
	return em, true
}
