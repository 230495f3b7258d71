package messaging

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx answer from the backend, or a local refusal to call it.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("messaging: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("messaging: %d %s", e.Status, e.Message)
}

// ErrNoSession is returned when a call is attempted without a usable session.
var ErrNoSession = &APIError{Status: http.StatusUnauthorized, Message: "unauthorized", Detail: "no active session"}

// StatusOf returns the HTTP status carried by err, or 0 for transport and
// parse failures.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

const maxDetailLen = 512

// newAPIError builds an APIError from a backend error body. The backend uses
// several shapes: {"error","detail"}, {"message"} and {"success":false,"error"}.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		e.Message = res.Get("error").String()
		e.Detail = res.Get("detail").String()
		if msg := res.Get("message").String(); msg != "" {
			if e.Message == "" {
				e.Message = msg
			} else if e.Detail == "" {
				e.Detail = msg
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > maxDetailLen {
			text = text[:maxDetailLen]
		}
		e.Detail = text
	}

	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
	}
	return e
}
