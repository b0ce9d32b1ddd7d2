package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where a request failed.
type ErrorKind int

const (
	// KindServer means the backend answered with a non-2xx status and a
	// structured error payload. Its message is surfaced verbatim.
	KindServer ErrorKind = iota
	// KindConnectivity means the request left the client but no response
	// arrived (timeout, DNS failure, offline backend).
	KindConnectivity
	// KindClient means the request failed before it was sent.
	KindClient
)

// Fixed user-facing messages for failures without a server message.
const (
	MsgNoConnection = "Keine Verbindung zum Server. Bitte versuchen Sie es später erneut."
	MsgGeneric      = "Ein unerwarteter Fehler ist aufgetreten."
)

// APIError is the single error type surfaced by the client. Every call
// is a single attempt: there are no retries and no backoff, a failed
// operation is terminal and reported to the caller.
type APIError struct {
	Kind       ErrorKind
	StatusCode int    // set for KindServer
	Message    string // what the caller should display
	Err        error  // underlying cause, for logs
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err is an APIError caused by an
// unreachable backend.
func IsConnectivity(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindConnectivity
}

func serverError(status int, message string, cause error) *APIError {
	if message == "" {
		message = fmt.Sprintf("Serverfehler (HTTP %d)", status)
	}
	return &APIError{Kind: KindServer, StatusCode: status, Message: message, Err: cause}
}

func connectivityError(cause error) *APIError {
	return &APIError{Kind: KindConnectivity, Message: MsgNoConnection, Err: cause}
}

func clientError(cause error) *APIError {
	return &APIError{Kind: KindClient, Message: MsgGeneric, Err: cause}
}
