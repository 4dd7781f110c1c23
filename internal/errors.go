package internal

import (
	"errors"
	"fmt"
)

// DefaultRequestFailure is the message used when the backend gives no reason.
const DefaultRequestFailure = "Request failed"

var (
	// ErrNotAuthenticated is returned when an operation needs a token and none is stored
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoProfile is returned when a session is started before a role is selected
	ErrNoProfile = errors.New("no profile selected")
	// ErrNoSession is returned when an operation needs an active session
	ErrNoSession = errors.New("no active session")
	// ErrSessionActive is returned when the role changes during a session
	ErrSessionActive = errors.New("session already active")
	// ErrTransitionPending is returned while a role change or session start
	// is still waiting on the backend
	ErrTransitionPending = errors.New("another role or session change is in progress")
)

// APIError is a non-success HTTP response from the backend
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultRequestFailure
	}
	return msg
}

// Detail returns the message with the request line, for logs
func (e *APIError) Detail() string {
	return fmt.Sprintf("api error: %s %s: %d %s", e.Method, e.Path, e.Status, e.Error())
}

// TransportError represents a request that never produced a response
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError represents a response body that is not valid JSON or fails
// schema validation
type DecodeError struct {
	Type  string // response type being decoded
	Field string // offending field, empty for syntax errors
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode error [%s] %s: %v", e.Type, e.Field, e.Err)
	}
	return fmt.Sprintf("decode error [%s]: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError represents missing or invalid user input, caught before
// any request is issued
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AssetError represents a 3D asset that could not be fetched or decoded
type AssetError struct {
	Path string
	Op   string // "fetch", "decode", "build"
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// ChannelError represents a failure on the realtime event channel
type ChannelError struct {
	Op  string // "dial", "read", "write"
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel error: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// SpoolError represents errors accessing the failed-upload spool
type SpoolError struct {
	Path string
	Op   string // "open", "record", "list", "delete"
	Err  error
}

func (e *SpoolError) Error() string {
	return fmt.Sprintf("spool error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SpoolError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to a user for err. Backend messages
// and validation messages are shown as is; everything else becomes the
// generic request failure.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "Please log in first"
	case errors.Is(err, ErrNoProfile):
		return "Select a role first"
	case errors.Is(err, ErrNoSession):
		return "Start a session first"
	case errors.Is(err, ErrSessionActive):
		return "End the current session first"
	case errors.Is(err, ErrTransitionPending):
		return "Please wait for the current action to finish"
	}
	return DefaultRequestFailure
}
