package services

import (
	"context"
	"errors"
	"fmt"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", e.Fields)
}

// Remote error codes. Adapters map their native faults to one of these.
const (
	CodeAuthentication = "authentication"
	CodeAccessDenied   = "access_denied"
	CodeNotFound       = "not_found"
	CodeInvalidRequest = "invalid_request"
	CodeTimeout        = "timeout"
	CodeRemote         = "remote"
)

// RemoteError is a fault returned by one of the managed services.
type RemoteError struct {
	Service string // "generation", "retrieval", "identity", "embedding"
	Code    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Service + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func newRemoteError(service, code, message string, err error) *RemoteError {
	if code == CodeRemote && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		code = CodeTimeout
	}
	return &RemoteError{Service: service, Code: code, Message: message, Err: err}
}

// RemoteErrorCode returns the code of the first RemoteError in err's chain,
// or "" when there is none.
func RemoteErrorCode(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func IsNotFound(err error) bool     { return RemoteErrorCode(err) == CodeNotFound }
func IsAccessDenied(err error) bool { return RemoteErrorCode(err) == CodeAccessDenied }
func IsAuthentication(err error) bool {
	return RemoteErrorCode(err) == CodeAuthentication
}
