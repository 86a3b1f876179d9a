package gateway

import "fmt"

type ErrorKind string

const (
	// KindAuthExpired means the destination account's credential is invalid
	// or expired; the user must reconnect the account before rescheduling.
	KindAuthExpired ErrorKind = "auth_expired"
	// KindRemoteRejected means the remote API rejected the content itself.
	KindRemoteRejected ErrorKind = "remote_rejected"
	// KindTransient covers network errors, timeouts and 5xx responses.
	KindTransient ErrorKind = "transient"
)

// Error is the only error type the gateway returns. The remote payload never
// leaks past this boundary.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// AsError unwraps a gateway *Error from err, or wraps an unknown error as
// transient so callers always have a kind to persist.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*Error); ok {
		return ge
	}
	return &Error{Kind: KindTransient, Detail: err.Error()}
}
