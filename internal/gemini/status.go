// Package gemini implements the request/response surface of the Gemini
// protocol: request line reading and validation, and response framing.
//
// A transaction is a single request line answered by a single response,
// after which the connection closes; there is no pipelining.
package gemini

import "fmt"

// Status is a two-digit Gemini response status code.
type Status int

// Status codes used by the server.
const (
	StatusSuccess           Status = 20
	StatusRedirectPermanent Status = 31
	StatusTemporaryFailure  Status = 40
	StatusNotFound          Status = 51
	StatusProxyRefused      Status = 53
	StatusBadRequest        Status = 59
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRedirectPermanent:
		return "permanent redirect"
	case StatusTemporaryFailure:
		return "temporary failure"
	case StatusNotFound:
		return "not found"
	case StatusProxyRefused:
		return "proxy request refused"
	case StatusBadRequest:
		return "bad request"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// StatusError is a protocol-level rejection that still answers the client
// with a well-formed status line.
type StatusError struct {
	Status Status
	Meta   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", int(e.Status), e.Meta)
}
