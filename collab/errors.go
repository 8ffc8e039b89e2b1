package collab

import "fmt"

// StatusError is returned by HTTPHandler for a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collab: %s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// ErrCircuitOpen is returned while the breaker of a service is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("collab: circuit open: %s", e.Service)
}

// ErrPanic wraps a recovered panic value.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("collab: handler panicked: %v", e.Value)
}
