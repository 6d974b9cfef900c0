// Package result is the status/message/data envelope returned by module
// services to their callers (CLI, HTTP handlers, other modules).
package result

import "fmt"

// Result reports the outcome of an operation. A false Status with a
// Message is an expected, user-facing failure; unexpected failures are
// returned as errors next to the Result instead.
type Result[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// OK returns a successful result carrying data.
func OK[T any](data T, message string) Result[T] {
	return Result[T]{Status: true, Message: message, Data: data}
}

// Fail returns a failed result with a formatted message.
func Fail[T any](format string, args ...any) Result[T] {
	return Result[T]{Message: fmt.Sprintf(format, args...)}
}

// Err turns a failed result into an error, nil on success.
func (r Result[T]) Err() error {
	if r.Status {
		return nil
	}
	if r.Message == "" {
		return fmt.Errorf("operation failed")
	}
	return fmt.Errorf("%s", r.Message)
}
