package common

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the outcome of a request. Use errors.Is to classify an
// error returned by the engine or the client.
var (
	ErrTransport        = errors.New("transport error")
	ErrTimeout          = errors.New("request timeout")
	ErrBusiness         = errors.New("business error")
	ErrCanceled         = errors.New("request canceled")
	ErrEngineClosed     = errors.New("rpc engine closed")
	ErrMalformedMessage = errors.New("malformed message")
)

// TransportError is returned when publishing or subscribing failed.
// Requests failing with a transport error are not retried.
type TransportError struct {
	Op    string // "publish" or "subscribe"
	Topic string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// TimeoutError is returned when no reply arrived before the deadline.
// The request may be re-issued, it will get a new correlation id.
type TimeoutError struct {
	CorrelationID string
	After         time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %s (after %s)", e.CorrelationID, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// BusinessError is an application level failure reported by the service
// handler in the error field of the reply envelope.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

func (e *BusinessError) Is(target error) bool { return target == ErrBusiness }

// NewBusinessError creates a new BusinessError, an empty message is replaced
// with a generic one
func NewBusinessError(message string) *BusinessError {
	if message == "" {
		message = "unknown error"
	}
	return &BusinessError{Message: message}
}
