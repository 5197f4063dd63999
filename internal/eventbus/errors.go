package eventbus

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTopic is returned for empty or malformed topics and patterns.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrNilHandler is returned when subscribing a nil handler or predicate.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic matches any *PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrMaxDepthExceeded is returned when nested publishing goes deeper than the bus allows.
	ErrMaxDepthExceeded = errors.New("maximum publish depth exceeded")
)

// HandlerError wraps an error returned by a subscriber.
type HandlerError struct {
	SubscriptionID string
	Topic          Topic
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error for subscription %s on topic %s: %v", e.SubscriptionID, e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError carries a recovered handler panic.
type PanicError struct {
	SubscriptionID string
	Topic          Topic
	Value          any
	Stack          string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscription %s on topic %s: %v", e.SubscriptionID, e.Topic, e.Value)
}

// Is allows errors.Is(err, ErrHandlerPanic).
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
