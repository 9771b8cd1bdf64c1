package aggregator

import (
	"errors"
	"fmt"
)

var (
	ErrStopped            = errors.New("aggregator stopped")
	ErrInvalidSubscriber  = errors.New("invalid subscriber")
	ErrInvalidErrorPolicy = errors.New("invalid error policy")
	ErrInvalidDelivery    = errors.New("invalid delivery mode")
)

// SubscriberError wraps a failure returned (or panicked) by one subscriber.
type SubscriberError struct {
	Index int
	Err   error
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %d: %v", e.Index, e.Err)
}

func (e *SubscriberError) Unwrap() error {
	return e.Err
}
