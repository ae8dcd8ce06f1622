// Package forward delivers flushed batches of error reports downstream.
package forward

import (
	"context"
	"errors"

	"devsonar/src/contracts"
)

// Forwarder delivers one batch. It is called at most once per buffer flush and is never
// retried; the returned error only tells the caller the delivery failed.
type Forwarder interface {
	Forward(ctx context.Context, reports []contracts.ErrorReport) error
}

// Func adapts an ordinary function to the Forwarder interface.
type Func func(ctx context.Context, reports []contracts.ErrorReport) error

func (f Func) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	return f(ctx, reports)
}

// Multi fans a batch out to several forwarders in order. Every forwarder is called; the
// failures are joined.
type Multi []Forwarder

func (m Multi) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	var errs []error
	for _, f := range m {
		if err := f.Forward(ctx, reports); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
