package printer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

var (
	ErrPrinterOffline   = errors.New("printer is offline")
	ErrConnectionFailed = errors.New("connection failed")
	ErrInvalidStatus    = errors.New("invalid status response")
	ErrEmptyDocument    = errors.New("empty document")
)

// Driver is the single contract both adapters implement: a connectivity
// probe and a dispatch call that hands back an attempt handle. Dispatch
// errors are returned synchronously; anything after a successful dispatch
// is reported through the handle.
type Driver interface {
	Name() string
	Connected() bool
	Print(ctx context.Context, doc *receipt.Document) (*Attempt, error)
}

// Attempt tracks one dispatched print action. It resolves at most once,
// either through Confirm (explicit completion signal) or Fail (device or
// spooler error after dispatch); an unresolved attempt is the completion
// tracker's timeout case.
type Attempt struct {
	ID           string
	JobID        string
	DispatchedAt time.Time

	once   sync.Once
	done   chan struct{}
	failed chan error
}

// NewAttempt creates an unresolved handle. The dispatcher stamps JobID after
// the adapter returns it; adapters never see job identity.
func NewAttempt() *Attempt {
	return &Attempt{
		ID:           uuid.New().String(),
		DispatchedAt: time.Now(),
		done:         make(chan struct{}),
		failed:       make(chan error, 1),
	}
}

// Confirm records the explicit "print finished" signal.
func (a *Attempt) Confirm() {
	a.once.Do(func() {
		close(a.done)
	})
}

// Fail records a post-dispatch error. Losing the race against Confirm is
// fine: the first resolution wins.
func (a *Attempt) Fail(err error) {
	a.once.Do(func() {
		a.failed <- err
	})
}

// Done is closed once the completion signal arrived.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Failed yields the post-dispatch error, if any.
func (a *Attempt) Failed() <-chan error {
	return a.failed
}
