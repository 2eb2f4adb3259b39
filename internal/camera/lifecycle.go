package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultOpenTimeout bounds how long an open waits for a previous close.
const DefaultOpenTimeout = 2500 * time.Millisecond

// openCloseToken keeps an open and a close from running against the device
// at the same time. The token taken for an open is returned by the device
// callback that reports the outcome, so release tolerates being called when
// nothing is held.
type openCloseToken struct {
	sem  *semaphore.Weighted
	mu   sync.Mutex
	held bool
}

func newOpenCloseToken() *openCloseToken {
	return &openCloseToken{sem: semaphore.NewWeighted(1)}
}

// acquireForOpen waits at most timeout for the token.
func (t *openCloseToken) acquireForOpen(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrOpenTimeout, timeout)
		}
		return err
	}
	t.markHeld()
	return nil
}

// acquireForClose waits for the token without a bound.
func (t *openCloseToken) acquireForClose() {
	// Acquire only fails on a done context.
	_ = t.sem.Acquire(context.Background(), 1)
	t.markHeld()
}

// release returns the token if it is held.
func (t *openCloseToken) release() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.held {
		return false
	}
	t.held = false
	t.sem.Release(1)
	return true
}

func (t *openCloseToken) markHeld() {
	t.mu.Lock()
	t.held = true
	t.mu.Unlock()
}
