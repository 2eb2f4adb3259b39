package camera

import (
	"context"
	"sync"
	"sync/atomic"
)

// Photo is a captured still image.
type Photo struct {
	RequestID RequestID
	// Data is the first image plane, usually a JPEG.
	Data []byte
	// Rotation is the clockwise rotation in degrees that makes Data upright.
	Rotation int
}

// Capture is the single-shot result of one TakePicture call.
// Exactly one of a Photo or an error is delivered.
type Capture struct {
	id       RequestID
	done     chan struct{}
	once     sync.Once
	disposed atomic.Bool

	photo Photo
	err   error
}

func newCapture(id RequestID) *Capture {
	return &Capture{id: id, done: make(chan struct{})}
}

// failedCapture returns a capture that is already complete with err.
func failedCapture(err error) *Capture {
	c := newCapture(0)
	c.complete(Photo{}, err)
	return c
}

// ID returns the request id, or zero for captures rejected synchronously.
func (c *Capture) ID() RequestID {
	return c.id
}

// Done is closed once the capture has a result.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the capture completes or ctx is done.
func (c *Capture) Wait(ctx context.Context) (Photo, error) {
	select {
	case <-c.done:
		return c.photo, c.err
	case <-ctx.Done():
		return Photo{}, ctx.Err()
	}
}

// Cancel marks the capture as no longer wanted and completes it with
// ErrCanceled. The session still drains the image buffer for it.
func (c *Capture) Cancel() {
	c.disposed.Store(true)
	c.complete(Photo{}, ErrCanceled)
}

// watch cancels the capture when ctx is done before a result arrives.
func (c *Capture) watch(ctx context.Context) {
	if ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, c.Cancel)
	go func() {
		<-c.done
		stop()
	}()
}

// Disposed reports whether Cancel was called.
func (c *Capture) Disposed() bool {
	return c.disposed.Load()
}

func (c *Capture) resolve(p Photo) bool {
	return c.complete(p, nil)
}

func (c *Capture) fail(err error) bool {
	return c.complete(Photo{}, err)
}

func (c *Capture) complete(p Photo, err error) bool {
	completed := false
	c.once.Do(func() {
		c.photo = p
		c.err = err
		completed = true
		close(c.done)
	})
	return completed
}
