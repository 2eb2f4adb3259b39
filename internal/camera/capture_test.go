package camera

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCapture_CompletesOnce(t *testing.T) {
	c := newCapture(1)
	if !c.resolve(Photo{Data: []byte("jpeg")}) {
		t.Fatal("first resolve() = false")
	}
	if c.fail(errors.New("late")) {
		t.Error("fail() after resolve() = true")
	}
	if c.resolve(Photo{}) {
		t.Error("second resolve() = true")
	}

	photo, err := c.Wait(t.Context())
	if err != nil || string(photo.Data) != "jpeg" {
		t.Errorf("Wait() = %q, %v", photo.Data, err)
	}
}

func TestCapture_Cancel(t *testing.T) {
	c := newCapture(1)
	c.Cancel()

	if !c.Disposed() {
		t.Error("Disposed() = false after Cancel()")
	}
	if _, err := c.Wait(t.Context()); !errors.Is(err, ErrCanceled) {
		t.Errorf("Wait() error = %v, want %v", err, ErrCanceled)
	}
	if c.resolve(Photo{}) {
		t.Error("resolve() after Cancel() = true")
	}
}

func TestCapture_WaitContext(t *testing.T) {
	c := newCapture(1)
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestCapture_WatchCancelsOnContextDone(t *testing.T) {
	c := newCapture(1)
	ctx, cancel := context.WithCancel(t.Context())
	c.watch(ctx)
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("capture not canceled after context cancel")
	}
	if !c.Disposed() {
		t.Error("Disposed() = false after context cancel")
	}
}

func TestFailedCapture(t *testing.T) {
	c := failedCapture(ErrUnavailable)
	if c.ID() != 0 {
		t.Errorf("ID() = %d, want 0", c.ID())
	}
	if _, err := c.Wait(t.Context()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Wait() error = %v, want %v", err, ErrUnavailable)
	}
}
