package camera

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCorrelator_ResolveEarliestInOrder(t *testing.T) {
	c := newCorrelator(testLogger(), nil)
	captures := make([]*Capture, 3)
	for i := range captures {
		id := RequestID(i + 1)
		captures[i] = newCapture(id)
		c.register(id, captures[i])
	}

	for i := range captures {
		if !c.resolveEarliest(Photo{Data: []byte{byte(i)}}) {
			t.Fatalf("resolveEarliest() #%d = false", i)
		}
	}

	for i, capture := range captures {
		select {
		case <-capture.Done():
		default:
			t.Fatalf("capture %d not done", i+1)
		}
		photo, err := capture.Wait(t.Context())
		if err != nil {
			t.Fatalf("capture %d: %v", i+1, err)
		}
		if photo.RequestID != RequestID(i+1) || photo.Data[0] != byte(i) {
			t.Errorf("capture %d got photo %+v", i+1, photo)
		}
	}

	if c.len() != 0 {
		t.Errorf("len() = %d, want 0", c.len())
	}
}

func TestCorrelator_ResolveEmpty(t *testing.T) {
	c := newCorrelator(testLogger(), nil)
	if c.resolveEarliest(Photo{}) {
		t.Error("resolveEarliest() on empty map = true")
	}
	if c.resolve(4, Photo{}) {
		t.Error("resolve() on missing id = true")
	}
	if c.fail(4, errors.New("x")) {
		t.Error("fail() on missing id = true")
	}
}

func TestCorrelator_FailByID(t *testing.T) {
	c := newCorrelator(testLogger(), nil)
	first, second, third := newCapture(1), newCapture(2), newCapture(3)
	c.register(1, first)
	c.register(2, second)
	c.register(3, third)

	boom := errors.New("boom")
	if !c.fail(2, boom) {
		t.Fatal("fail(2) = false")
	}
	if c.contains(2) {
		t.Error("contains(2) after fail")
	}
	if _, err := second.Wait(t.Context()); !errors.Is(err, boom) {
		t.Errorf("second capture error = %v, want %v", err, boom)
	}

	// The next image still goes to the oldest entry.
	if id, _ := c.earliest(); id != 1 {
		t.Errorf("earliest() = %d, want 1", id)
	}
	c.resolveEarliest(Photo{})
	if id, _ := c.earliest(); id != 3 {
		t.Errorf("earliest() = %d, want 3", id)
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	var completed []RequestID
	c := newCorrelator(testLogger(), func(id RequestID, capture *Capture, _ Photo, err error) {
		completed = append(completed, id)
		capture.fail(err)
	})

	captures := []*Capture{newCapture(1), newCapture(2), newCapture(3)}
	for i, capture := range captures {
		c.register(RequestID(i+1), capture)
	}

	if n := c.failAll(ErrSessionTornDown); n != 3 {
		t.Fatalf("failAll() = %d, want 3", n)
	}
	if n := c.failAll(ErrSessionTornDown); n != 0 {
		t.Fatalf("second failAll() = %d, want 0", n)
	}
	if len(completed) != 3 {
		t.Errorf("completed %d captures, want 3", len(completed))
	}
	for i, capture := range captures {
		if _, err := capture.Wait(t.Context()); !errors.Is(err, ErrSessionTornDown) {
			t.Errorf("capture %d error = %v", i+1, err)
		}
	}
}

func TestCorrelator_RegisterOutOfOrderPanics(t *testing.T) {
	c := newCorrelator(testLogger(), nil)
	c.register(5, newCapture(5))

	defer func() {
		if recover() == nil {
			t.Error("register() with a smaller id should panic")
		}
	}()
	c.register(5, newCapture(5))
}
