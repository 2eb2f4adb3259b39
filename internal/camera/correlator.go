package camera

import (
	"fmt"
	"slices"

	"github.com/smazurov/stillcam/internal/logging"
)

// completeFunc finishes a capture taken out of the correlator.
type completeFunc func(id RequestID, capture *Capture, photo Photo, err error)

// correlator maps request ids to pending captures, earliest first.
// It is not safe for concurrent use; the controller guards it with its mutex.
type correlator struct {
	ids      []RequestID // ascending
	entries  map[RequestID]*Capture
	complete completeFunc
	logger   logging.Logger
}

func newCorrelator(logger logging.Logger, complete completeFunc) *correlator {
	if complete == nil {
		complete = func(_ RequestID, capture *Capture, photo Photo, err error) {
			if err != nil {
				capture.fail(err)
				return
			}
			capture.resolve(photo)
		}
	}
	return &correlator{
		entries:  make(map[RequestID]*Capture),
		complete: complete,
		logger:   logger,
	}
}

// register adds a pending capture. Ids must be strictly increasing.
func (c *correlator) register(id RequestID, capture *Capture) {
	if n := len(c.ids); n > 0 && id <= c.ids[n-1] {
		panic(fmt.Sprintf("camera: request id %d registered after %d", id, c.ids[n-1]))
	}
	c.ids = append(c.ids, id)
	c.entries[id] = capture
}

// take removes and returns the capture registered under id.
func (c *correlator) take(id RequestID) (*Capture, bool) {
	capture, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	if i, found := slices.BinarySearch(c.ids, id); found {
		c.ids = slices.Delete(c.ids, i, i+1)
	}
	return capture, true
}

// earliest returns the oldest pending id.
func (c *correlator) earliest() (RequestID, bool) {
	if len(c.ids) == 0 {
		return 0, false
	}
	return c.ids[0], true
}

// get returns the capture registered under id without removing it.
func (c *correlator) get(id RequestID) (*Capture, bool) {
	capture, ok := c.entries[id]
	return capture, ok
}

// resolve completes the capture registered under id with a photo.
func (c *correlator) resolve(id RequestID, photo Photo) bool {
	capture, ok := c.take(id)
	if !ok {
		c.logger.Error("No pending capture to resolve", "request_id", id)
		return false
	}
	photo.RequestID = id
	c.complete(id, capture, photo, nil)
	return true
}

// resolveEarliest completes the oldest pending capture with a photo.
func (c *correlator) resolveEarliest(photo Photo) bool {
	id, ok := c.earliest()
	if !ok {
		c.logger.Error("No pending capture to resolve")
		return false
	}
	return c.resolve(id, photo)
}

// fail completes the capture registered under id with err.
func (c *correlator) fail(id RequestID, err error) bool {
	capture, ok := c.take(id)
	if !ok {
		c.logger.Error("No pending capture to fail", "request_id", id, "error", err)
		return false
	}
	c.complete(id, capture, Photo{}, err)
	return true
}

// failAll drains every pending capture with err and returns how many there were.
func (c *correlator) failAll(err error) int {
	ids, entries := c.ids, c.entries
	c.ids = nil
	c.entries = make(map[RequestID]*Capture)

	for _, id := range ids {
		c.complete(id, entries[id], Photo{}, err)
	}
	return len(ids)
}

func (c *correlator) len() int {
	return len(c.ids)
}

func (c *correlator) contains(id RequestID) bool {
	_, ok := c.entries[id]
	return ok
}
