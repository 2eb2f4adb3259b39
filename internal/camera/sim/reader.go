package sim

import (
	"sync"

	"github.com/smazurov/stillcam/internal/camera"
)

// Reader is a simulated still image reader with a bounded buffer pool.
type Reader struct {
	size        camera.Size
	maxImages   int
	onAvailable func(camera.ImageReader)

	mu          sync.Mutex
	queue       [][]byte
	outstanding int
	acquired    int
	released    int
	closed      bool
	hold        bool
	held        int
	faults      []error
}

var _ camera.ImageReader = (*Reader)(nil)

// Size returns the still size the reader was created for.
func (r *Reader) Size() camera.Size {
	return r.size
}

// push queues an image and notifies the listener.
func (r *Reader) push(data []byte) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, data)
	if r.hold {
		r.held++
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if r.onAvailable != nil {
		r.onAvailable(r)
	}
}

// AcquireNextImage implements camera.ImageReader.
func (r *Reader) AcquireNextImage() (camera.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, camera.ErrReaderClosed
	}
	if len(r.faults) > 0 {
		err := r.faults[0]
		r.faults = r.faults[1:]
		// the frame is dropped with the fault
		if len(r.queue) > 0 {
			r.queue = r.queue[1:]
		}
		return nil, err
	}
	if len(r.queue) == 0 {
		return nil, nil
	}
	if r.outstanding >= r.maxImages {
		return nil, camera.ErrMaxImages
	}

	data := r.queue[0]
	r.queue = r.queue[1:]
	r.outstanding++
	r.acquired++
	return &frame{reader: r, planes: [][]byte{data}}, nil
}

// Close implements camera.ImageReader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.queue = nil
	return nil
}

func (r *Reader) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outstanding--
	r.released++
}

// FailNextAcquire makes the next AcquireNextImage drop its frame and return
// err. A nil err yields a nil image.
func (r *Reader) FailNextAcquire(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, err)
}

// HoldImages queues produced images without notifying the listener.
func (r *Reader) HoldImages() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hold = true
}

// DeliverHeld sends one notification per held image and stops holding.
func (r *Reader) DeliverHeld() int {
	r.mu.Lock()
	n := r.held
	r.held = 0
	r.hold = false
	r.mu.Unlock()

	for range n {
		if r.onAvailable != nil {
			r.onAvailable(r)
		}
	}
	return n
}

// Outstanding returns the number of acquired images not yet closed.
func (r *Reader) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstanding
}

// Acquired returns how many images were handed out.
func (r *Reader) Acquired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquired
}

// Released returns how many images were closed.
func (r *Reader) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Queued returns the number of images waiting to be acquired.
func (r *Reader) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Closed reports whether Close was called.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type frame struct {
	reader *Reader
	planes [][]byte
	once   sync.Once
}

func (i *frame) Planes() [][]byte {
	return i.planes
}

func (i *frame) Close() error {
	i.once.Do(i.reader.release)
	return nil
}
