package led

import (
	"sync"

	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/logging"
)

// Manager turns camera events into shutter LED patterns: off while the
// camera is closed, solid while it is open, blinking while a capture is
// being exposed.
type Manager struct {
	controller Controller
	ledType    string
	eventBus   *events.Bus
	logger     logging.Logger

	unsubscribe []func()

	mu       sync.Mutex
	open     bool
	inflight map[uint64]bool // request ID -> started, false if it finished first
	current  string
}

// NewManager creates a manager that drives ledType on controller.
func NewManager(controller Controller, ledType string, eventBus *events.Bus, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	return &Manager{
		controller: controller,
		ledType:    ledType,
		eventBus:   eventBus,
		logger:     logger,
		inflight:   make(map[uint64]bool),
	}
}

// Start subscribes to camera events and switches the LED off.
func (m *Manager) Start() {
	m.unsubscribe = append(m.unsubscribe,
		m.eventBus.Subscribe(func(events.CameraOpenedEvent) {
			m.update(func() { m.open = true })
		}),
		m.eventBus.Subscribe(func(events.CameraClosedEvent) {
			m.update(func() {
				m.open = false
				clear(m.inflight)
			})
		}),
		m.eventBus.Subscribe(func(e events.CaptureStartedEvent) {
			m.update(func() { m.begin(e.RequestID) })
		}),
		m.eventBus.Subscribe(func(e events.CaptureSucceededEvent) {
			m.update(func() { m.finish(e.RequestID) })
		}),
		m.eventBus.Subscribe(func(e events.CaptureFailedEvent) {
			m.update(func() { m.finish(e.RequestID) })
		}),
	)

	m.update(func() {})
	m.logger.Info("LED manager started", "led_type", m.ledType)
}

// Stop unsubscribes and switches the LED off.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil

	m.update(func() {
		m.open = false
		clear(m.inflight)
	})
	m.logger.Info("LED manager stopped")
}

// Controller returns the underlying LED controller.
func (m *Manager) Controller() Controller {
	return m.controller
}

// Pattern returns the pattern last applied, empty when the LED is off.
func (m *Manager) Pattern() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// begin and finish may arrive in either order; events of different types
// are delivered independently. Starts arrive in request order and request
// IDs only grow, so a finished capture with a lower ID than a new start
// never started and is dropped.
func (m *Manager) begin(id uint64) {
	for other, started := range m.inflight {
		if !started && other < id {
			delete(m.inflight, other)
		}
	}
	if started, seen := m.inflight[id]; seen && !started {
		delete(m.inflight, id)
		return
	}
	m.inflight[id] = true
}

func (m *Manager) finish(id uint64) {
	if _, seen := m.inflight[id]; seen {
		delete(m.inflight, id)
		return
	}
	m.inflight[id] = false
}

func (m *Manager) exposing() bool {
	for _, started := range m.inflight {
		if started {
			return true
		}
	}
	return false
}

func (m *Manager) update(mutate func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mutate()

	pattern := ""
	switch {
	case m.exposing():
		pattern = PatternBlink
	case m.open:
		pattern = PatternSolid
	}
	if pattern == m.current && m.current != "" {
		return
	}
	m.current = pattern

	var err error
	if pattern == "" {
		err = m.controller.Set(m.ledType, false, PatternSolid)
	} else {
		err = m.controller.Set(m.ledType, true, pattern)
	}
	if err != nil {
		m.logger.Warn("Failed to set shutter LED", "led_type", m.ledType, "pattern", pattern, "error", err)
		return
	}
	m.logger.Debug("Shutter LED updated", "led_type", m.ledType, "pattern", pattern)
}
