package led

// Controller abstracts LED hardware control across different SBC boards.
type Controller interface {
	// Set switches an LED on or off. pattern is one of Patterns() or a raw
	// trigger name; empty leaves the current pattern alone.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []string
}

// Pattern names understood by every controller.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
)
