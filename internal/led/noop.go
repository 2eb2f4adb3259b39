package led

import "github.com/smazurov/stillcam/internal/logging"

// noop is used on boards without a known shutter LED.
type noop struct {
	logger logging.Logger
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(ledType string, enabled bool, pattern string) error {
	n.logger.Debug("LED control not available (no-op)",
		"led_type", ledType,
		"enabled", enabled,
		"pattern", pattern)
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}

func (n *noop) Patterns() []string {
	return []string{}
}
