// Package systemd reports service readiness, status and watchdog pings to
// systemd through sd_notify.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/logging"
)

// notifyFunc matches daemon.SdNotify.
type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier sends sd_notify messages. Outside a systemd unit every call is a
// no-op.
type Notifier struct {
	notify   notifyFunc
	watchdog func(unsetEnvironment bool) (time.Duration, error)
	logger   logging.Logger
}

// NewNotifier returns a Notifier using the NOTIFY_SOCKET of the process.
func NewNotifier(logger logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.GetLogger("systemd")
	}
	return &Notifier{
		notify:   daemon.SdNotify,
		watchdog: daemon.SdWatchdogEnabled,
		logger:   logger,
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready tells systemd the service finished starting.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd the service is shutting down.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// FollowCamera mirrors camera state changes into the status line until the
// returned function is called.
func (n *Notifier) FollowCamera(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.CameraStateChangedEvent) {
		n.Status("camera " + e.State)
	})
}

// RunWatchdog pings the watchdog at half the configured interval until ctx
// is done. It returns immediately when the unit has no WatchdogSec.
func (n *Notifier) RunWatchdog(ctx context.Context) {
	interval, err := n.watchdog(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	n.logger.Info("Watchdog enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
