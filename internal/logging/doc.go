// Package logging provides structured logging with per-module log levels.
//
// # Overview
//
// Loggers are slog loggers tagged with a module attribute. Output is routed
// automatically:
//   - to the systemd journal when journald is available
//   - to stdout when a terminal, pipe, or file is connected
//   - to an in-memory ring buffer that backs GET /api/logs and the
//     log-entry server-sent event
//
// # Usage
//
// Initialize once at startup, usually from the [logging] table of the
// config file:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"camera": "debug",
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("camera")
//	logger.Info("Camera opened", "camera_id", id)
//
// Loggers may be created before Initialize; they start at info and pick up
// the configured level and the ring buffer once Initialize runs. Levels can
// be changed at runtime with SetModuleLevel.
//
// # Modules
//
//	camera  capture session state machine
//	sim     simulated camera backend
//	photos  photo persistence
//	led     shutter indicator
//	api     HTTP server
//	config  config file watcher
//
// # Viewing Logs
//
//	journalctl -t stillcam -f
//	journalctl -t stillcam MODULE=camera
//	journalctl -t stillcam REQUEST_ID=12
package logging
