package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/stillcam/cmd"
	"github.com/smazurov/stillcam/internal/api"
	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/camera/sim"
	"github.com/smazurov/stillcam/internal/config"
	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/led"
	"github.com/smazurov/stillcam/internal/logging"
	"github.com/smazurov/stillcam/internal/photos"
	"github.com/smazurov/stillcam/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"stillcam.toml"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CorsOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Camera settings
	CameraBackend        string `help:"Camera backend (sim)" default:"sim" toml:"camera.backend" env:"CAMERA_BACKEND"`
	CameraFacing         string `help:"Lens facing (back, front)" default:"back" toml:"camera.facing" env:"CAMERA_FACING"`
	CameraFlash          string `help:"Flash policy (off, on, torch, auto, red-eye)" default:"auto" toml:"camera.flash" env:"CAMERA_FLASH"`
	CameraRotation       int    `help:"Display rotation in degrees" default:"0" toml:"camera.rotation" env:"CAMERA_ROTATION"`
	CameraAutostart      bool   `help:"Open the camera at startup" default:"true" toml:"camera.autostart" env:"CAMERA_AUTOSTART"`
	CameraSurfaceWidth   int    `help:"Preview surface width" default:"1920" toml:"camera.surface_width" env:"CAMERA_SURFACE_WIDTH"`
	CameraSurfaceHeight  int    `help:"Preview surface height" default:"1080" toml:"camera.surface_height" env:"CAMERA_SURFACE_HEIGHT"`
	CameraOpenTimeout    string `help:"Wait for a previous session to close" default:"2500ms" toml:"camera.open_timeout" env:"CAMERA_OPEN_TIMEOUT"`
	CameraCaptureTimeout string `help:"Wait for a photo in API requests" default:"10s" toml:"camera.capture_timeout" env:"CAMERA_CAPTURE_TIMEOUT"`

	// Simulated backend settings
	SimFrameInterval string `help:"Simulated preview frame interval" default:"33ms" toml:"sim.frame_interval" env:"SIM_FRAME_INTERVAL"`
	SimConvergeAfter int    `help:"Metering frames before 3A converges, negative never" default:"3" toml:"sim.converge_after" env:"SIM_CONVERGE_AFTER"`
	SimImageSize     int    `help:"Long side of simulated stills in pixels" default:"640" toml:"sim.image_size" env:"SIM_IMAGE_SIZE"`

	// Photo settings
	PhotosDir     string `help:"Directory for saved photos" default:"photos" toml:"photos.dir" env:"PHOTOS_DIR"`
	PhotosUpright bool   `help:"Rotate saved photos upright" default:"false" toml:"photos.upright" env:"PHOTOS_UPRIGHT"`

	// Features settings
	FeaturesLedControl bool `help:"Drive the board LED as shutter indicator" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`
	FeaturesMetrics    bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"features.metrics_enabled" env:"FEATURES_METRICS"`

	// Logging settings; per-module levels live in the [logging] table
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func parseDuration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "option", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func newBackend(opts *Options, logger *slog.Logger) (camera.Backend, error) {
	switch opts.CameraBackend {
	case "sim":
		return sim.New(sim.Options{
			FrameInterval: parseDuration(logger, "sim.frame_interval", opts.SimFrameInterval, 33*time.Millisecond),
			ConvergeAfter: opts.SimConvergeAfter,
			ImageFactory:  sim.JPEGFactory(opts.SimImageSize),
			Logger:        logging.GetLogger("sim"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown camera backend %q", opts.CameraBackend)
	}
}

// cameraSettings validates the startup camera settings the same way the
// config watcher does.
func cameraSettings(opts *Options) (config.CameraSettings, error) {
	s := config.CameraSettings{Facing: opts.CameraFacing, Flash: opts.CameraFlash, Rotation: opts.CameraRotation}
	return s, s.Validate()
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		settings, err := cameraSettings(opts)
		if err != nil {
			logger.Error("Invalid camera settings", "error", err)
			os.Exit(1)
		}

		backend, err := newBackend(opts, logger)
		if err != nil {
			logger.Error("Failed to create camera backend", "error", err)
			os.Exit(1)
		}

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.NewLogEntryEvent(entry))
		})

		ctrl := camera.NewController(camera.Options{
			Backend:     backend,
			EventBus:    eventBus,
			Facing:      settings.FacingValue(),
			Flash:       settings.FlashValue(),
			Rotation:    settings.RotationValue(),
			OpenTimeout: parseDuration(logger, "camera.open_timeout", opts.CameraOpenTimeout, camera.DefaultOpenTimeout),
		})

		saver, err := photos.NewSaver(photos.Options{Dir: opts.PhotosDir, Upright: opts.PhotosUpright})
		if err != nil {
			logger.Warn("Photo saving disabled", "error", err)
		}

		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLedControl {
			logger.Info("LED control enabled, initializing")
			var shutterLED string
			ledController, shutterLED = led.New(logging.GetLogger("led"))
			ledManager = led.NewManager(ledController, shutterLED, eventBus, logging.GetLogger("led"))
		}

		apiOpts := &api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			CORSOrigin:     opts.CorsOrigin,
			Camera:         ctrl,
			EventBus:       eventBus,
			CaptureTimeout: parseDuration(logger, "camera.capture_timeout", opts.CameraCaptureTimeout, api.DefaultCaptureTimeout),
		}
		if saver != nil {
			apiOpts.Photos = saver
		}
		if ledController != nil {
			apiOpts.LEDController = ledController
		}
		if opts.FeaturesMetrics {
			apiOpts.PrometheusHandler = promhttp.Handler()
		}
		server := api.NewServer(apiOpts)

		// Keys already in the file at startup were folded into opts above;
		// only later edits are applied.
		initial, err := config.LoadCameraUpdate(opts.Config)
		if err != nil {
			logger.Debug("No camera settings in config file", "error", err)
		}
		reloader := config.NewCameraReloader(ctrl, initial, logging.GetLogger("config"))
		watcher := config.NewConfigWatcher(opts.Config, config.LoadCameraUpdate, nil)
		watcher.OnReload(reloader.Apply)

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		watchdogCtx, stopWatchdog := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if ledManager != nil {
				ledManager.Start()
			}
			unfollow := notifier.FollowCamera(eventBus)
			defer unfollow()

			if startErr := watcher.Start(); startErr != nil {
				logger.Info("Config file not watched", "path", opts.Config, "error", startErr)
			}

			if opts.CameraAutostart {
				ctrl.SurfaceAvailable(opts.CameraSurfaceWidth, opts.CameraSurfaceHeight)
				if startErr := ctrl.Start(context.Background()); startErr != nil {
					logger.Error("Failed to start camera", "error", startErr)
				}
			}

			go notifier.RunWatchdog(watchdogCtx)
			notifier.Ready()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			stopWatchdog()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := ctrl.Stop(); stopErr != nil {
				logger.Warn("Errors while closing camera", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Error stopping config watcher", "error", stopErr)
			}
			if ledManager != nil {
				ledManager.Stop()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateSnapCmd())

	cli.Run()
}
