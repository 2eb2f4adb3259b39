package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/stillcam/internal/api/models"
	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/led"
	"github.com/smazurov/stillcam/internal/logging"
	"github.com/smazurov/stillcam/internal/version"
)

const authRealm = `Basic realm="stillcam API"`

// DefaultCaptureTimeout bounds how long POST /api/camera/capture waits for
// the image.
const DefaultCaptureTimeout = 10 * time.Second

// CameraService is the part of camera.Controller the API drives.
type CameraService interface {
	Start(ctx context.Context) error
	Stop() error
	TakePicture(ctx context.Context) *camera.Capture
	SetFacing(f camera.Facing)
	SetFlash(mode camera.FlashMode) error
	SetDisplayRotation(r camera.Rotation)
	SurfaceAvailable(width, height int)
	SurfaceChanged(width, height int)
	SurfaceDestroyed()
	WaitForState(ctx context.Context, want camera.State) error
	Status() camera.Status
}

// PhotoSaver persists a captured photo and returns where it went.
type PhotoSaver interface {
	Save(p camera.Photo) (string, error)
}

// Options configures the API server.
type Options struct {
	AuthUsername   string
	AuthPassword   string
	CORSOrigin     string
	Camera         CameraService
	Photos         PhotoSaver    // optional, enables ?save=true
	EventBus       *events.Bus   // optional, enables /api/events
	LEDController  led.Controller // optional, enables /api/leds
	CaptureTimeout time.Duration
	StartTimeout   time.Duration
	// PrometheusHandler is served at GET /metrics without auth.
	PrometheusHandler http.Handler
}

// Server is the huma HTTP API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	camera     CameraService
	eventBus   *events.Bus
	logger     *slog.Logger
}

func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	unauthorized := func(ctx huma.Context, msg string, errs ...error) {
		ctx.SetHeader("WWW-Authenticate", authRealm)
		huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		// EventSource cannot set headers, so SSE clients pass ?auth=<base64>.
		encoded := ctx.Query("auth")
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		}
		if encoded == "" {
			unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			unauthorized(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			unauthorized(ctx, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// NewServer creates the API server on a Go 1.22+ ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.CORSOrigin != "" {
		corsConfig.AllowOrigin = opts.CORSOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("stillcam API", version.String())
	config.Info.Description = "Still capture camera control"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	server := newServer(humago.New(mux, config), opts)
	server.mux = mux

	server.api.UseMiddleware(NewCORSMiddleware(corsConfig))
	server.api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		server.api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

func newServer(api huma.API, opts *Options) *Server {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultCaptureTimeout
	}
	return &Server{
		api:      api,
		options:  opts,
		camera:   opts.Camera,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves HTTP on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting stillcam API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and every open connection, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	s.registerCameraRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerLEDRoutes()
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
