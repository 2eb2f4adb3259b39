package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/smazurov/stillcam/internal/api/models"
	"github.com/smazurov/stillcam/internal/camera"
	"github.com/smazurov/stillcam/internal/camera/sim"
	"github.com/smazurov/stillcam/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tagFactory(req camera.CaptureRequest, _ camera.Size) ([]byte, error) {
	return fmt.Appendf(nil, "still-%d", req.Tag), nil
}

type fakeSaver struct {
	mu     sync.Mutex
	photos []camera.Photo
	err    error
}

func (f *fakeSaver) Save(p camera.Photo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.photos = append(f.photos, p)
	return fmt.Sprintf("/photos/%d.jpg", p.RequestID), nil
}

type testEnv struct {
	api     humatest.TestAPI
	ctrl    *camera.Controller
	backend *sim.Backend
	bus     *events.Bus
	opts    *Options
}

func newTestEnv(t *testing.T, opts *Options) *testEnv {
	t.Helper()
	backend := sim.New(sim.Options{ImageFactory: tagFactory, Logger: testLogger()})
	bus := events.New()
	ctrl := camera.NewController(camera.Options{Backend: backend, EventBus: bus, Logger: testLogger()})
	t.Cleanup(func() { _ = ctrl.Stop() })

	if opts == nil {
		opts = &Options{}
	}
	opts.Camera = ctrl
	opts.EventBus = bus
	if opts.CaptureTimeout == 0 {
		opts.CaptureTimeout = 2 * time.Second
	}

	_, tapi := humatest.New(t)
	s := newServer(tapi, opts)
	s.registerRoutes()
	return &testEnv{api: tapi, ctrl: ctrl, backend: backend, bus: bus, opts: opts}
}

func (e *testEnv) startPreview(t *testing.T) {
	t.Helper()
	if resp := e.api.Put("/api/camera/surface", map[string]any{"width": 1080, "height": 1920}); resp.Code != http.StatusOK {
		t.Fatalf("PUT surface = %d: %s", resp.Code, resp.Body)
	}
	resp := e.api.Post("/api/camera/start?wait=true")
	if resp.Code != http.StatusOK {
		t.Fatalf("POST start = %d: %s", resp.Code, resp.Body)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.State != string(camera.StatePreviewing) {
		t.Fatalf("state after start = %s, want previewing", st.State)
	}
}

func decodeStatus(t *testing.T, body []byte) models.CameraStatusData {
	t.Helper()
	var st models.CameraStatusData
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v: %s", err, body)
	}
	return st
}

func decodeCapture(t *testing.T, body []byte) models.CaptureData {
	t.Helper()
	var c models.CaptureData
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("decode capture: %v: %s", err, body)
	}
	return c
}

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.api.Get("/api/health"); resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Errorf("GET /api/health = %d: %s", resp.Code, resp.Body)
	}
	resp := env.api.Get("/api/version")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "go_version") {
		t.Errorf("GET /api/version = %d: %s", resp.Code, resp.Body)
	}
}

func TestCameraStatus_Closed(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.api.Get("/api/camera")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /api/camera = %d", resp.Code)
	}
	st := decodeStatus(t, resp.Body.Bytes())
	if st.State != "closed" || st.Facing != "back" || st.Flash != "auto" {
		t.Errorf("status = %+v", st)
	}
}

func TestStartCamera(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	st := decodeStatus(t, env.api.Get("/api/camera").Body.Bytes())
	if st.CameraID != "0" {
		t.Errorf("camera id = %q, want 0", st.CameraID)
	}
	if st.PreviewSize != (models.SizeData{Width: 1920, Height: 1080}) {
		t.Errorf("preview size = %+v", st.PreviewSize)
	}
	if st.Surface != (models.SizeData{Width: 1080, Height: 1920}) {
		t.Errorf("surface = %+v", st.Surface)
	}

	if resp := env.api.Post("/api/camera/start"); resp.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", resp.Code)
	}
}

func TestStartCamera_WithoutSurfaceWaitsForOpen(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.api.Post("/api/camera/start?wait=true")
	if resp.Code != http.StatusOK {
		t.Fatalf("POST start = %d: %s", resp.Code, resp.Body)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.State != "opened" {
		t.Errorf("state = %s, want opened", st.State)
	}
}

func TestStartCamera_OpenError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.SetOpenError(errors.New("camera in use"))

	if resp := env.api.Post("/api/camera/start"); resp.Code != http.StatusInternalServerError {
		t.Errorf("POST start = %d, want 500", resp.Code)
	}
}

func TestStopCamera(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	for range 2 {
		resp := env.api.Post("/api/camera/stop")
		if resp.Code != http.StatusOK {
			t.Fatalf("POST stop = %d", resp.Code)
		}
		if st := decodeStatus(t, resp.Body.Bytes()); st.State != "closed" {
			t.Errorf("state = %s, want closed", st.State)
		}
	}
}

func TestCapture(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	resp := env.api.Post("/api/camera/capture")
	if resp.Code != http.StatusOK {
		t.Fatalf("POST capture = %d: %s", resp.Code, resp.Body)
	}
	c := decodeCapture(t, resp.Body.Bytes())
	data, err := base64.StdEncoding.DecodeString(c.Image)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "still-1" || c.RequestID != 1 || c.Bytes != len(data) {
		t.Errorf("capture = %+v data %q", c, data)
	}
	if c.Rotation != 90 {
		t.Errorf("rotation = %d, want 90", c.Rotation)
	}
	if c.Path != "" {
		t.Errorf("path = %q without save", c.Path)
	}
}

func TestCapture_Unavailable(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.api.Post("/api/camera/capture"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("POST capture while closed = %d, want 503", resp.Code)
	}
}

func TestCapture_HardwareFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)
	env.backend.Device().Session().FailNextStill(camera.FailureError)

	if resp := env.api.Post("/api/camera/capture"); resp.Code != http.StatusBadGateway {
		t.Errorf("POST capture = %d, want 502: %s", resp.Code, resp.Body)
	}
}

func TestCapture_Timeout(t *testing.T) {
	env := newTestEnv(t, &Options{CaptureTimeout: 50 * time.Millisecond})
	env.startPreview(t)
	env.backend.Reader().HoldImages()

	if resp := env.api.Post("/api/camera/capture"); resp.Code != http.StatusGatewayTimeout {
		t.Errorf("POST capture = %d, want 504", resp.Code)
	}
}

func TestCapture_Save(t *testing.T) {
	saver := &fakeSaver{}
	env := newTestEnv(t, &Options{Photos: saver})
	env.startPreview(t)

	resp := env.api.Post("/api/camera/capture?save=true")
	if resp.Code != http.StatusOK {
		t.Fatalf("POST capture = %d: %s", resp.Code, resp.Body)
	}
	if c := decodeCapture(t, resp.Body.Bytes()); c.Path != "/photos/1.jpg" {
		t.Errorf("path = %q", c.Path)
	}
	if len(saver.photos) != 1 || string(saver.photos[0].Data) != "still-1" {
		t.Errorf("saved photos = %+v", saver.photos)
	}

	saver.err = errors.New("disk full")
	if resp := env.api.Post("/api/camera/capture?save=true"); resp.Code != http.StatusInternalServerError {
		t.Errorf("POST capture with failing saver = %d, want 500", resp.Code)
	}
}

func TestCapture_SaveNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	if resp := env.api.Post("/api/camera/capture?save=true"); resp.Code != http.StatusBadRequest {
		t.Errorf("POST capture = %d, want 400", resp.Code)
	}
}

func TestSetFlash(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	resp := env.api.Put("/api/camera/flash", map[string]any{"mode": "red-eye"})
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT flash = %d: %s", resp.Code, resp.Body)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.Flash != "red-eye" {
		t.Errorf("flash = %s, want red-eye", st.Flash)
	}
	rep, ok := env.backend.Device().Session().Repeating()
	if !ok || rep.AEMode != camera.AEModeOnAutoFlashRedEye {
		t.Errorf("repeating AE mode = %v, want auto flash with red-eye reduction", rep.AEMode)
	}

	if resp := env.api.Put("/api/camera/flash", map[string]any{"mode": "strobe"}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT flash strobe = %d, want 422", resp.Code)
	}
}

func TestSetFacing_RestartsSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	resp := env.api.Put("/api/camera/facing", map[string]any{"facing": "front"})
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT facing = %d: %s", resp.Code, resp.Body)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.Facing != "front" || st.CameraID != "1" {
		t.Errorf("status = %+v, want front camera 1", st)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.ctrl.State() != camera.StatePreviewing {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want previewing on the front camera", env.ctrl.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if id := env.backend.Device().ID(); id != "1" {
		t.Errorf("open device = %s, want 1", id)
	}
}

func TestSetFacing_WhileOpening(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.HoldOpen()
	if resp := env.api.Put("/api/camera/surface", map[string]any{"width": 1080, "height": 1920}); resp.Code != http.StatusOK {
		t.Fatalf("PUT surface = %d", resp.Code)
	}
	if resp := env.api.Post("/api/camera/start"); resp.Code != http.StatusOK {
		t.Fatalf("POST start = %d: %s", resp.Code, resp.Body)
	}
	st := decodeStatus(t, env.api.Get("/api/camera").Body.Bytes())
	if st.State != "closed" || !st.Opening {
		t.Fatalf("status = %+v, want closed and opening", st)
	}

	// The facing change waits for the open in flight, then reopens.
	release := time.AfterFunc(50*time.Millisecond, env.backend.CompleteOpen)
	defer release.Stop()
	resp := env.api.Put("/api/camera/facing", map[string]any{"facing": "front"})
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT facing = %d: %s", resp.Code, resp.Body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for env.ctrl.State() != camera.StatePreviewing {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want previewing on the front camera", env.ctrl.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if id := env.backend.Device().ID(); id != "1" {
		t.Errorf("open device = %s, want 1", id)
	}
}

func TestSetFacing_WhileClosed(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.api.Put("/api/camera/facing", map[string]any{"facing": "front"})
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT facing = %d", resp.Code)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.State != "closed" || st.Facing != "front" {
		t.Errorf("status = %+v, want closed and front", st)
	}
}

func TestSetRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	resp := env.api.Put("/api/camera/rotation", map[string]any{"degrees": 270})
	if resp.Code != http.StatusOK {
		t.Fatalf("PUT rotation = %d: %s", resp.Code, resp.Body)
	}
	if st := decodeStatus(t, resp.Body.Bytes()); st.Rotation != 270 {
		t.Errorf("rotation = %d, want 270", st.Rotation)
	}

	// Back sensor at 90 with the display at 270.
	c := decodeCapture(t, env.api.Post("/api/camera/capture").Body.Bytes())
	if c.Rotation != 0 {
		t.Errorf("photo rotation = %d, want 0", c.Rotation)
	}

	if resp := env.api.Put("/api/camera/rotation", map[string]any{"degrees": 45}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT rotation 45 = %d, want 422", resp.Code)
	}
}

func TestSetSurface(t *testing.T) {
	env := newTestEnv(t, nil)
	env.startPreview(t)

	resp := env.api.Put("/api/camera/surface", map[string]any{"width": 720, "height": 1280})
	if st := decodeStatus(t, resp.Body.Bytes()); st.Surface != (models.SizeData{Width: 720, Height: 1280}) {
		t.Errorf("surface after change = %+v", st.Surface)
	}

	resp = env.api.Put("/api/camera/surface", map[string]any{"width": 0, "height": 0})
	st := decodeStatus(t, resp.Body.Bytes())
	if st.Surface != (models.SizeData{}) || st.State != "previewing" {
		t.Errorf("after destroy: surface = %+v state = %s", st.Surface, st.State)
	}

	if resp := env.api.Put("/api/camera/surface", map[string]any{"width": 0, "height": 100}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT half surface = %d, want 422", resp.Code)
	}
}

func TestCaptureError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{camera.ErrUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("wait: %w", camera.ErrSessionTornDown), http.StatusBadGateway},
		{&camera.CaptureFailedError{RequestID: 3, Reason: camera.FailureError}, http.StatusBadGateway},
		{camera.ErrBufferExhausted, http.StatusBadGateway},
		{camera.ErrImageRead, http.StatusBadGateway},
		{camera.ErrReaderClosed, http.StatusBadGateway},
		{camera.ErrCanceled, 499},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			var se interface{ GetStatus() int }
			if !errors.As(captureError(tt.err), &se) || se.GetStatus() != tt.want {
				t.Errorf("captureError(%v) status = %v, want %d", tt.err, se, tt.want)
			}
		})
	}
}

type mockLED struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockLED) Set(ledType string, enabled bool, pattern string) error {
	if ledType != "user" {
		return errors.New("unknown LED")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("%s:%v:%s", ledType, enabled, pattern))
	return nil
}

func (m *mockLED) Available() []string { return []string{"user"} }

func (m *mockLED) Patterns() []string { return []string{"solid", "blink"} }

func TestLEDRoutes(t *testing.T) {
	ctrl := &mockLED{}
	env := newTestEnv(t, &Options{LEDController: ctrl})

	resp := env.api.Get("/api/leds/capabilities")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"user"`) {
		t.Errorf("GET capabilities = %d: %s", resp.Code, resp.Body)
	}

	if resp := env.api.Post("/api/leds", map[string]any{"type": "user", "enabled": true, "pattern": "blink"}); resp.Code >= 300 {
		t.Errorf("POST led = %d: %s", resp.Code, resp.Body)
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != "user:true:blink" {
		t.Errorf("calls = %v", ctrl.calls)
	}

	if resp := env.api.Post("/api/leds", map[string]any{"type": "missing", "enabled": true}); resp.Code != http.StatusBadRequest {
		t.Errorf("POST unknown led = %d, want 400", resp.Code)
	}
}

func TestLEDRoutes_NotRegisteredWithoutController(t *testing.T) {
	env := newTestEnv(t, nil)
	if resp := env.api.Get("/api/leds/capabilities"); resp.Code != http.StatusNotFound {
		t.Errorf("GET capabilities = %d, want 404", resp.Code)
	}
}

func newHTTPServer(t *testing.T, opts *Options) (*httptest.Server, *events.Bus) {
	t.Helper()
	env := newTestEnv(t, nil)
	opts.Camera = env.ctrl
	opts.EventBus = env.bus
	server := NewServer(opts)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, env.bus
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newHTTPServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret"})
	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	wrong := base64.StdEncoding.EncodeToString([]byte("admin:nope"))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health needs no auth", "/api/health", "", http.StatusOK},
		{"missing credentials", "/api/camera", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/camera", "Bearer token", http.StatusUnauthorized},
		{"wrong password", "/api/camera", "Basic " + wrong, http.StatusUnauthorized},
		{"bad base64", "/api/camera", "Basic !!!", http.StatusUnauthorized},
		{"valid header", "/api/camera", "Basic " + creds, http.StatusOK},
		{"valid query", "/api/camera?auth=" + creds, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newHTTPServer(t, &Options{CORSOrigin: "http://camera.local"})

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodOptions, ts.URL+"/api/camera/capture", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://camera.local" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "stillcam_camera_capture_requests_total 0\n")
	})
	ts, _ := newHTTPServer(t, &Options{AuthUsername: "admin", AuthPassword: "secret", PrometheusHandler: metrics})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "stillcam_camera") {
		t.Errorf("GET /metrics = %d: %s", resp.StatusCode, body)
	}
}
