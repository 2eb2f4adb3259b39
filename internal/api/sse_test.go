package api

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/stillcam/internal/api/models"
	"github.com/smazurov/stillcam/internal/events"
	"github.com/smazurov/stillcam/internal/logging"
)

// readEvents collects "event:" names from an SSE stream.
func readEvents(t *testing.T, resp *http.Response) <-chan string {
	t.Helper()
	names := make(chan string, 32)
	go func() {
		defer close(names)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				names <- name
			}
		}
	}()
	return names
}

func waitForEvent(t *testing.T, names <-chan string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case name, ok := <-names:
			if !ok {
				t.Fatalf("stream closed before %q", want)
			}
			if name == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestEventsStream(t *testing.T) {
	ts, bus := newHTTPServer(t, &Options{AuthUsername: "test", AuthPassword: "test"})
	creds := base64.StdEncoding.EncodeToString([]byte("test:test"))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/events?auth="+creds, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	names := readEvents(t, resp)
	// Initial snapshot of the current state.
	waitForEvent(t, names, "state-changed")

	bus.Publish(events.CaptureStartedEvent{RequestID: 4, Timestamp: time.Now().Format(time.RFC3339)})
	waitForEvent(t, names, "capture-started")

	bus.Publish(events.CaptureFailedEvent{RequestID: 4, Error: "capture session torn down"})
	waitForEvent(t, names, "capture-failed")
}

func TestEventsStream_RequiresAuth(t *testing.T) {
	ts, _ := newHTTPServer(t, &Options{AuthUsername: "test", AuthPassword: "test"})

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestLogs(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	env := newTestEnv(t, nil)

	logging.GetLogger("photos").Info("Photo saved", "path", "/tmp/a.jpg")
	logging.GetLogger("camera").Info("Camera opened", "camera_id", "0")
	logging.GetLogger("camera").Info("Capture requested", "request_id", 1)

	resp := env.api.Get("/api/logs?module=camera&limit=1")
	if resp.Code != 200 {
		t.Fatalf("GET /api/logs = %d: %s", resp.Code, resp.Body)
	}
	var logs models.LogsData
	if err := json.Unmarshal(resp.Body.Bytes(), &logs); err != nil {
		t.Fatal(err)
	}
	if logs.Count != 1 || logs.Entries[0].Message != "Capture requested" {
		t.Errorf("logs = %+v, want the newest camera entry", logs)
	}
}

func TestLogLevels(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	env := newTestEnv(t, nil)
	logging.GetLogger("camera")

	resp := env.api.Put("/api/logs/level", map[string]any{"module": "camera", "level": "debug"})
	if resp.Code != 200 {
		t.Fatalf("PUT level = %d: %s", resp.Code, resp.Body)
	}
	var levels struct {
		Levels map[string]string `json:"levels"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &levels); err != nil {
		t.Fatal(err)
	}
	if levels.Levels["camera"] != "debug" {
		t.Errorf("camera level = %q, want debug", levels.Levels["camera"])
	}

	if resp := env.api.Put("/api/logs/level", map[string]any{"level": "verbose"}); resp.Code != 422 {
		t.Errorf("PUT invalid level = %d, want 422", resp.Code)
	}

	resp = env.api.Get("/api/logs/level")
	if resp.Code != 200 || !strings.Contains(resp.Body.String(), `"camera":"debug"`) {
		t.Errorf("GET levels = %d: %s", resp.Code, resp.Body)
	}
}
