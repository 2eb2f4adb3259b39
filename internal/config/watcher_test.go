package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/stillcam/internal/camera"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, w *Watcher[CameraSettings]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	// fsnotify needs a moment before the first write is seen
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_ReloadsCameraSettings(t *testing.T) {
	path := writeConfig(t, "[camera]\nflash = \"auto\"\n")

	received := make(chan CameraSettings, 1)
	w := NewConfigWatcher(path, LoadCameraSettings, newTestLogger(),
		WithDebounce[CameraSettings](50*time.Millisecond))
	w.OnReload(func(s CameraSettings) { received <- s })
	startWatcher(t, w)

	if err := os.WriteFile(path, []byte("[camera]\nflash = \"off\"\nrotation = 90\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-received:
		if s.Flash != "off" || s.Rotation != 90 {
			t.Errorf("reloaded settings = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	path := writeConfig(t, "[camera]\nrotation = 0\n")

	var loads atomic.Int32
	loader := func(p string) (CameraSettings, error) {
		loads.Add(1)
		return LoadCameraSettings(p)
	}
	received := make(chan CameraSettings, 10)
	w := NewConfigWatcher(path, loader, newTestLogger(),
		WithDebounce[CameraSettings](150*time.Millisecond))
	w.OnReload(func(s CameraSettings) { received <- s })
	startWatcher(t, w)

	for _, deg := range []string{"90", "180", "270"} {
		if err := os.WriteFile(path, []byte("[camera]\nrotation = "+deg+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case s := <-received:
		if s.Rotation != 270 {
			t.Errorf("rotation = %d, want the last write 270", s.Rotation)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
	time.Sleep(300 * time.Millisecond)
	if n := loads.Load(); n != 1 {
		t.Errorf("loaded %d times, want 1", n)
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := writeConfig(t, "[camera]\nflash = \"auto\"\n")

	errs := make(chan error, 1)
	var called atomic.Bool
	w := NewConfigWatcher(path, LoadCameraSettings, newTestLogger(),
		WithErrorHandler[CameraSettings](func(err error) { errs <- err }))
	w.OnReload(func(CameraSettings) { called.Store(true) })

	if err := os.WriteFile(path, []byte("[camera]\nflash = \"strobe\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("error handler got nil")
		}
	default:
		t.Fatal("error handler not called")
	}
	if called.Load() {
		t.Error("reload handler called for invalid config")
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := writeConfig(t, "[camera]\nflash = \"on\"\n")

	var first, second atomic.Int32
	w := NewConfigWatcher(path, LoadCameraSettings, newTestLogger())
	unsub := w.OnReload(func(CameraSettings) { first.Add(1) })
	w.OnReload(func(CameraSettings) { second.Add(1) })

	w.Reload()
	unsub()
	w.Reload()

	if first.Load() != 1 || second.Load() != 2 {
		t.Errorf("first = %d second = %d, want 1 and 2", first.Load(), second.Load())
	}
}

func TestWatcher_StartMissingFile(t *testing.T) {
	w := NewConfigWatcher(t.TempDir()+"/missing.toml", LoadCameraSettings, nil)
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("Start() on a missing file should fail")
	}
	if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Errorf("Stop() error = %v", err)
	}
}

type fakeCamera struct {
	mu       sync.Mutex
	facing   []camera.Facing
	flash    []camera.FlashMode
	rotation []camera.Rotation
}

func (f *fakeCamera) SetFacing(v camera.Facing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facing = append(f.facing, v)
}

func (f *fakeCamera) SetFlash(v camera.FlashMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flash = append(f.flash, v)
	return nil
}

func (f *fakeCamera) SetDisplayRotation(v camera.Rotation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotation = append(f.rotation, v)
}

func (f *fakeCamera) calls() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.facing), len(f.flash), len(f.rotation)
}

func TestWatcher_CameraReloadKeepsUnlistedSettings(t *testing.T) {
	path := writeConfig(t, "[logging]\nlevel = \"info\"\n")
	initial, err := LoadCameraUpdate(path)
	if err != nil {
		t.Fatal(err)
	}

	cam := &fakeCamera{}
	w := NewConfigWatcher(path, LoadCameraUpdate, newTestLogger())
	w.OnReload(NewCameraReloader(cam, initial, newTestLogger()).Apply)

	// Only the logging table changes; flash and rotation set elsewhere stay.
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if facing, flash, rotation := cam.calls(); facing+flash+rotation != 0 {
		t.Fatalf("calls facing=%d flash=%d rotation=%d, want none", facing, flash, rotation)
	}

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n[camera]\nflash = \"off\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if facing, flash, rotation := cam.calls(); facing != 0 || flash != 1 || rotation != 0 {
		t.Fatalf("calls facing=%d flash=%d rotation=%d, want only flash", facing, flash, rotation)
	}
	if cam.flash[0] != camera.FlashOff {
		t.Errorf("flash = %s, want off", cam.flash[0])
	}

	// Re-saving the same flash does not override a later API change.
	if err := os.WriteFile(path, []byte("[camera]\nflash = \"off\"\nrotation = 90\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.Reload()
	if _, flash, rotation := cam.calls(); flash != 1 || rotation != 1 {
		t.Fatalf("calls flash=%d rotation=%d, want 1 and 1", flash, rotation)
	}
	if cam.rotation[0] != camera.Rotation90 {
		t.Errorf("rotation = %v, want 90", cam.rotation[0])
	}
}
