package led

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNoopController(t *testing.T) {
	ctrl := newNoop(testLogger())

	if err := ctrl.Set("user", true, PatternSolid); err != nil {
		t.Errorf("Set() returned error: %v", err)
	}
	if types := ctrl.Available(); len(types) != 0 {
		t.Errorf("Available() = %v, want empty slice", types)
	}
	if patterns := ctrl.Patterns(); len(patterns) != 0 {
		t.Errorf("Patterns() = %v, want empty slice", patterns)
	}
}

func TestSysfsController_Available(t *testing.T) {
	tests := []struct {
		name string
		leds map[string]string
		want []string
	}{
		{"NanoPC-T6 LEDs", map[string]string{"user": "usr_led", "system": "sys_led"}, []string{"system", "user"}},
		{"Orange Pi LEDs", map[string]string{"blue": "blue_led", "green": "green_led"}, []string{"blue", "green"}},
		{"No LEDs", map[string]string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newSysfs(tt.leds).Available(); !slices.Equal(got, tt.want) {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSysfsController_Set_InvalidType(t *testing.T) {
	ctrl := newSysfs(map[string]string{"user": "usr_led"})
	if err := ctrl.Set("nonexistent", true, ""); err == nil {
		t.Error("Set() with invalid LED type should return error")
	}
}

func fakeLED(t *testing.T) (*sysfs, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "usr_led")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	ctrl := newSysfs(map[string]string{"user": "usr_led"})
	ctrl.root = root
	return ctrl, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		name           string
		enabled        bool
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{"solid", true, PatternSolid, "none", "1"},
		{"blink", true, PatternBlink, "timer", ""},
		{"heartbeat", true, PatternHeartbeat, "heartbeat", ""},
		{"off", false, PatternBlink, "none", "0"},
		{"brightness only", true, "", "", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, dir := fakeLED(t)
			if err := ctrl.Set("user", tt.enabled, tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			trigger, _ := os.ReadFile(filepath.Join(dir, "trigger"))
			if string(trigger) != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", trigger, tt.wantTrigger)
			}
			if tt.wantBrightness == "" {
				if _, err := os.Stat(filepath.Join(dir, "brightness")); err == nil {
					t.Error("brightness written while a kernel trigger owns it")
				}
				return
			}
			if got := readFile(t, filepath.Join(dir, "brightness")); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_Set_MissingLED(t *testing.T) {
	ctrl := newSysfs(map[string]string{"user": "usr_led"})
	ctrl.root = t.TempDir()
	if err := ctrl.Set("user", true, PatternSolid); err == nil {
		t.Error("Set() on a missing sysfs entry should return error")
	}
}
