package led

import "testing"

func TestForModel(t *testing.T) {
	tests := []struct {
		model       string
		wantShutter string
		wantSysfs   bool
	}{
		{"FriendlyElec NanoPC-T6", "user", true},
		{"Xunlong Orange Pi 5 Plus", "blue", true},
		{"Raspberry Pi 4 Model B Rev 1.4", "act", true},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			ctrl, shutter := forModel(tt.model, testLogger())
			if shutter != tt.wantShutter {
				t.Errorf("shutter LED = %q, want %q", shutter, tt.wantShutter)
			}
			_, isSysfs := ctrl.(*sysfs)
			if isSysfs != tt.wantSysfs {
				t.Errorf("controller = %T, want sysfs %v", ctrl, tt.wantSysfs)
			}
		})
	}
}

func TestNew(t *testing.T) {
	ctrl, _ := New(testLogger())
	if ctrl == nil {
		t.Fatal("New() returned nil")
	}
	if ctrl.Available() == nil || ctrl.Patterns() == nil {
		t.Error("Available() and Patterns() should return non-nil slices")
	}
}
