package camera

import (
	"testing"
)

func TestChooseOptimalSize(t *testing.T) {
	sizes := []Size{
		{Width: 640, Height: 480},
		{Width: 1920, Height: 1080},
		{Width: 1280, Height: 720},
	}

	tests := []struct {
		name   string
		sizes  []Size
		target Size
		want   Size
		wantOK bool
	}{
		{"exact match", sizes, Size{Width: 1920, Height: 1080}, Size{Width: 1920, Height: 1080}, true},
		{"smallest large enough", sizes, Size{Width: 1280, Height: 720}, Size{Width: 1280, Height: 720}, true},
		{"none large enough picks largest", sizes, Size{Width: 3840, Height: 2160}, Size{Width: 1920, Height: 1080}, true},
		{"no ratio match picks largest", sizes, Size{Width: 100, Height: 100}, Size{Width: 1920, Height: 1080}, true},
		{"four by three", sizes, Size{Width: 320, Height: 240}, Size{Width: 640, Height: 480}, true},
		{"empty", nil, Size{Width: 1920, Height: 1080}, Size{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseOptimalSize(tt.sizes, tt.target)
			if ok != tt.wantOK {
				t.Fatalf("ChooseOptimalSize() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ChooseOptimalSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLargestSize(t *testing.T) {
	// Width*Height overflows int32 for these.
	sizes := []Size{
		{Width: 50000, Height: 50000},
		{Width: 60000, Height: 60000},
		{Width: 1, Height: 1},
	}
	got, ok := LargestSize(sizes)
	if !ok {
		t.Fatal("LargestSize() ok = false")
	}
	if want := (Size{Width: 60000, Height: 60000}); got != want {
		t.Errorf("LargestSize() = %v, want %v", got, want)
	}

	if _, ok := LargestSize(nil); ok {
		t.Error("LargestSize(nil) ok = true, want false")
	}
}

func TestSortByArea(t *testing.T) {
	in := []Size{{Width: 1920, Height: 1080}, {Width: 640, Height: 480}, {Width: 1280, Height: 720}}
	got := SortByArea(in)

	want := []Size{{Width: 640, Height: 480}, {Width: 1280, Height: 720}, {Width: 1920, Height: 1080}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByArea() = %v, want %v", got, want)
		}
	}
	if in[0] != (Size{Width: 1920, Height: 1080}) {
		t.Error("SortByArea() modified its input")
	}
}
