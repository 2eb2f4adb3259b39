package camera

import (
	"slices"
)

// DefaultTargetSize is the preview aspect ratio and minimum size used when
// none is configured.
var DefaultTargetSize = Size{Width: 1920, Height: 1080}

// compareByArea orders sizes by pixel count.
func compareByArea(a, b Size) int {
	switch ar, br := a.Area(), b.Area(); {
	case ar < br:
		return -1
	case ar > br:
		return 1
	default:
		return 0
	}
}

// SortByArea returns a copy of sizes ordered by area, smallest first.
func SortByArea(sizes []Size) []Size {
	out := slices.Clone(sizes)
	slices.SortStableFunc(out, compareByArea)
	return out
}

// LargestSize returns the size with the largest area.
func LargestSize(sizes []Size) (Size, bool) {
	if len(sizes) == 0 {
		return Size{}, false
	}
	return slices.MaxFunc(sizes, compareByArea), true
}

// ChooseOptimalSize returns the smallest size with exactly the aspect ratio
// of target that is at least as large in both dimensions. If none qualifies
// the largest size is returned.
func ChooseOptimalSize(sizes []Size, target Size) (Size, bool) {
	if len(sizes) == 0 {
		return Size{}, false
	}

	sorted := SortByArea(sizes)
	for _, s := range sorted {
		if !sameAspectRatio(s, target) {
			continue
		}
		if s.Width >= target.Width && s.Height >= target.Height {
			return s, true
		}
	}

	return sorted[len(sorted)-1], true
}

// sameAspectRatio compares ratios by cross multiplication.
func sameAspectRatio(a, b Size) bool {
	if a.Height == 0 || b.Height == 0 {
		return false
	}
	return int64(a.Width)*int64(b.Height) == int64(b.Width)*int64(a.Height)
}
