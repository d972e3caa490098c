package cube

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestFromDataValidation verifies the constructor's parameter checks.
func TestFromDataValidation(t *testing.T) {
	cases := []struct {
		name         string
		data         []float64
		shape        []int
		spectralAxis int
	}{
		{"no axes", []float64{}, []int{}, 0},
		{"too many axes", make([]float64, 16), []int{2, 2, 2, 2}, 0},
		{"zero axis length", []float64{}, []int{0, 4}, 0},
		{"length mismatch", make([]float64, 7), []int{2, 4}, 0},
		{"spectral axis out of range", make([]float64, 8), []int{2, 4}, 2},
		{"negative spectral axis", make([]float64, 8), []int{2, 4}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromData(tc.data, tc.shape, tc.spectralAxis); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

// TestOneDimensionalSpectralAxis verifies that the single axis of a 1-D
// cube is always the spectral axis.
func TestOneDimensionalSpectralAxis(t *testing.T) {
	c, err := FromData(make([]float64, 5), []int{5}, 3)
	if err != nil {
		t.Fatalf("Failed to create 1-D cube: %v", err)
	}
	if c.SpectralAxis != 0 {
		t.Errorf("1-D cube spectral axis should be 0, got %d", c.SpectralAxis)
	}
	if c.NumProfiles() != 1 {
		t.Errorf("1-D cube should have a single profile, got %d", c.NumProfiles())
	}
	if c.SpectralLen() != 5 {
		t.Errorf("Expected spectral length 5, got %d", c.SpectralLen())
	}
}

// TestIndexCoordsRoundTrip verifies that Index and Coords invert each other.
func TestIndexCoordsRoundTrip(t *testing.T) {
	c, err := New([]int{3, 4, 5}, 0)
	if err != nil {
		t.Fatalf("Failed to create cube: %v", err)
	}
	for z := 0; z < 3; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 5; x++ {
				idx := c.Index(z, y, x)
				coords := c.Coords(idx)
				if coords[0] != z || coords[1] != y || coords[2] != x {
					t.Fatalf("Round trip failed: (%d,%d,%d) -> %d -> %v", z, y, x, idx, coords)
				}
			}
		}
	}
	if c.Index(2, 3, 4) != c.Len()-1 {
		t.Errorf("Last coordinate should map to last flat index %d, got %d",
			c.Len()-1, c.Index(2, 3, 4))
	}
}

// TestProfileExtraction verifies profile extraction for every choice of
// spectral axis.
func TestProfileExtraction(t *testing.T) {
	shape := []int{2, 3, 4}
	for axis := 0; axis < 3; axis++ {
		c, err := New(shape, axis)
		if err != nil {
			t.Fatalf("Failed to create cube with spectral axis %d: %v", axis, err)
		}
		for i := range c.Data {
			c.Data[i] = float64(i)
		}

		nChan := shape[axis]
		if c.NumProfiles()*nChan != c.Len() {
			t.Fatalf("Axis %d: profiles x channels = %d, want %d",
				axis, c.NumProfiles()*nChan, c.Len())
		}

		seen := make(map[float64]bool)
		buf := make([]float64, nChan)
		for p := 0; p < c.NumProfiles(); p++ {
			c.Profile(p, buf)
			for k, v := range buf {
				if seen[v] {
					t.Fatalf("Axis %d: sample %v visited twice", axis, v)
				}
				seen[v] = true

				// The profile must walk the spectral stride.
				want := float64(c.ProfileStart(p) + k*c.Stride(axis))
				if v != want {
					t.Fatalf("Axis %d profile %d channel %d: expected %v, got %v",
						axis, p, k, want, v)
				}
			}
		}
		if len(seen) != c.Len() {
			t.Errorf("Axis %d: profiles covered %d of %d samples", axis, len(seen), c.Len())
		}
	}
}

// TestSpatialIndexConsistency verifies that SpatialIndex inverts the
// profile enumeration for every sample of a profile.
func TestSpatialIndexConsistency(t *testing.T) {
	c, err := New([]int{3, 4, 5}, 1)
	if err != nil {
		t.Fatalf("Failed to create cube: %v", err)
	}
	step := c.Stride(c.SpectralAxis)
	for p := 0; p < c.NumProfiles(); p++ {
		start := c.ProfileStart(p)
		for k := 0; k < c.SpectralLen(); k++ {
			if got := c.SpatialIndex(start + k*step); got != p {
				t.Fatalf("SpatialIndex(%d) = %d, expected profile %d", start+k*step, got, p)
			}
		}
	}
}

// TestChannelExtraction verifies channel planes against direct indexing.
func TestChannelExtraction(t *testing.T) {
	c, err := New([]int{3, 2, 2}, 0)
	if err != nil {
		t.Fatalf("Failed to create cube: %v", err)
	}
	for i := range c.Data {
		c.Data[i] = float64(i)
	}

	plane, err := c.Channel(1)
	if err != nil {
		t.Fatalf("Channel extraction failed: %v", err)
	}
	if len(plane) != 4 {
		t.Fatalf("Expected 4 plane values, got %d", len(plane))
	}
	for p, v := range plane {
		want := float64(4 + p)
		if v != want {
			t.Errorf("Plane value %d: expected %v, got %v", p, want, v)
		}
	}

	if _, err := c.Channel(3); err == nil {
		t.Error("Expected error for out-of-range channel")
	}
}

// TestCountFinite verifies NaN accounting.
func TestCountFinite(t *testing.T) {
	c, err := FromData([]float64{1, math.NaN(), 3, math.NaN()}, []int{4}, 0)
	if err != nil {
		t.Fatalf("Failed to create cube: %v", err)
	}
	if got := c.CountFinite(); got != 2 {
		t.Errorf("Expected 2 finite samples, got %d", got)
	}
}

// TestLoadChannelImages verifies loading and numeric ordering of channel
// images from a directory.
func TestLoadChannelImages(t *testing.T) {
	dir := t.TempDir()

	// Channel files written out of order, with gray levels encoding the
	// intended channel index.
	for _, tc := range []struct {
		name  string
		level uint8
	}{
		{"chan_10.png", 2},
		{"chan_2.png", 1},
		{"chan_1.png", 0},
	} {
		img := image.NewGray(image.Rect(0, 0, 3, 2))
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				img.SetGray(x, y, color.Gray{Y: tc.level * 100})
			}
		}
		f, err := os.Create(filepath.Join(dir, tc.name))
		if err != nil {
			t.Fatalf("Failed to create image file: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("Failed to encode image: %v", err)
		}
		f.Close()
	}

	c, err := LoadChannelImages(dir)
	if err != nil {
		t.Fatalf("Failed to load channel images: %v", err)
	}

	if c.NDim() != 3 || c.Shape[0] != 3 || c.Shape[1] != 2 || c.Shape[2] != 3 {
		t.Fatalf("Expected shape [3 2 3], got %v", c.Shape)
	}
	if c.SpectralAxis != 0 {
		t.Errorf("Expected spectral axis 0, got %d", c.SpectralAxis)
	}

	// Channels must come back in numeric order: chan_1, chan_2, chan_10.
	prev := -1.0
	for k := 0; k < 3; k++ {
		v := c.Data[c.Index(k, 0, 0)]
		if v <= prev {
			t.Errorf("Channel %d value %v not above previous %v; ordering wrong", k, v, prev)
		}
		prev = v
	}
}

// TestLoadChannelImagesEmptyDir verifies the error for a directory without
// images.
func TestLoadChannelImagesEmptyDir(t *testing.T) {
	if _, err := LoadChannelImages(t.TempDir()); err == nil {
		t.Error("Expected error for directory without images")
	}
}
