package moment

import (
	"math"
	"testing"

	"cubemask/pkg/cube"
	"cubemask/pkg/mask"
	"cubemask/pkg/noise"
)

// maskedCube builds a cube with the given data and a mask admitting the
// listed flat indices.
func maskedCube(t *testing.T, data []float64, shape []int, masked []int) (*cube.Cube, *mask.Mask, *noise.Map) {
	t.Helper()
	c, err := cube.FromData(data, shape, 0)
	if err != nil {
		t.Fatalf("Failed to create cube: %v", err)
	}
	m := &mask.Mask{
		Bits:         make([]bool, c.Len()),
		Shape:        append([]int(nil), c.Shape...),
		SpectralAxis: c.SpectralAxis,
	}
	for _, idx := range masked {
		m.Bits[idx] = true
	}
	sigma := make([]float64, c.NumProfiles())
	for i := range sigma {
		sigma[i] = 1
	}
	return c, m, &noise.Map{Sigma: sigma, Shape: c.SpatialShape()}
}

// TestZerothKnownIntegral verifies the integral and its uncertainty on a
// hand-computed profile.
func TestZerothKnownIntegral(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	c, m, nm := maskedCube(t, data, []int{5}, []int{1, 2, 3})
	nm.Sigma[0] = 0.5

	mom, err := Zeroth(c, m, nm, 2.0)
	if err != nil {
		t.Fatalf("Zeroth failed: %v", err)
	}
	// (2+3+4) * dv = 18
	if math.Abs(mom.At(0)-18) > 1e-12 {
		t.Errorf("Expected integral 18, got %v", mom.At(0))
	}
	// sigma * dv * sqrt(3)
	want := 0.5 * 2.0 * math.Sqrt(3)
	if math.Abs(mom.Uncertainty[0]-want) > 1e-12 {
		t.Errorf("Expected uncertainty %v, got %v", want, mom.Uncertainty[0])
	}
}

// TestZerothEmptyMaskPosition verifies that positions without masked
// channels get NaN rather than zero, so non-detections stay distinguishable
// from genuine zero flux.
func TestZerothEmptyMaskPosition(t *testing.T) {
	data := make([]float64, 3*2)
	for i := range data {
		data[i] = 1
	}
	// Mask only the first spatial column.
	c, m, nm := maskedCube(t, data, []int{3, 2}, []int{0, 2, 4})

	mom, err := Zeroth(c, m, nm, 1.0)
	if err != nil {
		t.Fatalf("Zeroth failed: %v", err)
	}
	if math.IsNaN(mom.At(0)) {
		t.Error("Masked column should have a value")
	}
	if !math.IsNaN(mom.At(1)) {
		t.Errorf("Unmasked column should be NaN, got %v", mom.At(1))
	}
	if !math.IsNaN(mom.Uncertainty[1]) {
		t.Errorf("Unmasked column uncertainty should be NaN, got %v", mom.Uncertainty[1])
	}
}

// TestZerothSkipsNaNSamples verifies that NaN samples inside the mask are
// excluded from both the sum and the channel count.
func TestZerothSkipsNaNSamples(t *testing.T) {
	data := []float64{2, math.NaN(), 4, 0}
	c, m, nm := maskedCube(t, data, []int{4}, []int{0, 1, 2})

	mom, err := Zeroth(c, m, nm, 1.0)
	if err != nil {
		t.Fatalf("Zeroth failed: %v", err)
	}
	if math.Abs(mom.At(0)-6) > 1e-12 {
		t.Errorf("Expected 6 from the two finite masked channels, got %v", mom.At(0))
	}
	// N = 2, not 3.
	want := math.Sqrt(2)
	if math.Abs(mom.Uncertainty[0]-want) > 1e-12 {
		t.Errorf("Expected uncertainty sqrt(2), got %v", mom.Uncertainty[0])
	}
}

// TestZerothValidation verifies the argument checks.
func TestZerothValidation(t *testing.T) {
	c, m, nm := maskedCube(t, make([]float64, 4), []int{4}, nil)

	if _, err := Zeroth(c, m, nm, 0); err == nil {
		t.Error("Expected error for non-positive channel width")
	}

	short := &mask.Mask{Bits: make([]bool, 2)}
	if _, err := Zeroth(c, short, nm, 1); err == nil {
		t.Error("Expected error for mask size mismatch")
	}

	badNoise := &noise.Map{Sigma: make([]float64, 5)}
	if _, err := Zeroth(c, m, badNoise, 1); err == nil {
		t.Error("Expected error for noise map size mismatch")
	}
}

// TestRatioValuesAndErrors verifies the element-wise ratio and its
// propagated uncertainty.
func TestRatioValuesAndErrors(t *testing.T) {
	num := &Map{
		Values:      []float64{6, 1, math.NaN(), 4},
		Uncertainty: []float64{0.6, 0.1, 1, 0.4},
		Shape:       []int{4},
	}
	den := &Map{
		Values:      []float64{2, 0, 5, 8},
		Uncertainty: []float64{0.2, 0.1, 1, 0.8},
		Shape:       []int{4},
	}

	r, err := Ratio(num, den)
	if err != nil {
		t.Fatalf("Ratio failed: %v", err)
	}

	if math.Abs(r.At(0)-3) > 1e-12 {
		t.Errorf("Expected ratio 3, got %v", r.At(0))
	}
	// sqrt((0.6/2)^2 + (6*0.2/4)^2) = sqrt(0.09 + 0.09)
	want := math.Sqrt(0.18)
	if math.Abs(r.Uncertainty[0]-want) > 1e-12 {
		t.Errorf("Expected uncertainty %v, got %v", want, r.Uncertainty[0])
	}

	if !math.IsNaN(r.At(1)) {
		t.Errorf("Zero denominator should give NaN, got %v", r.At(1))
	}
	if !math.IsNaN(r.At(2)) {
		t.Errorf("NaN numerator should give NaN, got %v", r.At(2))
	}

	// 4/8 with both uncertainties defined.
	if math.Abs(r.At(3)-0.5) > 1e-12 {
		t.Errorf("Expected ratio 0.5, got %v", r.At(3))
	}
}

// TestRatioSizeMismatch verifies the alignment check.
func TestRatioSizeMismatch(t *testing.T) {
	a := &Map{Values: make([]float64, 4), Uncertainty: make([]float64, 4)}
	b := &Map{Values: make([]float64, 6), Uncertainty: make([]float64, 6)}
	if _, err := Ratio(a, b); err == nil {
		t.Error("Expected error for maps of different size")
	}
}
