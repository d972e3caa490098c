// Package moment integrates masked spectral cubes into integrated-intensity
// (moment-0) maps, derives line-intensity ratios with propagated
// uncertainty, and fits radial trends to the resulting maps.
package moment

import (
	"fmt"
	"math"

	"cubemask/pkg/cube"
	"cubemask/pkg/mask"
	"cubemask/pkg/noise"
)

// Map is a per-spatial-position scalar field with a matching uncertainty
// field, flattened in the cube's spatial order. Positions where no value is
// defined hold NaN.
type Map struct {
	Values      []float64
	Uncertainty []float64
	Shape       []int
}

// At returns the value at the given flattened spatial position.
func (m *Map) At(spatial int) float64 { return m.Values[spatial] }

// Zeroth integrates the cube along its spectral axis within the mask:
// sum(value * dv) over the masked, finite channels of each spectral profile.
// dv is the spectral channel width in the caller's velocity or frequency
// units. Positions where the mask admits no channel get NaN, matching the
// "no detection" convention of the masking stage.
//
// The uncertainty per position is sigma * dv * sqrt(N), with N the number of
// channels integrated there and sigma the robust noise estimate.
func Zeroth(c *cube.Cube, m *mask.Mask, nm *noise.Map, dv float64) (*Map, error) {
	if dv <= 0 {
		return nil, fmt.Errorf("channel width must be positive, got %g", dv)
	}
	if len(m.Bits) != c.Len() {
		return nil, fmt.Errorf("mask has %d cells, cube has %d", len(m.Bits), c.Len())
	}
	if len(nm.Sigma) != c.NumProfiles() {
		return nil, fmt.Errorf("noise map has %d positions, cube has %d",
			len(nm.Sigma), c.NumProfiles())
	}

	nPos := c.NumProfiles()
	out := &Map{
		Values:      make([]float64, nPos),
		Uncertainty: make([]float64, nPos),
		Shape:       c.SpatialShape(),
	}

	step := c.Stride(c.SpectralAxis)
	nChan := c.SpectralLen()
	for p := 0; p < nPos; p++ {
		start := c.ProfileStart(p)
		sum := 0.0
		used := 0
		for k := 0; k < nChan; k++ {
			idx := start + k*step
			v := c.Data[idx]
			if !m.Bits[idx] || math.IsNaN(v) {
				continue
			}
			sum += v * dv
			used++
		}
		if used == 0 {
			out.Values[p] = math.NaN()
			out.Uncertainty[p] = math.NaN()
			continue
		}
		out.Values[p] = sum
		sigma := nm.At(p)
		if math.IsNaN(sigma) {
			out.Uncertainty[p] = math.NaN()
		} else {
			out.Uncertainty[p] = sigma * dv * math.Sqrt(float64(used))
		}
	}
	return out, nil
}

// Ratio divides two aligned moment maps element-wise with standard error
// propagation. The result is NaN wherever either input is NaN or the
// denominator is zero.
func Ratio(num, den *Map) (*Map, error) {
	if len(num.Values) != len(den.Values) {
		return nil, fmt.Errorf("moment maps differ in size: %d vs %d",
			len(num.Values), len(den.Values))
	}

	out := &Map{
		Values:      make([]float64, len(num.Values)),
		Uncertainty: make([]float64, len(num.Values)),
		Shape:       append([]int(nil), num.Shape...),
	}
	for i := range num.Values {
		a, b := num.Values[i], den.Values[i]
		if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
			out.Values[i] = math.NaN()
			out.Uncertainty[i] = math.NaN()
			continue
		}
		out.Values[i] = a / b

		sa, sb := num.Uncertainty[i], den.Uncertainty[i]
		if math.IsNaN(sa) || math.IsNaN(sb) {
			out.Uncertainty[i] = math.NaN()
			continue
		}
		// sigma(a/b) = sqrt((sa/b)^2 + (a*sb/b^2)^2), well defined even
		// where a is zero.
		ta := sa / b
		tb := a * sb / (b * b)
		out.Uncertainty[i] = math.Sqrt(ta*ta + tb*tb)
	}
	return out, nil
}
