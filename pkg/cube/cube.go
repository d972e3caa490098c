// Package cube provides the N-dimensional sample grid used throughout the
// masking and moment pipeline. A Cube is a regularly spaced floating-point
// field with one, two, or three axes, one of which may be designated the
// spectral axis (the axis later collapsed for moment calculation). Missing or
// invalid samples are represented as NaN and are excluded from every
// statistic computed downstream.
package cube

import (
	"fmt"
	"math"
)

// MaxDims is the highest dimensionality a Cube supports.
const MaxDims = 3

// Cube is an N-dimensional (N in 1..3) float64 field stored flat in
// row-major order, with axis 0 varying slowest.
type Cube struct {
	// Data holds the samples in row-major order. Its length is the product
	// of Shape.
	Data []float64

	// Shape holds the axis lengths, slowest-varying first.
	Shape []int

	// SpectralAxis is the index of the axis treated as spectral. For a
	// one-dimensional cube it is always 0.
	SpectralAxis int

	// strides[i] is the flat-index step for a unit move along axis i.
	strides []int
}

// New allocates a zero-filled cube with the given shape and spectral axis.
func New(shape []int, spectralAxis int) (*Cube, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return FromData(make([]float64, n), shape, spectralAxis)
}

// FromData wraps an existing flat sample slice as a cube. The slice is not
// copied; the caller must not resize it afterwards.
func FromData(data []float64, shape []int, spectralAxis int) (*Cube, error) {
	if len(shape) < 1 || len(shape) > MaxDims {
		return nil, fmt.Errorf("cube must have between 1 and %d axes, got %d", MaxDims, len(shape))
	}
	n := 1
	for i, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("axis %d has non-positive length %d", i, s)
		}
		n *= s
	}
	if len(data) != n {
		return nil, fmt.Errorf("data length %d does not match shape volume %d", len(data), n)
	}
	if len(shape) == 1 {
		// The only axis of a 1-D cube is the spectral axis.
		spectralAxis = 0
	}
	if spectralAxis < 0 || spectralAxis >= len(shape) {
		return nil, fmt.Errorf("spectral axis %d out of range for %d axes", spectralAxis, len(shape))
	}

	c := &Cube{
		Data:         data,
		Shape:        append([]int(nil), shape...),
		SpectralAxis: spectralAxis,
	}
	c.strides = make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		c.strides[i] = stride
		stride *= shape[i]
	}
	return c, nil
}

// NDim returns the number of axes.
func (c *Cube) NDim() int { return len(c.Shape) }

// Len returns the total number of samples.
func (c *Cube) Len() int { return len(c.Data) }

// Stride returns the flat-index step for a unit move along the given axis.
func (c *Cube) Stride(axis int) int { return c.strides[axis] }

// SpectralLen returns the length of the spectral axis.
func (c *Cube) SpectralLen() int { return c.Shape[c.SpectralAxis] }

// Index converts per-axis coordinates to a flat index. The number of
// coordinates must equal the number of axes; bounds are not checked.
func (c *Cube) Index(coords ...int) int {
	idx := 0
	for i, v := range coords {
		idx += v * c.strides[i]
	}
	return idx
}

// Coords converts a flat index back to per-axis coordinates.
func (c *Cube) Coords(idx int) []int {
	coords := make([]int, len(c.Shape))
	for i, s := range c.strides {
		coords[i] = idx / s
		idx %= s
	}
	return coords
}

// SpatialShape returns the shape with the spectral axis removed. For a 1-D
// cube it returns an empty slice: there is a single spatial position.
func (c *Cube) SpatialShape() []int {
	out := make([]int, 0, len(c.Shape)-1)
	for i, s := range c.Shape {
		if i != c.SpectralAxis {
			out = append(out, s)
		}
	}
	return out
}

// NumProfiles returns the number of spatial positions, i.e. the number of
// independent spectral profiles in the cube.
func (c *Cube) NumProfiles() int {
	n := 1
	for _, s := range c.SpatialShape() {
		n *= s
	}
	return n
}

// ProfileStart returns the flat index of spectral sample 0 at the given
// flattened spatial position. Walking from there in steps of
// Stride(SpectralAxis) visits the whole profile.
func (c *Cube) ProfileStart(spatial int) int {
	idx := 0
	// Decompose the flattened spatial position over the non-spectral axes,
	// slowest-varying first, and accumulate their stride contributions.
	rem := spatial
	size := c.NumProfiles()
	for i, s := range c.Shape {
		if i == c.SpectralAxis {
			continue
		}
		size /= s
		idx += (rem / size) * c.strides[i]
		rem %= size
	}
	return idx
}

// Profile copies the spectral profile at the given flattened spatial
// position into buf, which must have length SpectralLen.
func (c *Cube) Profile(spatial int, buf []float64) {
	start := c.ProfileStart(spatial)
	step := c.strides[c.SpectralAxis]
	for k := range buf {
		buf[k] = c.Data[start+k*step]
	}
}

// SpatialIndex maps a flat sample index to its flattened spatial position.
func (c *Cube) SpatialIndex(idx int) int {
	spatial := 0
	size := c.NumProfiles()
	for i, s := range c.Shape {
		v := idx / c.strides[i]
		idx %= c.strides[i]
		if i == c.SpectralAxis {
			continue
		}
		size /= s
		spatial += v * size
	}
	return spatial
}

// Channel extracts a copy of the plane at the given spectral coordinate,
// flattened over the spatial axes in their cube order.
func (c *Cube) Channel(k int) ([]float64, error) {
	if k < 0 || k >= c.SpectralLen() {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", k, c.SpectralLen())
	}
	n := c.NumProfiles()
	out := make([]float64, n)
	step := c.strides[c.SpectralAxis]
	for p := 0; p < n; p++ {
		out[p] = c.Data[c.ProfileStart(p)+k*step]
	}
	return out, nil
}

// CountFinite returns the number of samples that are not NaN.
func (c *Cube) CountFinite() int {
	n := 0
	for _, v := range c.Data {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
