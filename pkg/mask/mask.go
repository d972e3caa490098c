// Package mask builds noise-aware detection masks for spectral cubes using a
// dual-threshold scheme: a strict threshold anchors real detections, a
// permissive threshold recovers their faint extent, and connected-region
// filtering rejects small noise-only blobs. Single-channel spectral spikes
// are suppressed and the surviving regions can be dilated spatially to pick
// up low signal-to-noise emission adjacent to confirmed detections.
package mask

import (
	"fmt"
	"math"

	"cubemask/pkg/cube"
	"cubemask/pkg/noise"
)

// ConfigurationError reports an invalid parameter combination. It is raised
// eagerly, before any data is touched; no data content ever produces an
// error, since an empty mask is a valid "no signal detected" result.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string {
	return "mask configuration: " + e.msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// Params holds the masking parameters.
type Params struct {
	// LowSigma is the permissive threshold multiplier; cells above
	// LowSigma times the local noise enter the low mask.
	LowSigma float64

	// HighSigma is the strict threshold multiplier; must exceed LowSigma.
	HighSigma float64

	// MinHighPixels is the number of strict-threshold cells a connected
	// low-mask region must contain to be kept.
	MinHighPixels int

	// MinLowPixels is the number of permissive-threshold cells a connected
	// low-mask region must contain to be kept.
	MinLowPixels int

	// SpikeWindow is the width of the spectral window a cell must fill to
	// survive spike suppression: the cell and its neighbors across the
	// window must all pass threshold. Odd, at least 3. Zero selects the
	// default of 3.
	SpikeWindow int

	// DilationIters is the number of spatial dilation passes applied to the
	// final mask to recover faint emission bordering confirmed regions.
	DilationIters int

	// RecoverWings, when set, grows the filtered mask back into the
	// pre-suppression low mask with a bounded fixed-point expansion, so
	// faint line wings eroded by spike suppression are recovered where they
	// touch a surviving region.
	RecoverWings bool

	// ExpandMaxIters caps the RecoverWings expansion. Zero selects the
	// default of 10.
	ExpandMaxIters int

	// Noise configures the robust noise estimation used for thresholding.
	Noise noise.Params
}

// DefaultParams returns the parameter set used when nothing more specific is
// configured: a 2-sigma/4-sigma threshold pair with modest region minima.
func DefaultParams() Params {
	return Params{
		LowSigma:      2,
		HighSigma:     4,
		MinHighPixels: 3,
		MinLowPixels:  5,
		SpikeWindow:   3,
		DilationIters: 1,
	}
}

// Mask is a boolean detection field aligned sample-for-sample with the cube
// it was built from.
type Mask struct {
	// Bits holds the mask in the cube's flat row-major order.
	Bits []bool

	// Shape and SpectralAxis mirror the source cube.
	Shape        []int
	SpectralAxis int
}

// Count returns the number of true cells.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Builder runs the masking pipeline. A Builder is stateless between calls;
// each Build owns its intermediates and may be used from multiple
// goroutines.
type Builder struct {
	params    Params
	estimator *noise.Estimator
}

// NewBuilder validates the parameters and returns a builder. All parameter
// errors are of type *ConfigurationError.
func NewBuilder(params Params) (*Builder, error) {
	if params.SpikeWindow == 0 {
		params.SpikeWindow = 3
	}
	if params.ExpandMaxIters == 0 {
		params.ExpandMaxIters = 10
	}

	if params.LowSigma <= 0 || params.HighSigma <= 0 {
		return nil, configErrorf("sigma multipliers must be positive, got low=%g high=%g",
			params.LowSigma, params.HighSigma)
	}
	if params.LowSigma >= params.HighSigma {
		return nil, configErrorf("low sigma %g must be below high sigma %g",
			params.LowSigma, params.HighSigma)
	}
	if params.MinHighPixels < 0 || params.MinLowPixels < 0 {
		return nil, configErrorf("region pixel minima must be non-negative, got high=%d low=%d",
			params.MinHighPixels, params.MinLowPixels)
	}
	if params.SpikeWindow < 3 || params.SpikeWindow%2 == 0 {
		return nil, configErrorf("spike window must be an odd integer >= 3, got %d",
			params.SpikeWindow)
	}
	if params.DilationIters < 0 {
		return nil, configErrorf("dilation iterations must be non-negative, got %d",
			params.DilationIters)
	}
	if params.ExpandMaxIters < 1 {
		return nil, configErrorf("expansion iteration cap must be positive, got %d",
			params.ExpandMaxIters)
	}

	return &Builder{
		params:    params,
		estimator: noise.NewEstimator(params.Noise),
	}, nil
}

// Params returns the validated parameters the builder runs with.
func (b *Builder) Params() Params { return b.params }

// Build estimates the noise of the cube and derives its signal mask.
func (b *Builder) Build(c *cube.Cube) (*Mask, *noise.Map, error) {
	nm := b.estimator.Estimate(c)
	m, err := b.BuildWithNoise(c, nm)
	return m, nm, err
}

// BuildWithNoise derives the signal mask using a precomputed noise map, for
// callers that estimate noise once and mask several settings against it. The
// map must have one entry per spatial position of the cube.
func (b *Builder) BuildWithNoise(c *cube.Cube, nm *noise.Map) (*Mask, error) {
	if len(nm.Sigma) != c.NumProfiles() {
		return nil, configErrorf("noise map has %d positions, cube has %d",
			len(nm.Sigma), c.NumProfiles())
	}

	low, high := b.threshold(c, nm)

	// Short spectral runs are instrumental spikes, not line profiles;
	// remove them from both masks before any region-level decision.
	rawLow := append([]bool(nil), low...)
	low = suppressSpikes(low, c, b.params.SpikeWindow)
	high = suppressSpikes(high, c, b.params.SpikeWindow)

	signal := b.filterRegions(low, high, c.Shape)

	if b.params.RecoverWings {
		signal, _ = ExpandInto(signal, rawLow, c.Shape, b.params.ExpandMaxIters)
	}

	if b.params.DilationIters > 0 {
		signal = dilateSpatial(signal, c.Shape, c.SpectralAxis, b.params.DilationIters)
	}

	// Dilation must not re-admit invalid samples.
	for i, v := range c.Data {
		if math.IsNaN(v) {
			signal[i] = false
		}
	}

	return &Mask{
		Bits:         signal,
		Shape:        append([]int(nil), c.Shape...),
		SpectralAxis: c.SpectralAxis,
	}, nil
}

// threshold builds the permissive and strict masks. NaN samples and
// positions with zero or undefined noise never pass either threshold.
func (b *Builder) threshold(c *cube.Cube, nm *noise.Map) (low, high []bool) {
	low = make([]bool, c.Len())
	high = make([]bool, c.Len())

	step := c.Stride(c.SpectralAxis)
	nChan := c.SpectralLen()
	for p := 0; p < c.NumProfiles(); p++ {
		sigma := nm.At(p)
		if math.IsNaN(sigma) || sigma <= 0 {
			continue
		}
		lowCut := b.params.LowSigma * sigma
		highCut := b.params.HighSigma * sigma

		start := c.ProfileStart(p)
		for k := 0; k < nChan; k++ {
			idx := start + k*step
			v := c.Data[idx]
			// NaN fails both comparisons.
			if v > lowCut {
				low[idx] = true
				if v > highCut {
					high[idx] = true
				}
			}
		}
	}
	return low, high
}

// filterRegions labels the connected regions of the low mask under
// full-neighbor connectivity and zeroes every region that does not contain
// enough strict-threshold and permissive-threshold cells. In one dimension
// the regions are simply the contiguous true runs, judged by the same two
// counts.
func (b *Builder) filterRegions(low, high []bool, shape []int) []bool {
	labels, nRegions := labelConnected(low, shape)
	if nRegions == 0 {
		return low
	}

	lowCount := make([]int, nRegions+1)
	highCount := make([]int, nRegions+1)
	for i, lab := range labels {
		if lab == 0 {
			continue
		}
		lowCount[lab]++
		if high[i] {
			highCount[lab]++
		}
	}

	keep := make([]bool, nRegions+1)
	for lab := 1; lab <= nRegions; lab++ {
		keep[lab] = highCount[lab] >= b.params.MinHighPixels &&
			lowCount[lab] >= b.params.MinLowPixels
	}

	signal := make([]bool, len(low))
	for i, lab := range labels {
		signal[i] = lab != 0 && keep[lab]
	}
	return signal
}
