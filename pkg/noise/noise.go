// Package noise estimates the per-position noise level of a spectral cube
// using robust statistics. The estimator collapses each spectral profile to a
// single sigma via the median absolute deviation, then refits once with
// outliers clipped so that real emission does not inflate the estimate.
package noise

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"cubemask/pkg/cube"
)

// MADScale converts a median absolute deviation into a consistent estimate
// of the Gaussian standard deviation.
const MADScale = 1.4826

// Params configures the estimator.
type Params struct {
	// ClipMultiplier bounds the refit: samples deviating from the median by
	// more than ClipMultiplier times the first-pass sigma are excluded from
	// the second pass. Zero selects the default of 3.
	ClipMultiplier float64

	// MinSamples is the smallest number of finite samples a profile needs
	// for its sigma to be defined; positions with fewer get NaN. Zero
	// selects the default of 5.
	MinSamples int

	// Workers is the number of goroutines used to process profiles. Zero
	// selects runtime.NumCPU().
	Workers int
}

// Map holds the robust sigma estimate for every spatial position of a cube,
// flattened in the cube's spatial order. A 1-D cube yields a single entry.
type Map struct {
	// Sigma holds one estimate per spatial position; NaN where too few
	// finite samples exist.
	Sigma []float64

	// Shape is the spatial shape the map was computed over.
	Shape []int
}

// At returns the sigma at the given flattened spatial position.
func (m *Map) At(spatial int) float64 { return m.Sigma[spatial] }

// Estimator computes noise maps from cubes.
type Estimator struct {
	params Params
}

// NewEstimator creates an estimator, filling in defaults for zero-valued
// parameters.
func NewEstimator(params Params) *Estimator {
	if params.ClipMultiplier <= 0 {
		params.ClipMultiplier = 3
	}
	if params.MinSamples <= 0 {
		params.MinSamples = 5
	}
	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	return &Estimator{params: params}
}

// Estimate computes the per-spatial-position robust sigma of the cube.
// Profiles are independent, so the work is split across the configured
// number of workers.
func (e *Estimator) Estimate(c *cube.Cube) *Map {
	n := c.NumProfiles()
	sigma := make([]float64, n)

	workers := e.params.Workers
	if workers > n {
		workers = n
	}
	perWorker := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			profile := make([]float64, c.SpectralLen())
			scratch := make([]float64, 0, c.SpectralLen())
			for p := start; p < end; p++ {
				c.Profile(p, profile)
				sigma[p] = e.profileSigma(profile, scratch)
			}
		}(start, end)
	}
	wg.Wait()

	return &Map{Sigma: sigma, Shape: c.SpatialShape()}
}

// profileSigma computes the clipped MAD sigma of one spectral profile.
// scratch is reused across calls to avoid per-profile allocation.
func (e *Estimator) profileSigma(profile, scratch []float64) float64 {
	finite := scratch[:0]
	for _, v := range profile {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) < e.params.MinSamples {
		return math.NaN()
	}

	med, sigma := madSigma(finite)
	if sigma == 0 {
		return 0
	}

	// Refit once with strong deviations excluded, so bright emission
	// channels do not bias the estimate upwards.
	clip := e.params.ClipMultiplier * sigma
	kept := finite[:0]
	for _, v := range finite {
		if math.Abs(v-med) <= clip {
			kept = append(kept, v)
		}
	}
	if len(kept) < e.params.MinSamples {
		return sigma
	}
	_, refit := madSigma(kept)
	return refit
}

// madSigma returns the median of values and the MAD-derived sigma estimate.
// values is reordered in place.
func madSigma(values []float64) (median, sigma float64) {
	sort.Float64s(values)
	median = stat.Quantile(0.5, stat.Empirical, values, nil)

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad := stat.Quantile(0.5, stat.Empirical, dev, nil)
	return median, MADScale * mad
}
