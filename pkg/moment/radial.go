package moment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// RadialParams describes the projected geometry used to assign each map
// pixel a galactocentric radius, and the binning of the resulting profile.
type RadialParams struct {
	// CenterX, CenterY are the pixel coordinates of the center, with X along
	// the fastest-varying map axis.
	CenterX float64
	CenterY float64

	// PositionAngle is the angle of the major axis in radians, measured
	// from the +X pixel axis.
	PositionAngle float64

	// Inclination is the disk inclination in radians; the apparent minor
	// axis is stretched by 1/cos(Inclination) before computing radii.
	// Zero means a face-on disk.
	Inclination float64

	// PixelScale converts deprojected pixel radii to physical units.
	// Zero selects 1 (radii stay in pixels).
	PixelScale float64

	// NumBins is the number of radial bins.
	NumBins int

	// MaxRadius bounds the profile; pixels beyond it are ignored.
	// Zero selects the largest radius present in the map.
	MaxRadius float64
}

// RadialProfile is a binned radial profile with an uncertainty-weighted
// linear trend fit.
type RadialProfile struct {
	// Radius holds the bin centers.
	Radius []float64

	// Mean and Err hold the weighted mean and its standard error per bin;
	// NaN for bins with no valid pixels.
	Mean []float64
	Err  []float64

	// Count holds the number of valid pixels per bin.
	Count []int

	// Slope and Intercept describe the weighted least-squares line fitted
	// through the non-empty bins; NaN when fewer than two bins are valid.
	Slope     float64
	Intercept float64
}

// RadialTrend bins a 2-D map by deprojected radius and fits a linear trend
// of value against radius, weighting each bin by its inverse variance.
// NaN pixels are skipped; pixels without a finite positive uncertainty
// contribute with unit weight.
func RadialTrend(m *Map, p RadialParams) (*RadialProfile, error) {
	if len(m.Shape) != 2 {
		return nil, fmt.Errorf("radial analysis needs a 2-D map, got %d axes", len(m.Shape))
	}
	if p.NumBins < 1 {
		return nil, fmt.Errorf("number of radial bins must be positive, got %d", p.NumBins)
	}
	if p.Inclination < 0 || p.Inclination >= math.Pi/2 {
		return nil, fmt.Errorf("inclination must be in [0, pi/2), got %g", p.Inclination)
	}
	scale := p.PixelScale
	if scale == 0 {
		scale = 1
	}

	height, width := m.Shape[0], m.Shape[1]
	cosPA, sinPA := math.Cos(p.PositionAngle), math.Sin(p.PositionAngle)
	stretch := 1 / math.Cos(p.Inclination)

	radius := make([]float64, len(m.Values))
	maxR := 0.0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - p.CenterX
			dy := float64(y) - p.CenterY
			major := dx*cosPA + dy*sinPA
			minor := (-dx*sinPA + dy*cosPA) * stretch
			r := math.Hypot(major, minor) * scale
			radius[y*width+x] = r
			if r > maxR {
				maxR = r
			}
		}
	}
	if p.MaxRadius > 0 {
		maxR = p.MaxRadius
	}
	if maxR == 0 {
		return nil, fmt.Errorf("degenerate geometry: all pixels at zero radius")
	}

	binWidth := maxR / float64(p.NumBins)
	prof := &RadialProfile{
		Radius: make([]float64, p.NumBins),
		Mean:   make([]float64, p.NumBins),
		Err:    make([]float64, p.NumBins),
		Count:  make([]int, p.NumBins),
	}
	sumW := make([]float64, p.NumBins)
	sumWV := make([]float64, p.NumBins)

	for i, v := range m.Values {
		if math.IsNaN(v) || radius[i] > maxR {
			continue
		}
		bin := int(radius[i] / binWidth)
		if bin >= p.NumBins {
			bin = p.NumBins - 1
		}
		w := 1.0
		if s := m.Uncertainty[i]; !math.IsNaN(s) && s > 0 {
			w = 1 / (s * s)
		}
		sumW[bin] += w
		sumWV[bin] += w * v
		prof.Count[bin]++
	}

	var fitR, fitV, fitW []float64
	for b := 0; b < p.NumBins; b++ {
		prof.Radius[b] = (float64(b) + 0.5) * binWidth
		if prof.Count[b] == 0 {
			prof.Mean[b] = math.NaN()
			prof.Err[b] = math.NaN()
			continue
		}
		prof.Mean[b] = sumWV[b] / sumW[b]
		prof.Err[b] = 1 / math.Sqrt(sumW[b])

		fitR = append(fitR, prof.Radius[b])
		fitV = append(fitV, prof.Mean[b])
		fitW = append(fitW, sumW[b])
	}

	if len(fitR) < 2 {
		prof.Slope = math.NaN()
		prof.Intercept = math.NaN()
		return prof, nil
	}
	prof.Intercept, prof.Slope = stat.LinearRegression(fitR, fitV, fitW, false)
	return prof, nil
}
