// Package pipeline orchestrates the full reduction sequence: load a spectral
// cube, estimate its noise, build the dual-threshold signal mask, integrate
// moment-0 maps, and optionally derive a line ratio and its radial trend.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"cubemask/pkg/config"
	"cubemask/pkg/cube"
	"cubemask/pkg/mask"
	"cubemask/pkg/moment"
	"cubemask/pkg/noise"
	"cubemask/pkg/visualization"
)

// Params holds the input/output configuration of one pipeline run.
type Params struct {
	// InputDir is the directory of per-channel grayscale images forming
	// the primary cube.
	InputDir string

	// SecondInputDir optionally names a second cube (a second spectral
	// line observed over the same grid); when set, the pipeline computes
	// the line-intensity ratio of the two moment-0 maps.
	SecondInputDir string

	// SaveIntermediaryResults determines whether intermediary masks and
	// maps are dumped as images under IntermediaryDir.
	SaveIntermediaryResults bool

	// IntermediaryDir is the directory for intermediary dumps.
	IntermediaryDir string
}

// Results collects everything a run produced. Fields for disabled stages
// stay nil.
type Results struct {
	Cube       *cube.Cube
	SecondCube *cube.Cube
	Noise      *noise.Map
	Mask       *mask.Mask
	Moment     *moment.Map
	Ratio      *moment.Map
	Profile    *moment.RadialProfile
}

// Analyzer runs the reduction pipeline. Create one per run; intermediates
// are owned by the analyzer for the duration of Process and exposed through
// Results afterwards.
type Analyzer struct {
	params  *Params
	cfg     *config.Config
	builder *mask.Builder
	results Results
}

// NewAnalyzer validates the masking configuration eagerly and returns an
// analyzer. Configuration errors surface here, before any data is read.
func NewAnalyzer(params *Params, cfg *config.Config) (*Analyzer, error) {
	builder, err := mask.NewBuilder(cfg.MaskParams())
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		params:  params,
		cfg:     cfg,
		builder: builder,
	}, nil
}

// Process runs the complete pipeline from the configured input directories.
func (a *Analyzer) Process() error {
	a.logf("Step 1: Loading input cube...")
	c, err := cube.LoadChannelImages(a.params.InputDir)
	if err != nil {
		return fmt.Errorf("failed to load cube: %w", err)
	}
	a.logf("Loaded cube with shape %v (spectral axis %d)", c.Shape, c.SpectralAxis)

	var second *cube.Cube
	if a.params.SecondInputDir != "" {
		second, err = cube.LoadChannelImages(a.params.SecondInputDir)
		if err != nil {
			return fmt.Errorf("failed to load second cube: %w", err)
		}
	}

	return a.ProcessCubes(c, second)
}

// ProcessCubes runs the pipeline on cubes already in memory. second may be
// nil; when present it must share the primary cube's shape.
func (a *Analyzer) ProcessCubes(c, second *cube.Cube) error {
	if a.params.SaveIntermediaryResults {
		if err := os.MkdirAll(a.params.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	a.results.Cube = c
	a.results.SecondCube = second

	a.logf("Step 2: Estimating noise...")
	a.logf("Step 3: Building signal mask...")
	m, nm, err := a.builder.Build(c)
	if err != nil {
		return fmt.Errorf("failed to build signal mask: %w", err)
	}
	a.results.Noise = nm
	a.results.Mask = m
	a.logf("Mask covers %d of %d cells", m.Count(), c.Len())

	if a.params.SaveIntermediaryResults && c.NDim() == 3 {
		a.saveMaskChannels(c, m, "01_signal_mask")
	}

	a.logf("Step 4: Integrating moment-0 map...")
	dv := a.cfg.Processing.ChannelWidth
	mom, err := moment.Zeroth(c, m, nm, dv)
	if err != nil {
		return fmt.Errorf("failed to integrate moment-0: %w", err)
	}
	a.results.Moment = mom

	if a.params.SaveIntermediaryResults && len(mom.Shape) == 2 {
		a.saveMomentMap(mom, "02_moment0.jpg")
	}

	analysis := mom
	if second != nil {
		a.logf("Step 5: Computing line-intensity ratio...")
		nm2 := a.noiseFor(second)
		m2, err := a.builder.BuildWithNoise(second, nm2)
		if err != nil {
			return fmt.Errorf("failed to mask second cube: %w", err)
		}
		mom2, err := moment.Zeroth(second, m2, nm2, dv)
		if err != nil {
			return fmt.Errorf("failed to integrate second moment-0: %w", err)
		}
		ratio, err := moment.Ratio(mom, mom2)
		if err != nil {
			return fmt.Errorf("failed to compute line ratio: %w", err)
		}
		a.results.Ratio = ratio
		analysis = ratio

		if a.params.SaveIntermediaryResults && len(ratio.Shape) == 2 {
			a.saveMomentMap(ratio, "03_line_ratio.jpg")
		}
	}

	if a.cfg.Radial.NumBins > 0 && len(analysis.Shape) == 2 {
		a.logf("Step 6: Fitting radial trend...")
		profile, err := moment.RadialTrend(analysis, a.cfg.RadialParams())
		if err != nil {
			return fmt.Errorf("failed to fit radial trend: %w", err)
		}
		a.results.Profile = profile
		a.logf("Radial trend: slope=%.4g intercept=%.4g", profile.Slope, profile.Intercept)
	}

	return nil
}

// Results returns the artifacts of the last Process run.
func (a *Analyzer) Results() *Results { return &a.results }

// noiseFor estimates noise for an auxiliary cube with the same estimator
// settings as the primary run. The second cube is small relative to the
// cost of masking, so the map is recomputed rather than cached.
func (a *Analyzer) noiseFor(c *cube.Cube) *noise.Map {
	return noise.NewEstimator(a.builder.Params().Noise).Estimate(c)
}

// saveMaskChannels dumps every spectral plane of the mask as an image.
// Failures are reported as warnings; dumps never abort the run.
func (a *Analyzer) saveMaskChannels(c *cube.Cube, m *mask.Mask, stage string) {
	viewer, err := visualization.NewViewer(c)
	if err != nil {
		fmt.Printf("Warning: intermediary dump skipped: %v\n", err)
		return
	}
	dir := filepath.Join(a.params.IntermediaryDir, stage)
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Warning: failed to create %s: %v\n", dir, err)
		return
	}
	for k := 0; k < c.SpectralLen(); k++ {
		img, err := viewer.MaskChannelImage(m, k)
		if err != nil {
			fmt.Printf("Warning: failed to render mask channel %d: %v\n", k, err)
			continue
		}
		name := filepath.Join(dir, fmt.Sprintf("%03d.jpg", k))
		if err := visualization.SaveImage(img, name); err != nil {
			fmt.Printf("Warning: failed to save mask channel %d: %v\n", k, err)
		}
	}
}

// saveMomentMap dumps a 2-D map as a grayscale image, warning on failure.
func (a *Analyzer) saveMomentMap(m *moment.Map, name string) {
	img, err := visualization.RenderMomentMap(m)
	if err != nil {
		fmt.Printf("Warning: failed to render %s: %v\n", name, err)
		return
	}
	path := filepath.Join(a.params.IntermediaryDir, name)
	if err := visualization.SaveImage(img, path); err != nil {
		fmt.Printf("Warning: failed to save %s: %v\n", name, err)
	}
}

// logf prints progress when verbose output is enabled.
func (a *Analyzer) logf(format string, args ...interface{}) {
	if a.cfg.Output.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}
