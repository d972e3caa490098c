package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"cubemask/pkg/config"
	"cubemask/pkg/pipeline"
	"cubemask/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing per-channel grayscale images of the cube")
	secondDir := flag.String("second-input", "", "Optional directory for a second line cube (enables ratio analysis)")
	configPath := flag.String("config", "cubemask.yaml", "Path to YAML configuration file")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to the config path and exit")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of CPU cores to use for noise estimation")
	channelWidth := flag.Float64("dv", 0, "Spectral channel width; overrides the configured value when positive")
	outputDir := flag.String("output-dir", "cubemask_results", "Directory for result images")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary masks and maps during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.Processing.NumCores = *numCores
	if *channelWidth > 0 {
		cfg.Processing.ChannelWidth = *channelWidth
	}

	fmt.Println("================================")
	fmt.Println("CUBEMASK: DUAL-THRESHOLD SIGNAL MASKING AND MOMENT ANALYSIS")
	fmt.Println("================================")

	params := &pipeline.Params{
		InputDir:                *inputDir,
		SecondInputDir:          *secondDir,
		SaveIntermediaryResults: *saveIntermediary,
		IntermediaryDir:         *intermediaryDir,
	}

	analyzer, err := pipeline.NewAnalyzer(params, cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := analyzer.Process(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	results := analyzer.Results()
	fmt.Println("\nProcessing complete!")
	fmt.Printf("Mask coverage: %d of %d cells\n", results.Mask.Count(), results.Cube.Len())

	if results.Profile != nil {
		fmt.Println("\nRadial profile:")
		for b := range results.Profile.Radius {
			if results.Profile.Count[b] == 0 {
				continue
			}
			fmt.Printf("  r=%8.3f  value=%10.4g +/- %.4g  (%d px)\n",
				results.Profile.Radius[b], results.Profile.Mean[b],
				results.Profile.Err[b], results.Profile.Count[b])
		}
		if !math.IsNaN(results.Profile.Slope) {
			fmt.Printf("Trend: slope=%.4g intercept=%.4g\n",
				results.Profile.Slope, results.Profile.Intercept)
		}
	}

	// Save the final maps as images alongside the run
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	if len(results.Moment.Shape) == 2 {
		img, err := visualization.RenderMomentMap(results.Moment)
		if err == nil {
			err = visualization.SaveImage(img, filepath.Join(*outputDir, "moment0.jpg"))
		}
		if err != nil {
			fmt.Printf("Warning: failed to save moment-0 image: %v\n", err)
		} else {
			fmt.Printf("Saved moment-0 map to %s\n", filepath.Join(*outputDir, "moment0.jpg"))
		}
	}
	if results.Ratio != nil && len(results.Ratio.Shape) == 2 {
		img, err := visualization.RenderMomentMap(results.Ratio)
		if err == nil {
			err = visualization.SaveImage(img, filepath.Join(*outputDir, "line_ratio.jpg"))
		}
		if err != nil {
			fmt.Printf("Warning: failed to save line-ratio image: %v\n", err)
		} else {
			fmt.Printf("Saved line-ratio map to %s\n", filepath.Join(*outputDir, "line_ratio.jpg"))
		}
	}
}
