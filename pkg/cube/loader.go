package cube

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LoadChannelImages builds a 3-D cube from a directory of per-channel
// grayscale images (JPEG or PNG). Files are ordered by the numeric part of
// their filenames so that channel order matches the spectral order of the
// observation. The spectral axis of the returned cube is axis 0; pixel
// values are scaled to the 0-1 range.
//
// All images must share the same dimensions; the first image fixes them.
func LoadChannelImages(dir string) (*Cube, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no channel images found in %s", dir)
	}

	// Sort by the numeric part of the filename so channel 2 precedes
	// channel 10 regardless of zero padding.
	sort.Slice(names, func(i, j int) bool {
		return extractNumber(names[i]) < extractNumber(names[j])
	})

	var (
		width, height int
		data          []float64
	)
	for i, name := range names {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load channel %s: %w", name, err)
		}
		bounds := img.Bounds()
		if i == 0 {
			width = bounds.Dx()
			height = bounds.Dy()
			data = make([]float64, len(names)*height*width)
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return nil, fmt.Errorf("channel %s is %dx%d, expected %dx%d",
				name, bounds.Dx(), bounds.Dy(), width, height)
		}

		base := i * height * width
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				data[base+y*width+x] = float64(r) / 65535.0
			}
		}
	}

	return FromData(data, []int{len(names), height, width}, 0)
}

// extractNumber pulls the concatenated digits out of a filename, returning 0
// when none are present.
func extractNumber(name string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(name) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
