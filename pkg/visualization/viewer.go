// Package visualization renders cube channels, masks, and derived maps as
// grayscale raster images for quick inspection of pipeline output. It is a
// pixel exporter, not a plotting layer.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"cubemask/pkg/cube"
	"cubemask/pkg/mask"
	"cubemask/pkg/moment"
)

// Viewer renders planes of a 3-D spectral cube.
type Viewer struct {
	cube *cube.Cube
}

// NewViewer creates a viewer over the given cube. Only 3-D cubes have 2-D
// channel planes to render; lower-dimensional cubes are rejected.
func NewViewer(c *cube.Cube) (*Viewer, error) {
	if c.NDim() != 3 {
		return nil, fmt.Errorf("viewer requires a 3-D cube, got %d axes", c.NDim())
	}
	return &Viewer{cube: c}, nil
}

// ChannelImage renders the spatial plane at the given spectral coordinate as
// a 16-bit grayscale image, linearly scaled over the finite values of the
// whole cube so channels are comparable with each other. NaN samples render
// black.
func (v *Viewer) ChannelImage(k int) (image.Image, error) {
	plane, err := v.cube.Channel(k)
	if err != nil {
		return nil, err
	}
	lo, hi := finiteRange(v.cube.Data)
	return renderPlane(plane, v.cube.SpatialShape(), lo, hi)
}

// MaskChannelImage renders the mask plane at the given spectral coordinate
// in black and white.
func (v *Viewer) MaskChannelImage(m *mask.Mask, k int) (image.Image, error) {
	if len(m.Bits) != v.cube.Len() {
		return nil, fmt.Errorf("mask has %d cells, cube has %d", len(m.Bits), v.cube.Len())
	}
	if k < 0 || k >= v.cube.SpectralLen() {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", k, v.cube.SpectralLen())
	}

	plane := make([]float64, v.cube.NumProfiles())
	step := v.cube.Stride(v.cube.SpectralAxis)
	for p := range plane {
		if m.Bits[v.cube.ProfileStart(p)+k*step] {
			plane[p] = 1
		}
	}
	return renderPlane(plane, v.cube.SpatialShape(), 0, 1)
}

// SaveChannelSequence renders every spectral channel into outputDir as
// channel_NNN.jpg.
func (v *Viewer) SaveChannelSequence(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for k := 0; k < v.cube.SpectralLen(); k++ {
		img, err := v.ChannelImage(k)
		if err != nil {
			return err
		}
		name := filepath.Join(outputDir, fmt.Sprintf("channel_%03d.jpg", k))
		if err := SaveImage(img, name); err != nil {
			return err
		}
	}
	return nil
}

// RenderMomentMap renders a 2-D moment or ratio map, linearly scaled between
// its finite minimum and maximum. NaN positions render black.
func RenderMomentMap(m *moment.Map) (image.Image, error) {
	if len(m.Shape) != 2 {
		return nil, fmt.Errorf("moment map rendering requires 2 axes, got %d", len(m.Shape))
	}
	lo, hi := finiteRange(m.Values)
	return renderPlane(m.Values, m.Shape, lo, hi)
}

// SaveImage writes an image as JPEG.
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// renderPlane converts a flat 2-D field into a Gray16 image with the given
// linear scaling range.
func renderPlane(plane []float64, shape []int, lo, hi float64) (image.Image, error) {
	if len(shape) != 2 {
		return nil, fmt.Errorf("plane rendering requires 2 axes, got %d", len(shape))
	}
	height, width := shape[0], shape[1]
	if len(plane) != height*width {
		return nil, fmt.Errorf("plane has %d values, shape wants %d", len(plane), height*width)
	}

	span := hi - lo
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := plane[y*width+x]
			if math.IsNaN(v) {
				img.SetGray16(x, y, color.Gray16{Y: 0})
				continue
			}
			norm := 0.0
			if span > 0 {
				norm = (v - lo) / span
			}
			value := uint16(math.Max(0, math.Min(65535, norm*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// finiteRange returns the minimum and maximum finite values of a field,
// or (0, 0) when none exist.
func finiteRange(values []float64) (lo, hi float64) {
	first := true
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
