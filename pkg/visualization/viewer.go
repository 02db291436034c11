// Package visualization renders label volumes as colour-coded slice images
// for visual inspection next to the generated meshes.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"niftitostl/internal/models"
	"niftitostl/pkg/labels"
)

// palette holds distinct colours for the first labels; later labels cycle.
var palette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
	{210, 245, 60, 255},
	{250, 190, 212, 255},
	{0, 128, 128, 255},
	{170, 110, 40, 255},
}

// LabelColor returns the display colour of a label. Background is opaque
// black; integral labels map onto the palette by value, so a label keeps
// its colour across scans.
func LabelColor(label float64) color.RGBA {
	if label == labels.Background {
		return color.RGBA{0, 0, 0, 255}
	}
	i := int(math.Abs(math.Floor(label))) - 1
	if i < 0 {
		i = 0
	}
	return palette[i%len(palette)]
}

// Viewer slices a label volume along its grid axes.
type Viewer struct {
	vol *models.Volume
}

// NewViewer creates a viewer for the given volume
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{vol: vol}
}

// axisLength returns the number of slices along axis.
func (v *Viewer) axisLength(axis string) (int, error) {
	switch strings.ToLower(axis) {
	case "x":
		return v.vol.Width, nil
	case "y":
		return v.vol.Height, nil
	case "z":
		return v.vol.Depth, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice renders one slice perpendicular to axis. X slices span
// (z, y), Y slices span (x, z) and Z slices span (x, y).
func (v *Viewer) ExtractSlice(axis string, position int) (*image.RGBA, error) {
	n, err := v.axisLength(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}

	vol := v.vol
	var img *image.RGBA
	switch strings.ToLower(axis) {
	case "x":
		img = image.NewRGBA(image.Rect(0, 0, vol.Depth, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for z := 0; z < vol.Depth; z++ {
				img.SetRGBA(z, y, LabelColor(vol.At(position, y, z)))
			}
		}
	case "y":
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Depth))
		for z := 0; z < vol.Depth; z++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, z, LabelColor(vol.At(x, position, z)))
			}
		}
	default:
		img = image.NewRGBA(image.Rect(0, 0, vol.Width, vol.Height))
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				img.SetRGBA(x, y, LabelColor(vol.At(x, y, position)))
			}
		}
	}
	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis as slice_<axis>_<nnn>.png and returns the number of files written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	n, err := v.axisLength(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	axis = strings.ToLower(axis)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return n, nil
}
