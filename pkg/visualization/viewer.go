// Package visualization extracts and saves 2D views of a loaded volume.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"volumeio/internal/models"
)

// Viewer renders orthogonal slices and regions of a volume
type Viewer struct {
	// vol is the volume being viewed
	vol *models.Volume

	// lo and hi are the intensity window mapped onto the full gray range
	lo, hi float64

	log logrus.FieldLogger
}

// NewViewer creates a viewer over vol. Intensities are windowed to the
// volume's own range.
func NewViewer(vol *models.Volume, log logrus.FieldLogger) *Viewer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := &Viewer{vol: vol, log: log}
	if data := v.channel(); len(data) > 0 {
		v.lo, v.hi = floats.Min(data), floats.Max(data)
	}
	return v
}

// channel returns the first component of every voxel.
func (v *Viewer) channel() []float64 {
	out := make([]float64, v.vol.NumVoxels())
	for i := range out {
		out[i] = v.vol.At(i * v.vol.Components)
	}
	return out
}

// Window returns the intensity range mapped to black and white.
func (v *Viewer) Window() (lo, hi float64) {
	return v.lo, v.hi
}

// SetWindow overrides the intensity range mapped to black and white.
func (v *Viewer) SetWindow(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

func (v *Viewer) gray(x, y, z int) color.Gray16 {
	val := v.vol.At(v.vol.Index(x, y, z, 0))
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	n := (val - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(65535, n*65535))))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	w, h, d := v.vol.Dims[0], v.vol.Dims[1], v.vol.Dims[2]

	var img *image.Gray16
	switch axis {
	case "x", "X":
		// YZ plane
		if position >= w {
			return nil, fmt.Errorf("position %d exceeds width %d", position, w)
		}
		img = image.NewGray16(image.Rect(0, 0, d, h))
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				img.SetGray16(z, y, v.gray(position, y, z))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= h {
			return nil, fmt.Errorf("position %d exceeds height %d", position, h)
		}
		img = image.NewGray16(image.Rect(0, 0, w, d))
		for z := 0; z < d; z++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, z, v.gray(x, position, z))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= d {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, d)
		}
		img = image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, v.gray(x, y, position))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion extracts a volume of interest. The origin of the result is
// moved so the region keeps its physical position.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*models.Volume, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	src := v.vol
	if startX+sizeX > src.Dims[0] || startY+sizeY > src.Dims[1] || startZ+sizeZ > src.Dims[2] {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	dims := []int{sizeX, sizeY, sizeZ}
	if src.NDims == 2 {
		dims = dims[:2]
	}
	region, err := models.NewVolume(dims, src.Type, src.Components)
	if err != nil {
		return nil, err
	}
	region.Spacing = src.Spacing
	start := [3]int{startX, startY, startZ}
	for i := range region.Origin {
		region.Origin[i] = src.Origin[i] + float64(start[i])*src.Spacing[i]
	}

	// whole rows are contiguous in both volumes
	size := src.Type.Size()
	row := sizeX * src.Components * size
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			s := src.Index(startX, startY+y, startZ+z, 0) * size
			d := region.Index(0, y, z, 0) * size
			copy(region.Data[d:d+row], src.Data[s:s+row])
		}
	}

	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Dims[0]
	case "y", "Y":
		maxPos = v.vol.Dims[1]
	case "z", "Z":
		maxPos = v.vol.Dims[2]
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}
	v.log.WithFields(logrus.Fields{"axis": axis, "slices": maxPos, "dir": outputDir}).Debug("saved slice sequence")

	return nil
}
