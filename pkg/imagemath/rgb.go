// Package imagemath implements the voxel algebra used when comparing two
// registered volumes: tinting, arithmetic, statistics and similarity scores.
package imagemath

import (
	"errors"
	"fmt"

	"volumeio/internal/models"
)

var (
	// ErrUnsupportedColor is returned by ToRGB for an unknown tint.
	ErrUnsupportedColor = errors.New("imagemath: unsupported color")
	// ErrShapeMismatch is returned when two volumes differ in extent or components.
	ErrShapeMismatch = errors.New("imagemath: volumes differ in shape")
	// ErrNotScalar is returned for multi-component input where a scalar volume is needed.
	ErrNotScalar = errors.New("imagemath: volume is not scalar")
)

// Color selects the tint applied by ToRGB.
type Color int

const (
	Green Color = iota
	Magenta
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Magenta:
		return "magenta"
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

// ParseColor accepts "green" or "magenta".
func ParseColor(s string) (Color, error) {
	switch s {
	case "green":
		return Green, nil
	case "magenta":
		return Magenta, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedColor, s)
}

// Weights returns the red, green and blue multipliers of c.
func (c Color) Weights() ([3]float64, error) {
	switch c {
	case Green:
		return [3]float64{0, 1, 0.5}, nil
	case Magenta:
		return [3]float64{1, 0, 0.5}, nil
	}
	return [3]float64{}, fmt.Errorf("%w: %v", ErrUnsupportedColor, c)
}

// ToRGB tints a scalar volume. The result has three components of the same
// scalar type, each the input value times the channel weight.
func ToRGB(vol *models.Volume, c Color) (*models.Volume, error) {
	w, err := c.Weights()
	if err != nil {
		return nil, err
	}
	if vol.Components != 1 {
		return nil, fmt.Errorf("%w: %d components", ErrNotScalar, vol.Components)
	}
	out, err := models.NewVolume(vol.Extent(), vol.Type, 3)
	if err != nil {
		return nil, err
	}
	out.Spacing = vol.Spacing
	out.Origin = vol.Origin

	for i := 0; i < vol.NumVoxels(); i++ {
		v := vol.At(i)
		for ch := 0; ch < 3; ch++ {
			out.Set(3*i+ch, v*w[ch])
		}
	}
	return out, nil
}

// Overlay composes fixed tinted green with moving tinted magenta, so voxels
// where the two agree come out gray. The sum is stored as float32.
func Overlay(fixed, moving *models.Volume) (*models.Volume, error) {
	g, err := ToRGB(fixed, Green)
	if err != nil {
		return nil, err
	}
	m, err := ToRGB(moving, Magenta)
	if err != nil {
		return nil, err
	}
	return Mathematics(Add, g, m, models.Float32)
}
