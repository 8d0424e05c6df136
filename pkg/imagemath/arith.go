package imagemath

import (
	"fmt"
	"strings"

	"volumeio/internal/models"
)

// Operation is a voxel-wise binary operation.
type Operation int

const (
	Add Operation = iota
	Subtract
	Multiply
	Divide
)

func (op Operation) String() string {
	switch op {
	case Add:
		return "add"
	case Subtract:
		return "subtract"
	case Multiply:
		return "multiply"
	case Divide:
		return "divide"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// ParseOperation accepts add, sub(tract), mul(tiply) and div(ide).
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "add", "+":
		return Add, nil
	case "sub", "subtract", "-":
		return Subtract, nil
	case "mul", "multiply", "*":
		return Multiply, nil
	case "div", "divide", "/":
		return Divide, nil
	}
	return 0, fmt.Errorf("imagemath: unknown operation %q", s)
}

func (op Operation) apply(a, b float64) float64 {
	switch op {
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	case Divide:
		return a / b
	}
	return a + b
}

// Mathematics combines a and b voxel by voxel into a new volume of outType,
// which must be Float32 or Float64. Division by zero follows IEEE rules.
// The geometry of a is kept.
func Mathematics(op Operation, a, b *models.Volume, outType models.ElementType) (*models.Volume, error) {
	if op < Add || op > Divide {
		return nil, fmt.Errorf("imagemath: unknown operation %v", op)
	}
	if !outType.IsFloat() {
		return nil, fmt.Errorf("imagemath: output type must be float32 or float64, got %v", outType)
	}
	if !a.SameGeometry(b) {
		return nil, fmt.Errorf("%w: %v/%d and %v/%d", ErrShapeMismatch, a.Dims, a.Components, b.Dims, b.Components)
	}
	out, err := models.NewVolume(a.Extent(), outType, a.Components)
	if err != nil {
		return nil, err
	}
	out.Spacing = a.Spacing
	out.Origin = a.Origin

	for i := 0; i < a.NumSamples(); i++ {
		out.Set(i, op.apply(a.At(i), b.At(i)))
	}
	return out, nil
}
