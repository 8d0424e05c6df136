package models

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ElementType is the scalar type of a volume sample. The numeric values are
// the type codes recorded in import metadata.
type ElementType int

const (
	Int8 ElementType = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

var elementTypeNames = [...]string{"int8", "uint8", "int16", "uint16", "int32", "uint32", "float32", "float64"}

var elementTypeSizes = [...]int{1, 1, 2, 2, 4, 4, 4, 8}

var metaTags = [...]string{
	"MET_CHAR",
	"MET_UCHAR",
	"MET_SHORT",
	"MET_USHORT",
	"MET_INT",
	"MET_UINT",
	"MET_FLOAT",
	"MET_DOUBLE",
}

var numpyChars = [...]byte{'b', 'B', 'h', 'H', 'i', 'I', 'f', 'd'}

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	return t >= Int8 && t <= Float64
}

func (t ElementType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
	return elementTypeNames[t]
}

// Size returns the number of bytes per element.
func (t ElementType) Size() int {
	if !t.Valid() {
		return 0
	}
	return elementTypeSizes[t]
}

// BitDepth returns the element width in bits as recorded in metadata ("8", "16", ...).
func (t ElementType) BitDepth() string {
	return fmt.Sprintf("%d", t.Size()*8)
}

// MetaTag returns the MetaImage ElementType tag.
func (t ElementType) MetaTag() string {
	if !t.Valid() {
		return ""
	}
	return metaTags[t]
}

// NumpyChar returns the single character numpy type code.
func (t ElementType) NumpyChar() byte {
	if !t.Valid() {
		return 0
	}
	return numpyChars[t]
}

// IsFloat reports whether t is a floating point type.
func (t ElementType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// IsSigned reports whether t can hold negative values.
func (t ElementType) IsSigned() bool {
	switch t {
	case Int8, Int16, Int32, Float32, Float64:
		return true
	}
	return false
}

// ParseElementType accepts names such as "uint8" or "int16".
func ParseElementType(name string) (ElementType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range elementTypeNames {
		if n == name {
			return ElementType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q", name)
}

// ElementTypeFromMetaTag maps a MetaImage tag back to an ElementType.
func ElementTypeFromMetaTag(tag string) (ElementType, error) {
	for i, m := range metaTags {
		if m == tag {
			return ElementType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown MetaImage element type %q", tag)
}

// ElementTypeFromNumpy maps a numpy kind ('i', 'u', 'f') and item size to an ElementType.
func ElementTypeFromNumpy(kind byte, size int) (ElementType, error) {
	switch {
	case kind == 'i' && size == 1:
		return Int8, nil
	case kind == 'u' && size == 1:
		return Uint8, nil
	case kind == 'i' && size == 2:
		return Int16, nil
	case kind == 'u' && size == 2:
		return Uint16, nil
	case kind == 'i' && size == 4:
		return Int32, nil
	case kind == 'u' && size == 4:
		return Uint32, nil
	case kind == 'f' && size == 4:
		return Float32, nil
	case kind == 'f' && size == 8:
		return Float64, nil
	}
	return 0, fmt.Errorf("unsupported numpy type %c%d", kind, size)
}

// ByteOrder is the on-disk byte ordering of multi-byte samples.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// Binary returns the encoding/binary order for o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// HostByteOrder is the byte order of the running machine.
func HostByteOrder() ByteOrder {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 0 {
		return BigEndian
	}
	return LittleEndian
}

// MemoryOrder selects which axis varies fastest in a stored array's index tuple.
type MemoryOrder int

const (
	// RowMajor (C order): the last index varies fastest, shape is ([z,] y, x).
	RowMajor MemoryOrder = iota
	// ColumnMajor (Fortran order): the first index varies fastest, shape is (x, y[, z]).
	ColumnMajor
)

func (o MemoryOrder) String() string {
	if o == ColumnMajor {
		return "fortran"
	}
	return "c"
}

// ParseMemoryOrder accepts "c"/"row-major" and "f"/"fortran"/"column-major".
func ParseMemoryOrder(s string) (MemoryOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "row", "row-major", "zyx":
		return RowMajor, nil
	case "f", "fortran", "column", "column-major", "xyz":
		return ColumnMajor, nil
	}
	return 0, fmt.Errorf("unknown memory order %q", s)
}
