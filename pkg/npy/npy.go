// Package npy reads and writes NumPy .npy arrays holding image volumes.
package npy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"volumeio/internal/models"
)

var magic = []byte("\x93NUMPY")

// Errors returned by the reader.
var (
	ErrNotNumpy    = errors.New("npy: not a NumPy array file")
	ErrBadHeader   = errors.New("npy: malformed header")
	ErrUnsupported = errors.New("npy: unsupported array")
)

// Header is the decoded array description of a .npy file.
type Header struct {
	Major, Minor int

	// Descr is the numpy type string, such as "<u2" or "|u1".
	Descr        string
	FortranOrder bool
	Shape        []int

	// Length is the number of bytes before the first sample.
	Length int
}

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadHeader decodes the preamble of a .npy stream.
func ReadHeader(r io.Reader) (*Header, error) {
	var pre [8]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotNumpy, err)
	}
	if string(pre[:6]) != string(magic) {
		return nil, ErrNotNumpy
	}
	h := &Header{Major: int(pre[6]), Minor: int(pre[7])}

	var dictLen int
	switch h.Major {
	case 1:
		var n [2]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		dictLen = int(binary.LittleEndian.Uint16(n[:]))
		h.Length = 10 + dictLen
	case 2, 3:
		var n [4]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		dictLen = int(binary.LittleEndian.Uint32(n[:]))
		h.Length = 12 + dictLen
	default:
		return nil, fmt.Errorf("%w: format version %d.%d", ErrUnsupported, h.Major, h.Minor)
	}

	dict := make([]byte, dictLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if err := h.parseDict(string(dict)); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) parseDict(s string) error {
	m := descrRe.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: no descr", ErrBadHeader)
	}
	h.Descr = m[1]

	m = fortranRe.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: no fortran_order", ErrBadHeader)
	}
	h.FortranOrder = m[1] == "True"

	m = shapeRe.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("%w: no shape", ErrBadHeader)
	}
	for _, f := range strings.Split(m[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return fmt.Errorf("%w: shape entry %q", ErrBadHeader, f)
		}
		h.Shape = append(h.Shape, v)
	}
	return nil
}

// ElementType decodes Descr.
func (h *Header) ElementType() (models.ElementType, error) {
	if len(h.Descr) < 3 {
		return 0, fmt.Errorf("%w: dtype %q", ErrUnsupported, h.Descr)
	}
	size, err := strconv.Atoi(h.Descr[2:])
	if err != nil {
		return 0, fmt.Errorf("%w: dtype %q", ErrUnsupported, h.Descr)
	}
	t, err := models.ElementTypeFromNumpy(h.Descr[1], size)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return t, nil
}

// ByteOrder is the order the samples are stored in.
func (h *Header) ByteOrder() models.ByteOrder {
	switch h.Descr[0] {
	case '>':
		return models.BigEndian
	case '=':
		return models.HostByteOrder()
	}
	return models.LittleEndian
}

// IsBigEndian reports the sample byte order, or nil when the type is a
// single byte and the order does not matter.
func (h *Header) IsBigEndian() *bool {
	if len(h.Descr) == 0 || h.Descr[0] == '|' {
		return nil
	}
	big := h.ByteOrder() == models.BigEndian
	return &big
}

// Dims converts Shape into x, y[, z] extents.
func (h *Header) Dims() ([]int, error) {
	if n := len(h.Shape); n != 2 && n != 3 {
		return nil, fmt.Errorf("%w: %d-dimensional array", ErrUnsupported, n)
	}
	dims := make([]int, len(h.Shape))
	if h.FortranOrder {
		copy(dims, h.Shape)
	} else {
		for i, v := range h.Shape {
			dims[len(dims)-1-i] = v
		}
	}
	return dims, nil
}

// Read loads a 2D or 3D array.
func Read(path string) (*models.Volume, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	t, err := h.ElementType()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	dims, err := h.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	vol, err := models.NewVolume(dims, t, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := io.ReadFull(br, vol.Data); err != nil {
		return nil, nil, fmt.Errorf("%s: reading samples: %w", path, err)
	}
	if h.ByteOrder() == models.BigEndian {
		swap(vol.Data, t.Size())
	}
	return vol, h, nil
}

func swap(data []byte, size int) {
	if size < 2 {
		return
	}
	for i := 0; i+size <= len(data); i += size {
		b := data[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			b[l], b[r] = b[r], b[l]
		}
	}
}

// Descr returns the little-endian numpy type string for t.
func Descr(t models.ElementType) string {
	kind := byte('u')
	switch {
	case t.IsFloat():
		kind = 'f'
	case t.IsSigned():
		kind = 'i'
	}
	order := byte('<')
	if t.Size() == 1 {
		order = '|'
	}
	return fmt.Sprintf("%c%c%d", order, kind, t.Size())
}

// Write stores vol as a Fortran ordered version 1.0 array with shape
// (x, y[, z]), or (components, x, y[, z]) for multi-component volumes.
// It returns the header length.
func Write(path string, vol *models.Volume) (int, error) {
	shape := vol.Extent()
	if vol.Components > 1 {
		shape = append([]int{vol.Components}, shape...)
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = strconv.Itoa(v)
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': True, 'shape': (%s), }",
		Descr(vol.Type), strings.Join(parts, ", "))

	// pad so that the preamble, dict and newline fill a multiple of 64 bytes
	total := 10 + len(dict) + 1
	if rem := total % 64; rem != 0 {
		dict += strings.Repeat(" ", 64-rem)
	}
	dict += "\n"

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	w.Write(magic)
	w.Write([]byte{1, 0})
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(dict)))
	w.Write(n[:])
	w.WriteString(dict)
	w.Write(vol.Data)
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return 10 + len(dict), f.Close()
}
