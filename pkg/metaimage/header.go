// Package metaimage reads and writes MetaImage (.mhd/.mha) volumes.
//
// Only the image subset of the format is handled: a single scalar or
// multi-channel array, optionally zlib compressed, stored either inline
// (ElementDataFile = LOCAL) or in a separate data file.
package metaimage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"volumeio/internal/models"
)

// Errors returned while parsing or reading MetaImage files.
var (
	ErrMissingField           = errors.New("metaimage: missing required field")
	ErrUnsupportedElementType = errors.New("metaimage: unsupported element type")
	ErrUnsupported            = errors.New("metaimage: unsupported feature")
	ErrDataSize               = errors.New("metaimage: data size does not match header")
)

// LocalDataFile is the ElementDataFile value for data stored after the header.
const LocalDataFile = "LOCAL"

// Header is the parsed form of a MetaImage header.
type Header struct {
	NDims          int
	DimSize        []int
	ElementSpacing []float64
	Position       []float64
	ElementType    models.ElementType
	ByteOrderMSB   bool

	// HeaderSize is the number of bytes to skip in the data file; -1 means
	// the samples are the trailing bytes of the file.
	HeaderSize int

	Channels           int
	Compressed         bool
	CompressedDataSize int64
	ElementDataFile    string

	// Length is the number of bytes the header text occupies, including the
	// line that names the data file.
	Length int64
}

// NewHeader returns a header for a volume with unit spacing and zero origin.
func NewHeader(dims []int, t models.ElementType, dataFile string) *Header {
	h := &Header{
		NDims:           len(dims),
		DimSize:         append([]int(nil), dims...),
		ElementSpacing:  make([]float64, len(dims)),
		Position:        make([]float64, len(dims)),
		ElementType:     t,
		Channels:        1,
		ElementDataFile: dataFile,
	}
	for i := range h.ElementSpacing {
		h.ElementSpacing[i] = 1
	}
	return h
}

// DataBytes is the uncompressed size of the sample data.
func (h *Header) DataBytes() int64 {
	channels := h.Channels
	if channels < 1 {
		channels = 1
	}
	return models.Product(h.DimSize) * int64(channels) * int64(h.ElementType.Size())
}

// Format renders the header text. The field order is fixed, and the text
// ends with the ElementDataFile line without a trailing newline.
func (h *Header) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NDims = %d\n", h.NDims)
	fmt.Fprintf(&b, "DimSize = %s\n", joinInts(h.DimSize[:h.NDims]))
	fmt.Fprintf(&b, "ElementSpacing = %s\n", joinFloats(h.ElementSpacing[:h.NDims]))
	fmt.Fprintf(&b, "Position = %s\n", joinFloats(h.Position[:h.NDims]))
	fmt.Fprintf(&b, "ElementType = %s\n", h.ElementType.MetaTag())
	fmt.Fprintf(&b, "ElementByteOrderMSB = %s\n", pyBool(h.ByteOrderMSB))
	fmt.Fprintf(&b, "HeaderSize = %d\n", h.HeaderSize)
	if h.Channels > 1 {
		fmt.Fprintf(&b, "ElementNumberOfChannels = %d\n", h.Channels)
	}
	if h.Compressed {
		b.WriteString("CompressedData = True\n")
		if h.CompressedDataSize > 0 {
			fmt.Fprintf(&b, "CompressedDataSize = %d\n", h.CompressedDataSize)
		}
	}
	fmt.Fprintf(&b, "ElementDataFile = %s", h.ElementDataFile)
	return b.String()
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// ParseHeader reads header lines up to and including ElementDataFile.
// The returned header's Length tells where inline data starts.
func ParseHeader(r io.Reader) (*Header, error) {
	br := bufio.NewReader(r)
	h := &Header{Channels: 1}
	var haveType, haveFile bool

	for !haveFile {
		line, err := br.ReadString('\n')
		h.Length += int64(len(line))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if line == "" && err == io.EOF {
			break
		}

		key, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "=")
		if ok {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if perr := h.set(key, value); perr != nil {
				return nil, perr
			}
			switch key {
			case "ElementType":
				haveType = true
			case "ElementDataFile":
				haveFile = true
			}
		}
		if err == io.EOF {
			break
		}
	}

	switch {
	case h.NDims == 0:
		return nil, fmt.Errorf("%w: NDims", ErrMissingField)
	case len(h.DimSize) != h.NDims:
		return nil, fmt.Errorf("%w: DimSize with %d values", ErrMissingField, h.NDims)
	case !haveType:
		return nil, fmt.Errorf("%w: ElementType", ErrMissingField)
	case !haveFile:
		return nil, fmt.Errorf("%w: ElementDataFile", ErrMissingField)
	}
	if h.ElementSpacing == nil {
		h.ElementSpacing = ones(h.NDims)
	}
	if h.Position == nil {
		h.Position = make([]float64, h.NDims)
	}
	if len(h.ElementSpacing) < h.NDims || len(h.Position) < h.NDims {
		return nil, fmt.Errorf("%w: spacing and position need %d values", ErrMissingField, h.NDims)
	}
	return h, nil
}

func (h *Header) set(key, value string) error {
	var err error
	switch key {
	case "NDims":
		h.NDims, err = strconv.Atoi(value)
		if err == nil && (h.NDims < 2 || h.NDims > 3) {
			return fmt.Errorf("%w: %d dimensions", ErrUnsupported, h.NDims)
		}
	case "DimSize":
		h.DimSize, err = parseInts(value)
	case "ElementSpacing":
		h.ElementSpacing, err = parseFloats(value)
	case "ElementSize":
		if h.ElementSpacing == nil {
			h.ElementSpacing, err = parseFloats(value)
		}
	case "Position", "Offset", "Origin":
		h.Position, err = parseFloats(value)
	case "ElementType":
		h.ElementType, err = models.ElementTypeFromMetaTag(value)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedElementType, value)
		}
	case "ElementByteOrderMSB", "BinaryDataByteOrderMSB":
		h.ByteOrderMSB, err = parseBool(value)
	case "HeaderSize":
		h.HeaderSize, err = strconv.Atoi(value)
	case "ElementNumberOfChannels":
		h.Channels, err = strconv.Atoi(value)
	case "CompressedData":
		h.Compressed, err = parseBool(value)
	case "CompressedDataSize":
		h.CompressedDataSize, err = strconv.ParseInt(value, 10, 64)
	case "ElementDataFile":
		if value == "" {
			return fmt.Errorf("%w: ElementDataFile is empty", ErrMissingField)
		}
		if strings.HasPrefix(value, "LIST") || strings.Contains(value, "%") {
			return fmt.Errorf("%w: multi-file data %q", ErrUnsupported, value)
		}
		h.ElementDataFile = value
	}
	if err != nil {
		return fmt.Errorf("metaimage: bad %s value %q: %w", key, value, err)
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, fmt.Errorf("non-positive extent %d", v)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
