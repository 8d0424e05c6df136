package metaimage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"volumeio/internal/models"
	"volumeio/pkg/progress"
)

// Reader loads a MetaImage file into memory.
type Reader struct {
	// Progress receives fractions of the read as 0-80, the share of an
	// import spent loading samples.
	Progress progress.Sink
}

// Read is shorthand for a Reader without progress reporting.
func Read(path string) (*models.Volume, error) {
	return (&Reader{}).Read(path)
}

// Read parses the header at path and loads its samples. Samples stored
// big-endian are converted to the little-endian in-memory layout.
func (r *Reader) Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	data, err := r.readData(path, f, h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vol, err := models.NewVolume(h.DimSize, h.ElementType, h.Channels)
	if err != nil {
		return nil, err
	}
	vol.Data = data
	copy(vol.Spacing[:], h.ElementSpacing[:h.NDims])
	copy(vol.Origin[:], h.Position[:h.NDims])
	if h.ByteOrderMSB {
		swapToLittleEndian(vol.Data, h.ElementType.Size())
	}
	return vol, nil
}

func (r *Reader) readData(path string, headerFile *os.File, h *Header) ([]byte, error) {
	src := headerFile
	offset := h.Length
	if h.ElementDataFile != LocalDataFile {
		dataPath := h.ElementDataFile
		if !filepath.IsAbs(dataPath) {
			dataPath = filepath.Join(filepath.Dir(path), dataPath)
		}
		df, err := os.Open(dataPath)
		if err != nil {
			return nil, err
		}
		defer df.Close()
		src = df
		offset = 0
	}

	want := h.DataBytes()
	info, err := src.Stat()
	if err != nil {
		return nil, err
	}
	switch {
	case h.HeaderSize == -1 && h.Compressed:
		return nil, fmt.Errorf("%w: HeaderSize -1 with compressed data", ErrUnsupported)
	case h.HeaderSize == -1:
		offset = info.Size() - want
		if offset < 0 {
			return nil, fmt.Errorf("%w: file holds %d bytes, need %d", ErrDataSize, info.Size(), want)
		}
	default:
		offset += int64(h.HeaderSize)
	}

	var in io.Reader = io.NewSectionReader(src, offset, info.Size()-offset)
	if h.Compressed {
		if h.CompressedDataSize > 0 {
			in = io.LimitReader(in, h.CompressedDataSize)
		}
		zr, err := zlib.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("opening compressed data: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	data := make([]byte, want)
	if err := r.readFull(in, data); err != nil {
		return nil, err
	}
	return data, nil
}

// readFull fills data in chunks so progress can be reported.
func (r *Reader) readFull(in io.Reader, data []byte) error {
	const chunk = 1 << 20
	scaled := progress.Scaled{Sink: r.Progress, Lo: 0, Hi: 80}
	for off := 0; off < len(data); {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		n, err := io.ReadFull(in, data[off:end])
		off += n
		if err != nil {
			return fmt.Errorf("%w: read %d of %d bytes", ErrDataSize, off, len(data))
		}
		scaled.Fraction(float64(off) / float64(len(data)))
	}
	return nil
}

func swapToLittleEndian(data []byte, size int) {
	if size < 2 {
		return
	}
	for i := 0; i+size <= len(data); i += size {
		b := data[i : i+size]
		for l, h := 0, size-1; l < h; l, h = l+1, h-1 {
			b[l], b[h] = b[h], b[l]
		}
	}
}
