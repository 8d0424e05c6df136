package metaimage

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"

	"volumeio/internal/models"
)

// WriteOptions controls how Write stores the samples.
type WriteOptions struct {
	// Compress stores the samples zlib compressed.
	Compress bool
}

// Write saves vol to path. A .mha path stores the samples inline; any other
// extension gets a separate .raw (or .zraw when compressed) data file next
// to the header.
func Write(path string, vol *models.Volume, opts WriteOptions) error {
	inline := strings.EqualFold(filepath.Ext(path), ".mha")

	dataFile := LocalDataFile
	dataPath := path
	if !inline {
		ext := ".raw"
		if opts.Compress {
			ext = ".zraw"
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		dataFile = base + ext
		dataPath = filepath.Join(filepath.Dir(path), dataFile)
	}

	h := NewHeader(vol.Extent(), vol.Type, dataFile)
	h.Channels = vol.Components
	copy(h.ElementSpacing, vol.Spacing[:vol.NDims])
	copy(h.Position, vol.Origin[:vol.NDims])

	payload := vol.Data
	if opts.Compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(vol.Data); err != nil {
			return fmt.Errorf("compressing samples: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing samples: %w", err)
		}
		payload = buf.Bytes()
		h.Compressed = true
		h.CompressedDataSize = int64(len(payload))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating header file: %w", err)
	}
	w := bufio.NewWriter(f)
	w.WriteString(h.Format())
	w.WriteString("\n")
	if inline {
		w.Write(payload)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if !inline {
		if err := os.WriteFile(dataPath, payload, 0644); err != nil {
			return fmt.Errorf("writing data file: %w", err)
		}
	}
	return nil
}
