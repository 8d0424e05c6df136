// Package rawimport loads headerless binary volumes.
//
// The caller describes the layout (extents, element type, byte order and
// memory order). The importer checks the description against the file size,
// writes a MetaImage sidecar header next to the data and reads the volume
// through it. Nothing is retried: a wrong size or an unwritable header fails
// the same way every time until the description or the file changes.
//
// Two imports whose data files share a directory and base name write the
// same sidecar path; the last writer wins.
package rawimport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"volumeio/internal/models"
	"volumeio/pkg/metaimage"
	"volumeio/pkg/progress"
	"volumeio/pkg/resample"
)

// HeaderExt is the extension of the synthesized sidecar header.
const HeaderExt = ".mhd"

// DescribeFromUser builds a descriptor from form style input. dimZ is only
// used when dimCount is 3.
func DescribeFromUser(dimCount, dimX, dimY, dimZ int, t models.ElementType, byteOrder models.ByteOrder, order models.MemoryOrder) (models.VolumeDescriptor, error) {
	var dims []int
	switch dimCount {
	case 2:
		dims = []int{dimX, dimY}
	case 3:
		dims = []int{dimX, dimY, dimZ}
	default:
		return models.VolumeDescriptor{}, fmt.Errorf("%w: dimensionality must be 2 or 3, got %d", models.ErrInvalidDimensions, dimCount)
	}
	d := models.VolumeDescriptor{
		Dimensions:  dims,
		ElementType: t,
		ByteOrder:   byteOrder,
		MemoryOrder: order,
	}
	if err := d.Validate(); err != nil {
		return models.VolumeDescriptor{}, err
	}
	return d, nil
}

// ValidateSize compares the size of the file at path with the size implied by
// d and returns the bytes per element on success.
func ValidateSize(path string, d models.VolumeDescriptor) (int, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if expected := d.ExpectedBytes(); info.Size() != expected {
		return 0, &SizeMismatchError{Path: path, Expected: expected, Actual: info.Size()}
	}
	return d.BytesPerElement(), nil
}

// HeaderOptions are the header values the descriptor does not carry.
type HeaderOptions struct {
	HeaderSize int
	Spacing    [3]float64
	Origin     [3]float64
}

// DefaultHeaderOptions uses unit spacing, a zero origin and no header bytes.
func DefaultHeaderOptions() HeaderOptions {
	return HeaderOptions{Spacing: [3]float64{1, 1, 1}}
}

// SynthesizeHeader returns the MetaImage header text describing dataPath.
// Only the base name of dataPath is recorded so the header stays valid when
// the pair of files is moved together.
func SynthesizeHeader(dataPath string, d models.VolumeDescriptor, opts HeaderOptions) string {
	if opts.Spacing == ([3]float64{}) {
		opts.Spacing = [3]float64{1, 1, 1}
	}
	n := len(d.Dimensions)
	h := metaimage.NewHeader(d.Dimensions, d.ElementType, filepath.Base(dataPath))
	copy(h.ElementSpacing, opts.Spacing[:n])
	copy(h.Position, opts.Origin[:n])
	h.ByteOrderMSB = d.ByteOrder == models.BigEndian
	h.HeaderSize = opts.HeaderSize
	return h.Format()
}

// HeaderPath is the sidecar header path for a data file.
func HeaderPath(dataPath string) string {
	base := filepath.Base(dataPath)
	return filepath.Join(filepath.Dir(dataPath), strings.TrimSuffix(base, filepath.Ext(base))+HeaderExt)
}

// Options control a single import.
type Options struct {
	// Resample subsamples the volume to fit TargetShape instead of writing
	// a sidecar header.
	Resample    bool
	TargetShape []int

	Header   HeaderOptions
	Progress progress.Sink
}

// Importer loads raw volumes. The zero value is ready to use.
type Importer struct {
	Log logrus.FieldLogger
}

// New returns an importer logging to log.
func New(log logrus.FieldLogger) *Importer {
	return &Importer{Log: log}
}

func (im *Importer) logger() logrus.FieldLogger {
	if im.Log == nil {
		return logrus.StandardLogger()
	}
	return im.Log
}

// Import loads the raw file at path described by d.
//
// A *SizeMismatchError is returned before anything is written. A
// *HeaderWriteError is returned when the sidecar header cannot be written or
// the volume cannot be read back through it. Other errors come unchanged from
// the file system or the resampling reader.
func (im *Importer) Import(path string, d models.VolumeDescriptor, opts Options) (*models.Volume, *models.ImportMetadata, error) {
	sink := progress.NewMonotonic(opts.Progress)
	log := im.logger().WithFields(logrus.Fields{
		"file":  path,
		"dims":  d.Dimensions,
		"type":  d.ElementType.String(),
		"order": d.MemoryOrder.String(),
	})

	bpe, err := ValidateSize(path, d)
	if err != nil {
		log.WithError(err).Warn("raw file rejected")
		return nil, nil, err
	}
	sink.Report(10)

	meta := &models.ImportMetadata{
		FileType:    models.FileTypeRaw,
		Dimensions:  append([]int(nil), d.Dimensions...),
		MemoryOrder: d.MemoryOrder,
		ElementType: d.ElementType,
		BitDepth:    d.ElementType.BitDepth(),
		Shape:       d.Shape(),
	}
	big := d.ByteOrder == models.BigEndian
	meta.IsBigEndian = &big

	var vol *models.Volume
	if opts.Resample {
		r := &resample.Reader{
			Path:            path,
			BytesPerElement: bpe,
			ElementType:     d.ElementType,
			ByteOrder:       d.ByteOrder,
			MemoryOrder:     d.MemoryOrder,
			StoredShape:     meta.Shape,
			TargetShape:     opts.TargetShape,
			Progress:        sink,
		}
		vol, err = r.Read()
		if err != nil {
			return nil, nil, err
		}
		meta.Resampled = r.Resampled()
	} else {
		hdrPath := HeaderPath(path)
		if filepath.Clean(hdrPath) == filepath.Clean(path) {
			err := &HeaderWriteError{Path: hdrPath, Err: ErrHeaderIsDataFile}
			log.WithError(err).Error("refusing to write sidecar header")
			return nil, nil, err
		}
		text := SynthesizeHeader(path, d, opts.Header)
		if err := os.WriteFile(hdrPath, []byte(text), 0644); err != nil {
			log.WithError(err).Error("could not write sidecar header")
			return nil, nil, &HeaderWriteError{Path: hdrPath, Err: err}
		}
		sink.Report(50)

		reader := &metaimage.Reader{Progress: sink}
		vol, err = reader.Read(hdrPath)
		if err != nil {
			log.WithError(err).Error("could not read volume through sidecar header")
			return nil, nil, &HeaderWriteError{Path: hdrPath, Err: err}
		}
	}
	sink.Report(80)

	log.WithFields(logrus.Fields{
		"shape":     meta.Shape,
		"bitDepth":  meta.BitDepth,
		"resampled": meta.Resampled,
	}).Info("raw volume imported")
	sink.Report(100)
	return vol, meta, nil
}

// ImportInto imports like Import and hands the volume to out without
// copying samples: out shares its buffer with the importer's result.
func (im *Importer) ImportInto(out *models.Volume, path string, d models.VolumeDescriptor, opts Options) (*models.ImportMetadata, error) {
	vol, meta, err := im.Import(path, d, opts)
	if err != nil {
		return nil, err
	}
	out.ShallowCopy(vol)
	return meta, nil
}
