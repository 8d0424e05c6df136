// Package loader turns image files into in-memory volumes. It picks a reader
// from the file extension and records what it loaded in an ImportMetadata.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"volumeio/internal/models"
	"volumeio/pkg/metaimage"
	"volumeio/pkg/npy"
	"volumeio/pkg/progress"
	"volumeio/pkg/rawimport"
	"volumeio/pkg/resample"
	"volumeio/pkg/tiffstack"
)

// AcceptedFormats lists the extensions Create understands.
var AcceptedFormats = []string{".mhd", ".mha", ".npy", ".tif", ".tiff", ".raw"}

// UnsupportedFormatError is returned for files with an unknown extension.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("file format is not supported: %s (accepted formats include: %s)",
		e.Path, strings.Join(AcceptedFormats, ", "))
}

// ErrNoFiles is returned when Create is called without files.
var ErrNoFiles = errors.New("loader: no image files given")

// Options control a single Create call.
type Options struct {
	// ConvertNumpy also writes TIFF stacks as .npy. MetaImage files are
	// always converted.
	ConvertNumpy bool

	// Resample subsamples .npy and .raw files larger than TargetShape.
	Resample    bool
	TargetShape []int

	// TempFolder receives converted .npy files. When empty they are written
	// next to the source.
	TempFolder string

	// Descriptor describes a .raw file. When nil the layout is taken from
	// metadata of an earlier raw import.
	Descriptor *models.VolumeDescriptor

	// Header holds spacing and origin for headers synthesized for .raw
	// files. The zero value uses unit spacing.
	Header rawimport.HeaderOptions

	// Workers bounds parallel TIFF decoding.
	Workers int

	Progress progress.Sink
}

// Creator loads volumes.
type Creator struct {
	Log logrus.FieldLogger
	Raw *rawimport.Importer
}

// NewCreator returns a Creator logging to log.
func NewCreator(log logrus.FieldLogger) *Creator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Creator{Log: log, Raw: rawimport.New(log)}
}

// Create loads files into out and fills meta. A single file is dispatched on
// its extension; several files are read as a TIFF stack. out receives a
// shallow copy of the loaded volume.
func (c *Creator) Create(ctx context.Context, files []string, out *models.Volume, meta *models.ImportMetadata, opts Options) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	if meta == nil {
		meta = &models.ImportMetadata{}
	}
	sink := progress.NewMonotonic(opts.Progress)
	opts.Progress = sink
	sink.Report(10)

	ext := ".tif"
	if len(files) == 1 {
		ext = strings.ToLower(filepath.Ext(files[0]))
	}
	log := c.Log.WithFields(logrus.Fields{"files": len(files), "first": files[0], "format": ext})
	log.Info("creating image data")

	var err error
	switch ext {
	case ".mha", ".mhd":
		err = c.loadMetaImage(files[0], out, meta, opts)
	case ".npy":
		err = c.loadNumpy(files[0], out, meta, opts)
	case ".tif", ".tiff":
		err = c.loadTIFF(ctx, files, out, meta, opts)
	case ".raw":
		err = c.loadRaw(files[0], out, meta, opts)
	default:
		err = &UnsupportedFormatError{Path: files[0]}
	}
	if err != nil {
		log.WithError(err).Error("error reading file")
		return err
	}
	sink.Report(100)
	return nil
}

func (c *Creator) loadMetaImage(path string, out *models.Volume, meta *models.ImportMetadata, opts Options) error {
	vol, err := (&metaimage.Reader{Progress: opts.Progress}).Read(path)
	if err != nil {
		return err
	}
	out.ShallowCopy(vol)
	opts.Progress.Report(90)

	meta.FileType = models.FileTypeMetaImage
	meta.Resampled = false
	return c.convertNumpy(path, vol, meta, opts)
}

func (c *Creator) loadNumpy(path string, out *models.Volume, meta *models.ImportMetadata, opts Options) error {
	meta.FileType = models.FileTypeNumpy
	if !opts.Resample {
		vol, h, err := npy.Read(path)
		if err != nil {
			return err
		}
		opts.Progress.Report(80)
		out.ShallowCopy(vol)
		meta.Resampled = false
		recordNumpyHeader(meta, vol.Type, h)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	h, err := npy.ReadHeader(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	t, err := h.ElementType()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	order := models.RowMajor
	if h.FortranOrder {
		order = models.ColumnMajor
	}
	target := opts.TargetShape
	if len(target) == 0 {
		target = resample.DefaultTargetShape
	}
	r := &resample.Reader{
		Path:            path,
		HeaderLength:    int64(h.Length),
		BytesPerElement: t.Size(),
		ElementType:     t,
		ByteOrder:       h.ByteOrder(),
		MemoryOrder:     order,
		StoredShape:     h.Shape,
		TargetShape:     target,
		Progress:        opts.Progress,
	}
	vol, err := r.Read()
	if err != nil {
		return err
	}
	out.ShallowCopy(vol)
	meta.Resampled = r.Resampled()
	recordNumpyHeader(meta, t, h)
	return nil
}

func recordNumpyHeader(meta *models.ImportMetadata, t models.ElementType, h *npy.Header) {
	meta.ElementType = t
	meta.BitDepth = t.BitDepth()
	meta.HeaderLength = h.Length
	meta.Shape = append([]int(nil), h.Shape...)
	meta.IsBigEndian = h.IsBigEndian()
	meta.MemoryOrder = models.RowMajor
	if h.FortranOrder {
		meta.MemoryOrder = models.ColumnMajor
	}
	if dims, err := h.Dims(); err == nil {
		meta.Dimensions = dims
	}
}

func (c *Creator) loadTIFF(ctx context.Context, files []string, out *models.Volume, meta *models.ImportMetadata, opts Options) error {
	vol, err := tiffstack.Load(ctx, files, tiffstack.Options{Workers: opts.Workers, Progress: opts.Progress})
	if err != nil {
		return err
	}
	out.ShallowCopy(vol)
	opts.Progress.Report(90)

	meta.FileType = models.FileTypeTIFF
	meta.Resampled = false
	meta.Dimensions = vol.Extent()
	meta.ElementType = vol.Type
	meta.BitDepth = vol.Type.BitDepth()
	if !opts.ConvertNumpy {
		return nil
	}
	return c.convertNumpy(files[0], vol, meta, opts)
}

func (c *Creator) loadRaw(path string, out *models.Volume, meta *models.ImportMetadata, opts Options) error {
	var d models.VolumeDescriptor
	switch {
	case opts.Descriptor != nil:
		d = *opts.Descriptor
	case meta.FileType == models.FileTypeRaw:
		var err error
		if d, err = meta.Descriptor(); err != nil {
			return err
		}
	default:
		return rawimport.ErrDescriptorRequired
	}

	raw := c.Raw
	if raw == nil {
		raw = rawimport.New(c.Log)
	}
	result, err := raw.ImportInto(out, path, d, rawimport.Options{
		Resample:    opts.Resample,
		TargetShape: opts.TargetShape,
		Header:      opts.Header,
		Progress:    opts.Progress,
	})
	if err != nil {
		return err
	}
	*meta = *result
	return nil
}

// convertNumpy writes vol as a Fortran ordered .npy file and records it.
func (c *Creator) convertNumpy(src string, vol *models.Volume, meta *models.ImportMetadata, opts Options) error {
	dst, err := NumpyPath(src, opts.TempFolder)
	if err != nil {
		return err
	}
	n, err := npy.Write(dst, vol)
	if err != nil {
		return fmt.Errorf("converting to numpy: %w", err)
	}
	c.Log.WithFields(logrus.Fields{"source": src, "numpy": dst}).Debug("converted to numpy")

	meta.NumpyFile = dst
	meta.HeaderLength = n
	meta.ElementType = vol.Type
	meta.BitDepth = vol.Type.BitDepth()
	meta.Dimensions = vol.Extent()
	meta.Shape = vol.Extent()
	meta.MemoryOrder = models.ColumnMajor
	meta.SetByteOrder(vol.Type, models.LittleEndian)
	return nil
}

// NumpyPath is where the .npy conversion of src is written.
func NumpyPath(src, tempFolder string) (string, error) {
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".npy"
	if tempFolder != "" {
		return filepath.Join(tempFolder, name), nil
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(abs), name), nil
}
