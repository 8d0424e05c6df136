package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"volumeio/internal/models"
	"volumeio/pkg/config"
	"volumeio/pkg/loader"
	"volumeio/pkg/progress"
	"volumeio/pkg/rawimport"
	"volumeio/pkg/visualization"
	"volumeio/pkg/worker"
)

func main() {
	configPath := flag.String("config", "volumeio.yaml", "Configuration file (.yaml or .toml)")
	dims := flag.String("dims", "", "Raw file dimensions x,y[,z]")
	typeName := flag.String("type", "uint8", "Raw element type (int8, uint8, int16, uint16, int32, uint32, float32, float64)")
	bigEndian := flag.Bool("big-endian", false, "Raw samples are big-endian")
	order := flag.String("order", "c", "Raw memory order: c (row-major) or fortran (column-major)")
	resampleFlag := flag.Bool("resample", false, "Subsample large .npy and .raw files")
	convertNumpy := flag.Bool("convert-numpy", false, "Also convert TIFF stacks to .npy")
	tempDir := flag.String("temp-dir", "", "Directory for .npy conversions")
	metadataIn := flag.String("metadata-in", "", "Metadata YAML from an earlier raw import to reload the same file")
	metadataOut := flag.String("metadata-out", "", "Write import metadata as YAML")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save slices along all axes")
	slicesDir := flag.String("slices-dir", "slices", "Directory to save extracted slices")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: volimport [flags] file [file...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(*debug)

	opts := loader.Options{
		ConvertNumpy: cfg.Import.ConvertNumpy || *convertNumpy,
		Resample:     cfg.Import.Resample || *resampleFlag,
		TargetShape:  cfg.Import.TargetShape,
		TempFolder:   cfg.Import.TempFolder,
		Workers:      cfg.Processing.NumCores,
	}
	if *tempDir != "" {
		opts.TempFolder = *tempDir
	}
	if *dims != "" {
		d, err := describe(*dims, *typeName, *bigEndian, *order)
		if err != nil {
			logger.WithError(err).Fatal("Invalid raw description")
		}
		opts.Descriptor = &d
	}

	meta := &models.ImportMetadata{}
	if *metadataIn != "" {
		if err := readMetadata(*metadataIn, meta); err != nil {
			logger.WithError(err).Fatal("Failed to read metadata")
		}
	}

	opts.Header.Spacing, opts.Header.Origin = cfg.SpacingOrigin()

	creator := loader.NewCreator(logger)

	pool := worker.NewPool(cfg.Processing.NumCores, logger)
	var vol *models.Volume
	var failed error
	start := time.Now()

	worker.Start(pool, "import", func(sink progress.Sink) (*models.Volume, error) {
		out := &models.Volume{}
		o := opts
		o.Progress = sink
		return out, creator.Create(context.Background(), files, out, meta, o)
	}, worker.Signals[*models.Volume]{
		Progress: func(p int) { logger.WithField("percent", p).Debug("Import progress") },
		Result:   func(v *models.Volume) { vol = v },
		Error:    func(err error) { failed = err },
	})
	pool.Wait()

	if failed != nil {
		logger.WithError(failed).Fatal("Import failed")
	}

	logger.WithFields(logrus.Fields{
		"dims":     vol.Extent(),
		"type":     vol.Type.String(),
		"size":     humanize.Bytes(uint64(len(vol.Data))),
		"duration": time.Since(start).String(),
	}).Info("Import completed")

	out, err := yaml.Marshal(meta)
	if err != nil {
		logger.WithError(err).Fatal("Failed to encode metadata")
	}
	fmt.Print(string(out))

	if *metadataOut != "" {
		if err := os.WriteFile(*metadataOut, out, 0644); err != nil {
			logger.WithError(err).Fatal("Failed to write metadata")
		}
	}

	if *extractSlices {
		viewer := visualization.NewViewer(vol, logger)
		axes := []string{"x", "y", "z"}
		if vol.NDims == 2 {
			axes = []string{"z"}
		}
		for _, axis := range axes {
			axisDir := filepath.Join(*slicesDir, axis)
			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				logger.WithError(err).WithField("axis", axis).Warn("Failed to save slices")
				continue
			}
			logger.WithFields(logrus.Fields{"axis": axis, "dir": axisDir}).Info("Saved slices")
		}
	}
}

// describe builds a raw descriptor from the command line flags.
func describe(dims, typeName string, bigEndian bool, order string) (models.VolumeDescriptor, error) {
	parts := strings.Split(dims, ",")
	var xyz [3]int
	if len(parts) < 2 || len(parts) > 3 {
		return models.VolumeDescriptor{}, fmt.Errorf("dims must have 2 or 3 values, got %q", dims)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.VolumeDescriptor{}, fmt.Errorf("invalid dimension %q: %w", p, err)
		}
		xyz[i] = v
	}
	t, err := models.ParseElementType(typeName)
	if err != nil {
		return models.VolumeDescriptor{}, err
	}
	mo, err := models.ParseMemoryOrder(order)
	if err != nil {
		return models.VolumeDescriptor{}, err
	}
	bo := models.LittleEndian
	if bigEndian {
		bo = models.BigEndian
	}
	return rawimport.DescribeFromUser(len(parts), xyz[0], xyz[1], xyz[2], t, bo, mo)
}

func readMetadata(path string, meta *models.ImportMetadata) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, meta)
}
