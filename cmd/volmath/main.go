package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"volumeio/internal/models"
	"volumeio/pkg/config"
	"volumeio/pkg/imagemath"
	"volumeio/pkg/loader"
	"volumeio/pkg/metaimage"
	"volumeio/pkg/visualization"
)

// report is printed as YAML when the run completes.
type report struct {
	Fixed      imagemath.Stats       `yaml:"fixed"`
	Moving     *imagemath.Stats      `yaml:"moving,omitempty"`
	Result     *imagemath.Stats      `yaml:"result,omitempty"`
	Similarity *imagemath.Similarity `yaml:"similarity,omitempty"`
}

func main() {
	configPath := flag.String("config", "volumeio.yaml", "Configuration file (.yaml or .toml)")
	fixedPath := flag.String("fixed", "", "Fixed volume (.mha, .mhd, .npy, .tif)")
	movingPath := flag.String("moving", "", "Moving volume to combine with the fixed one")
	op := flag.String("op", "", "Voxel operation: add, sub, mul or div")
	outType := flag.String("out-type", "float32", "Output type of -op: float32 or float64")
	tint := flag.String("tint", "", "Tint the fixed volume green or magenta")
	overlay := flag.Bool("overlay", false, "Overlay fixed in green and moving in magenta")
	output := flag.String("output", "", "Write the result as MetaImage (.mha or .mhd)")
	compress := flag.Bool("compress", false, "Compress MetaImage output")
	histogram := flag.String("histogram", "", "Save an intensity histogram of the result as PNG")
	bins := flag.Int("bins", 64, "Histogram bins")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *fixedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(*debug)
	creator := loader.NewCreator(logger)
	opts := loader.Options{
		TempFolder: cfg.Import.TempFolder,
		Workers:    cfg.Processing.NumCores,
	}

	paths := []string{*fixedPath}
	if *movingPath != "" {
		paths = append(paths, *movingPath)
	}
	vols := make([]*models.Volume, len(paths))
	g, ctx := errgroup.WithContext(context.Background())
	for i, p := range paths {
		g.Go(func() error {
			vols[i] = &models.Volume{}
			return creator.Create(ctx, strings.Split(p, ","), vols[i], nil, opts)
		})
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Failed to load volumes")
	}

	fixed := vols[0]
	rep := report{Fixed: imagemath.Statistics(fixed)}
	result := fixed

	if len(vols) > 1 {
		moving := vols[1]
		ms := imagemath.Statistics(moving)
		rep.Moving = &ms
		sim, err := imagemath.Compare(fixed, moving)
		if err != nil {
			logger.WithError(err).Fatal("Cannot compare volumes")
		}
		rep.Similarity = &sim

		if *op != "" {
			operation, err := imagemath.ParseOperation(*op)
			if err != nil {
				logger.WithError(err).Fatal("Invalid operation")
			}
			t, err := models.ParseElementType(*outType)
			if err != nil {
				logger.WithError(err).Fatal("Invalid output type")
			}
			result, err = imagemath.Mathematics(operation, fixed, moving, t)
			if err != nil {
				logger.WithError(err).Fatal("Operation failed")
			}
			rs := imagemath.Statistics(result)
			rep.Result = &rs
		}
	}

	if *overlay {
		if len(vols) < 2 {
			logger.Fatal("Overlay needs -moving")
		}
		result, err = imagemath.Overlay(fixed, vols[1])
		if err != nil {
			logger.WithError(err).Fatal("Overlay failed")
		}
	} else if *tint != "" {
		c, err := imagemath.ParseColor(*tint)
		if err != nil {
			logger.WithError(err).Fatal("Invalid tint")
		}
		result, err = imagemath.ToRGB(result, c)
		if err != nil {
			logger.WithError(err).Fatal("Tint failed")
		}
	}

	if *histogram != "" {
		viewer := visualization.NewViewer(result, logger)
		if err := viewer.SaveHistogram(*histogram, *bins); err != nil {
			logger.WithError(err).Error("Failed to save histogram")
		}
	}

	if *output != "" {
		if err := metaimage.Write(*output, result, metaimage.WriteOptions{Compress: *compress}); err != nil {
			logger.WithError(err).Fatal("Failed to write result")
		}
		logger.WithFields(logrus.Fields{
			"file":       *output,
			"dims":       result.Extent(),
			"components": result.Components,
			"size":       humanize.Bytes(uint64(len(result.Data))),
		}).Info("Result written")
	}

	out, err := yaml.Marshal(rep)
	if err != nil {
		logger.WithError(err).Fatal("Failed to encode report")
	}
	fmt.Print(string(out))
}
