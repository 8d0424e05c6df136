package imagemath

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volumeio/internal/models"
)

// Stats summarises the intensities of a volume.
type Stats struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Mean   float64 `yaml:"mean"`
	Median float64 `yaml:"median"`
	StdDev float64 `yaml:"stdDev"`
	Count  int     `yaml:"count"`
}

// Statistics computes Stats over every sample of vol.
func Statistics(vol *models.Volume) Stats {
	data := vol.Float64s()
	if len(data) == 0 {
		return Stats{}
	}
	s := Stats{
		Min:   floats.Min(data),
		Max:   floats.Max(data),
		Count: len(data),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		s.StdDev = 0
	}
	s.Median = median(data)
	return s
}

// median sorts values in place.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
