package imagemath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volumeio/internal/models"
)

// Similarity scores how well two volumes of the same shape agree.
type Similarity struct {
	RMSE              float64 `yaml:"rmse"`
	Correlation       float64 `yaml:"correlation"`
	SSIM              float64 `yaml:"ssim"`
	MutualInformation float64 `yaml:"mutualInformation"`
	EntropyDiff       float64 `yaml:"entropyDiff"`
}

// Compare computes similarity metrics between a fixed and a moving volume.
func Compare(fixed, moving *models.Volume) (Similarity, error) {
	if !fixed.SameGeometry(moving) {
		return Similarity{}, fmt.Errorf("%w: %v and %v", ErrShapeMismatch, fixed.Dims, moving.Dims)
	}
	x := fixed.Float64s()
	y := moving.Float64s()

	var s Similarity
	s.RMSE = rmse(x, y)
	s.SSIM = ssim(x, y)
	s.MutualInformation = mutualInformation(x, y)
	s.EntropyDiff = math.Abs(entropy(x) - entropy(y))
	if stat.Variance(x, nil) > 0 && stat.Variance(y, nil) > 0 {
		s.Correlation = stat.Correlation(x, y, nil)
	}
	return s, nil
}

func rmse(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n == 0 {
		return 0
	}
	return floats.Distance(x, y, 2) / math.Sqrt(float64(n))
}

// ssim is the global structural similarity index. The dynamic range is
// taken from the data.
func ssim(x, y []float64) float64 {
	const k1, k2 = 0.01, 0.03
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	l := math.Max(floats.Max(x), floats.Max(y)) - math.Min(floats.Min(x), floats.Min(y))
	if l == 0 {
		l = 1
	}
	c1 := (k1 * l) * (k1 * l)
	c2 := (k2 * l) * (k2 * l)

	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	sigmaX := stat.Variance(x, nil)
	sigmaY := stat.Variance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// mutualInformation uses the Gaussian approximation
// 0.5 * log(var(x) var(y) / (var(x) var(y) - cov(x,y)^2)).
func mutualInformation(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	varX := stat.Variance(x, nil)
	varY := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)
	if varX <= 0 || varY <= 0 {
		return 0
	}
	det := varX*varY - cov*cov
	if det <= 0 {
		return math.Inf(1)
	}
	return 0.5 * math.Log(varX*varY/det)
}

// entropy is the Shannon entropy in bits over a 256 bin histogram.
func entropy(data []float64) float64 {
	const bins = 256
	n := len(data)
	if n == 0 {
		return 0
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return 0
	}
	hist := make([]float64, bins)
	width := (hi - lo) / bins
	for _, v := range data {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		hist[i]++
	}
	e := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / float64(n)
			e -= p * math.Log2(p)
		}
	}
	return e
}
