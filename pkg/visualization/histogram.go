package visualization

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// PlotHistogram renders the intensity histogram of the first component
// with the given number of bins.
func (v *Viewer) PlotHistogram(bins int, wPx, hPx float64) (image.Image, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bins must be positive, got %d", bins)
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Intensity histogram (%v, %d voxels)", v.vol.Type, v.vol.NumVoxels())
	p.X.Label.Text = "intensity"
	p.Y.Label.Text = "count"
	p.Add(plotter.NewGrid())

	hist, err := plotter.NewHist(plotter.Values(v.channel()), bins)
	if err != nil {
		return nil, err
	}
	p.Add(hist)

	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.New(width, height)
	p.Draw(vgdraw.New(c))
	return c.Image(), nil
}

// SaveHistogram renders the histogram to a PNG file.
func (v *Viewer) SaveHistogram(filename string, bins int) (err error) {
	img, err := v.PlotHistogram(bins, 800, 500)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}
