package chart

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

// Default PNG size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

// NewPlot builds a gonum plot of the snapshot.
func NewPlot(points []telemetry.BusPoint, res *detect.Result) (*plot.Plot, error) {
	groups, err := group(points, res)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Bus clusters (overall %s)", res.OverallRiskLevel)
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"
	p.Add(plotter.NewGrid())

	colors := palette(len(res.Clusters))
	for i, g := range groups {
		xys := make(plotter.XYs, len(g.Points))
		for j, bp := range g.Points {
			xys[j] = plotter.XY{X: bp.Longitude, Y: bp.Latitude}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("scatter %s: %w", g.Name, err)
		}
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = noiseColor
		if i < len(colors) {
			s.GlyphStyle.Color = colors[i]
		}
		p.Add(s)
		p.Legend.Add(g.Name, s)
	}
	return p, nil
}

// WritePNG renders the snapshot as a PNG image to w.
func WritePNG(w io.Writer, points []telemetry.BusPoint, res *detect.Result, width, height vg.Length) error {
	p, err := NewPlot(points, res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG renders the snapshot to a file.
func SavePNG(path string, points []telemetry.BusPoint, res *detect.Result) error {
	p, err := NewPlot(points, res)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
