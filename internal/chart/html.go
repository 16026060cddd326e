package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

// RenderHTML writes a self-contained echarts page for the snapshot.
func RenderHTML(w io.Writer, points []telemetry.BusPoint, res *detect.Result) error {
	groups, err := group(points, res)
	if err != nil {
		return err
	}

	b := boundsOf(points)
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Bus Clusters", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Bus Clusters",
			Subtitle: fmt.Sprintf("buses=%d clusters=%d overall=%s", len(points), len(res.Clusters), res.OverallRiskLevel),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Min: b.minLon, Max: b.maxLon, Name: "Longitude", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: b.minLat, Max: b.maxLat, Name: "Latitude", NameLocation: "middle", NameGap: 40}),
	)

	colors := palette(len(res.Clusters))
	for i, g := range groups {
		data := make([]opts.ScatterData, 0, len(g.Points))
		for _, p := range g.Points {
			data = append(data, opts.ScatterData{Name: p.BusID, Value: []interface{}{p.Longitude, p.Latitude}})
		}
		c := hexColor(noiseColor)
		if i < len(colors) {
			c = hexColor(colors[i])
		}
		scatter.AddSeries(g.Name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: c}),
		)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

type bounds struct {
	minLat, maxLat, minLon, maxLon float64
}

// boundsOf returns the padded extent of points so the axes do not start at zero.
func boundsOf(points []telemetry.BusPoint) bounds {
	if len(points) == 0 {
		return bounds{-1, 1, -1, 1}
	}
	b := bounds{points[0].Latitude, points[0].Latitude, points[0].Longitude, points[0].Longitude}
	for _, p := range points[1:] {
		b.minLat = math.Min(b.minLat, p.Latitude)
		b.maxLat = math.Max(b.maxLat, p.Latitude)
		b.minLon = math.Min(b.minLon, p.Longitude)
		b.maxLon = math.Max(b.maxLon, p.Longitude)
	}
	pad := math.Max(math.Max(b.maxLat-b.minLat, b.maxLon-b.minLon)*0.1, 0.005)
	b.minLat -= pad
	b.maxLat += pad
	b.minLon -= pad
	b.maxLon += pad
	return b
}
