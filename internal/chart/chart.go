// Package chart renders a detection result as an interactive HTML scatter
// (go-echarts) or a static PNG (gonum/plot). Points are drawn at
// (longitude, latitude), one series per cluster plus one for noise.
package chart

import (
	"fmt"
	"image/color"

	"github.com/banshee-data/buscluster/internal/cluster"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/telemetry"
)

const noiseSeries = "noise"

// series is one group of points to draw.
type series struct {
	Name   string
	Points []telemetry.BusPoint
}

// group splits points by the result's labels. Cluster series come first in
// cluster order; noise is last and omitted when empty.
func group(points []telemetry.BusPoint, res *detect.Result) ([]series, error) {
	if res == nil {
		return nil, fmt.Errorf("nil detection result")
	}
	if len(res.Labels) != len(points) {
		return nil, fmt.Errorf("result has %d labels for %d points", len(res.Labels), len(points))
	}
	out := make([]series, len(res.Clusters))
	for i := range out {
		name := fmt.Sprintf("cluster %d", i+1)
		if i < len(res.ClusterAnalyses) {
			name += " (" + res.ClusterAnalyses[i].RiskLevel.String() + ")"
		}
		out[i].Name = name
	}
	var noise []telemetry.BusPoint
	for i, l := range res.Labels {
		switch {
		case l == cluster.Noise:
			noise = append(noise, points[i])
		case l >= 0 && l < len(out):
			out[l].Points = append(out[l].Points, points[i])
		default:
			return nil, fmt.Errorf("label %d out of range for %d clusters", l, len(out))
		}
	}
	if len(noise) > 0 {
		out = append(out, series{Name: noiseSeries, Points: noise})
	}
	return out, nil
}

var noiseColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}

// palette returns n evenly spaced hues.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		q := l + s - l*s
		if l < 0.5 {
			q = l * (1 + s)
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
