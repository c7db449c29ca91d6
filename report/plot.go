// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package report

import (
	"image/color"
	"path/filepath"

	"github.com/gomlx/rgcnsum/internal/fsutil"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Metric selects the curve plotted.
type Metric string

const (
	MetricAccuracy Metric = "accuracy"
	MetricLoss     Metric = "loss"
)

func (s *Series) curve(metric Metric) Curve {
	if metric == MetricLoss {
		return s.Loss
	}
	return s.Accuracy
}

// Plot draws the mean curve of every series with its band of one standard deviation, and
// returns the plot.
func (r *Report) Plot(metric Metric) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = string(metric) + " on " + r.Dataset + " (" + r.Experiment + ")"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = string(metric)
	p.X.Min = 0
	if metric == MetricAccuracy {
		p.Y.Min, p.Y.Max = 0, 1
	}
	p.Add(plotter.NewGrid())
	for ii, s := range r.Series {
		c := s.curve(metric)
		if len(c.Mean) == 0 {
			continue
		}
		band := make(plotter.XYs, 0, 2*len(c.Mean))
		mean := make(plotter.XYs, len(c.Mean))
		for epoch := range c.Mean {
			band = append(band, plotter.XY{X: float64(epoch), Y: c.Upper[epoch]})
			mean[epoch] = plotter.XY{X: float64(epoch), Y: c.Mean[epoch]}
		}
		for epoch := len(c.Mean) - 1; epoch >= 0; epoch-- {
			band = append(band, plotter.XY{X: float64(epoch), Y: c.Lower[epoch]})
		}
		lineColor := plotutil.Color(ii)
		polygon, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, errors.Wrapf(err, "band of series %q", s.Name)
		}
		polygon.LineStyle.Width = 0
		polygon.Color = withAlpha(lineColor, 0x5a)
		line, err := plotter.NewLine(mean)
		if err != nil {
			return nil, errors.Wrapf(err, "mean of series %q", s.Name)
		}
		line.LineStyle.Color = lineColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(polygon, line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = metric == MetricLoss
	return p, nil
}

// SavePlot saves the plot of the metric as a PNG into dir, and returns its path.
func (r *Report) SavePlot(dir string, metric Metric) (string, error) {
	p, err := r.Plot(metric)
	if err != nil {
		return "", err
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, r.BaseName()+"_"+string(metric)+".png")
	if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", errors.Wrapf(err, "saving plot to %q", path)
	}
	return path, nil
}

func withAlpha(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
