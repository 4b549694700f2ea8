// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpcchart plots counter values against time since the start
// of the run.
package gpcchart

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpcstat"
)

// A Format is an image format.
type Format int

const (
	PNG Format = iota
	SVG
)

// ParseFormat parses "png" or "svg".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	}
	return 0, fmt.Errorf("unknown image format %q", s)
}

// Options control how a chart is drawn. Zero fields take defaults.
type Options struct {
	Title  string
	Format Format

	// Width and Height default to 20cm by 10cm.
	Width, Height vg.Length

	// DPI is the resolution of PNG output. It defaults to 96.
	DPI int
}

// ErrNoEvents is returned when asked to chart an empty output.
var ErrNoEvents = errors.New("no events to chart")

// Chart draws one line per counter series in events, with the offset
// in seconds on the X axis and the counter value on the Y axis, and
// writes the image to w.
func Chart(w io.Writer, events cook.Events, opts Options) error {
	if events.Len() == 0 {
		return ErrNoEvents
	}
	if opts.Width == 0 {
		opts.Width = 20 * vg.Centimeter
	}
	if opts.Height == 0 {
		opts.Height = 10 * vg.Centimeter
	}
	if opts.DPI == 0 {
		opts.DPI = 96
	}

	index := make(map[gpcstat.Key]int)
	var keys []gpcstat.Key
	var lines []plotter.XYs
	for i := 0; i < events.Len(); i++ {
		ev := events.At(i)
		k := gpcstat.Key{Source: ev.Key, Counter: ev.Counter, Core: ev.Core}
		li, ok := index[k]
		if !ok {
			li = len(lines)
			index[k] = li
			keys = append(keys, k)
			lines = append(lines, nil)
		}
		lines[li] = append(lines[li], plotter.XY{X: ev.Offset.Seconds(), Y: float64(ev.Value)})
	}

	pl := plot.New()
	pl.Title.Text = opts.Title
	pl.X.Label.Text = "time since start (s)"
	pl.Y.Label.Text = "value"
	pl.Legend.Top = true
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	pl.Add(grid)

	for i, xys := range lines {
		l, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("%s: %w", label(keys[i]), err)
		}
		l.Color = plotutil.Color(i)
		l.Width = vg.Points(1)
		pl.Add(l)
		pl.Legend.Add(label(keys[i]), l)
	}

	var can vg.CanvasWriterTo
	switch opts.Format {
	case PNG:
		can = vgimg.PngCanvas{Canvas: vgimg.NewWith(vgimg.UseWH(opts.Width, opts.Height),
			vgimg.UseDPI(opts.DPI), vgimg.UseBackgroundColor(color.White))}
	case SVG:
		can = vgsvg.New(opts.Width, opts.Height)
	default:
		return fmt.Errorf("unknown image format %d", opts.Format)
	}
	pl.Draw(draw.New(can))
	_, err := can.WriteTo(w)
	return err
}

func label(k gpcstat.Key) string {
	return fmt.Sprintf("%s core %d", k.Counter, k.Core)
}
