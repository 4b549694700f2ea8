// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpcstat computes summary statistics over counter reads.
package gpcstat

import (
	"time"

	"github.com/aclements/go-moremath/stats"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

// A Key identifies one counter series: a counter read on one core
// from one source.
type Key struct {
	Source  string
	Counter string
	Core    uint64
}

// A Summary summarizes the reads of a single counter series.
type Summary struct {
	Key

	// N is the number of reads.
	N int

	// Min and Max are the smallest and largest values read.
	Min, Max uint64

	// Sum, Mean, StdDev, Median and P95 are computed over the
	// values as float64s.
	Sum, Mean, StdDev float64
	Median, P95       float64

	// First and Last are the offsets of the first and last read.
	First, Last time.Duration

	// Rate is the change in value per second between the first and
	// last read. It is 0 if there is only one read or the reads
	// all happened at once.
	Rate float64
}

type series struct {
	key         Key
	xs          []float64
	min, max    uint64
	first, last gpc.Event
}

// Summarize groups events by Key and summarizes each group. Summaries
// are returned in the order each series first appears in events.
func Summarize(events cook.Events) []Summary {
	index := make(map[Key]int)
	var groups []*series
	for i := 0; i < events.Len(); i++ {
		ev := events.At(i)
		k := Key{ev.Key, ev.Counter, ev.Core}
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, &series{key: k, min: ev.Value, max: ev.Value, first: ev})
		}
		g := groups[gi]
		g.xs = append(g.xs, float64(ev.Value))
		if ev.Value < g.min {
			g.min = ev.Value
		}
		if ev.Value > g.max {
			g.max = ev.Value
		}
		g.last = ev
	}

	out := make([]Summary, len(groups))
	for i, g := range groups {
		out[i] = g.summary()
	}
	return out
}

func (g *series) summary() Summary {
	s := stats.Sample{Xs: g.xs}
	sum := Summary{
		Key:   g.key,
		N:     len(g.xs),
		Min:   g.min,
		Max:   g.max,
		Sum:   s.Sum(),
		Mean:  s.Mean(),
		First: g.first.Offset,
		Last:  g.last.Offset,
	}
	if len(g.xs) > 1 {
		sum.StdDev = s.StdDev()
	}
	sorted := stats.Sample{Xs: append([]float64(nil), g.xs...)}
	sorted.Sort()
	sum.Median = sorted.Quantile(0.5)
	sum.P95 = sorted.Quantile(0.95)

	// Offsets may be relative to a provisional start, so use the
	// absolute times for the elapsed time.
	if elapsed := g.last.Time.Sub(g.first.Time); elapsed > 0 {
		sum.Rate = (float64(g.last.Value) - float64(g.first.Value)) / elapsed.Seconds()
	}
	return sum
}
