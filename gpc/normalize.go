// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpc

import (
	"time"

	"github.com/windowsperf/wperf-etl/tracefmt"
)

// A Span is the time covered by a run.
type Span struct {
	// Start is the wall-clock time of the earliest record in the
	// run. For a run with no records, Start is the zero time.
	Start time.Time

	// Duration is the time from the earliest to the latest record.
	// It is never negative.
	Duration time.Duration
}

// A Normalizer tracks the earliest and latest timestamps of a run and
// converts timestamps to offsets from the start of the run.
//
// Offsets are computed against the earliest timestamp seen so far,
// in a single forward pass. If a later record (typically from a later
// file) is earlier than everything before it, offsets already handed
// out are not revised: they remain relative to the provisional start
// that was current when they were computed. Only offsets computed
// after the true minimum has been observed are relative to Span().Start.
//
// The zero Normalizer is ready to use.
type Normalizer struct {
	seen     bool
	min, max tracefmt.Ticks
}

// Reset forgets all observed timestamps.
func (n *Normalizer) Reset() {
	*n = Normalizer{}
}

// Observe records t and returns its offset from the earliest
// timestamp observed so far, including t itself.
func (n *Normalizer) Observe(t tracefmt.Ticks) time.Duration {
	if !n.seen || t < n.min {
		n.min = t
	}
	if !n.seen || t > n.max {
		n.max = t
	}
	n.seen = true
	return t.Sub(n.min)
}

// Seen reports whether any timestamp has been observed.
func (n *Normalizer) Seen() bool {
	return n.seen
}

// Span returns the span of the timestamps observed so far.
func (n *Normalizer) Span() Span {
	if !n.seen {
		return Span{}
	}
	return Span{Start: n.min.Time(), Duration: n.max.Sub(n.min)}
}
