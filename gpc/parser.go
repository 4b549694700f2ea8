// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpc

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/windowsperf/wperf-etl/storage/fs"
	"github.com/windowsperf/wperf-etl/tracefmt"
)

// A Dispatcher receives the Events produced by a Parser, in the order
// they appear in the input.
type Dispatcher interface {
	Dispatch(ev Event)
}

// A Parser reads counter events from a sequence of trace files.
type Parser struct {
	// Paths is the list of trace files to read, in order.
	Paths []string

	// FS opens the trace files. If nil, paths are opened from the
	// local file system.
	FS fs.FS

	// Logger receives per-file debug logs and a summary of each
	// run. If nil, nothing is logged.
	Logger *zap.Logger

	// Progress, if non-nil, is called with the percentage of input
	// files completed as the run advances, and with 100 once every
	// file has been read.
	Progress func(percent int)

	stats Stats
}

// Stats counts what the last call to Process saw.
type Stats struct {
	// Files is the number of files read to completion.
	Files int

	// Records is the number of trace records read, whether or not
	// they were counter events.
	Records int

	// Events counts the events dispatched per source key.
	Events map[string]int

	// Dropped is the number of records from providers other than
	// the two counter sources.
	Dropped int
}

// Stats returns counts from the last call to Process. After a failed
// or cancelled run they cover the records read before it stopped.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Process reads every file in p.Paths, in order, and dispatches an
// Event to d for each counter read. It returns the span of the run.
//
// Every record's timestamp contributes to the span, including records
// from providers that are not counter sources. Event offsets are
// computed as described by Normalizer.
//
// Process checks ctx before each record. If ctx is cancelled, Process
// stops, closes the open file and returns ctx.Err(). If a file cannot
// be opened, Process returns a *tracefmt.OpenError; if a record cannot
// be decoded, it returns a *tracefmt.DecodeError. Events dispatched
// before an error are not retracted; callers should discard whatever
// d accumulated.
func (p *Parser) Process(ctx context.Context, d Dispatcher) (Span, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	p.stats = Stats{Events: make(map[string]int)}

	var norm Normalizer
	curRecords := 0
	files := tracefmt.Files{
		Paths: p.Paths,
		Done: func(i int) {
			log.Debug("read trace file", zap.String("path", p.Paths[i]), zap.Int("records", curRecords))
			curRecords = 0
			p.stats.Files = i + 1
			if p.Progress != nil && i+1 < len(p.Paths) {
				p.Progress((i + 1) * 100 / len(p.Paths))
			}
		},
	}
	if p.FS != nil {
		files.Open = func(name string) (io.ReadCloser, error) {
			return p.FS.Open(ctx, name)
		}
	}
	defer files.Close()

	for {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled", zap.Int("records", p.stats.Records), zap.Error(err))
			return Span{}, err
		}
		if !files.Scan() {
			break
		}

		rec := files.Record()
		p.stats.Records++
		curRecords++
		offset := norm.Observe(rec.Time)

		key, ok := Classify(rec.Provider)
		if !ok {
			p.stats.Dropped++
			continue
		}
		ev, err := decode(rec, key)
		if err != nil {
			return Span{}, err
		}
		ev.Offset = offset
		p.stats.Events[key]++
		d.Dispatch(ev)
	}
	if err := files.Err(); err != nil {
		log.Info("run failed", zap.Error(err))
		return Span{}, err
	}

	span := norm.Span()
	log.Info("run complete",
		zap.Int("files", p.stats.Files),
		zap.Int("records", p.stats.Records),
		zap.Int("dropped", p.stats.Dropped),
		zap.Time("start", span.Start),
		zap.Duration("duration", span.Duration))
	if p.Progress != nil {
		p.Progress(100)
	}
	return span, nil
}
