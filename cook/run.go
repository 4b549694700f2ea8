// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cook

import (
	"context"
	"errors"
	"fmt"

	"github.com/windowsperf/wperf-etl/gpc"
)

// Standard output names.
const (
	DriverOutput = "ReadGPCDriver"
	AppOutput    = "ReadGPCApp"
)

// ErrUsed is returned by Run for a Router that has already been run.
var ErrUsed = errors.New("router already used for a run")

// An UnknownOutputError reports a query for an output no cooker
// published.
type UnknownOutputError struct {
	Name string
}

func (e *UnknownOutputError) Error() string {
	return fmt.Sprintf("unknown output %q", e.Name)
}

// Outputs holds the outputs of a completed run.
// It is immutable and safe for concurrent use.
type Outputs struct {
	// Span is the time covered by the run.
	Span gpc.Span

	names  []string
	byName map[string]Events
}

// Query returns the output published under name. If there is no such
// output, it returns an *UnknownOutputError.
func (o *Outputs) Query(name string) (Events, error) {
	ev, ok := o.byName[name]
	if !ok {
		return Events{}, &UnknownOutputError{name}
	}
	return ev, nil
}

// Names returns the names of the outputs, in registration order.
func (o *Outputs) Names() []string {
	return append([]string(nil), o.names...)
}

// Run reads every input of p, routes the events through r and
// returns the published outputs.
//
// If the run fails or ctx is cancelled, Run returns a nil Outputs and
// the error; whatever the cookers accumulated is discarded. A Router
// can be run only once.
func Run(ctx context.Context, p *gpc.Parser, r *Router) (*Outputs, error) {
	if r.done || r.sealed {
		return nil, ErrUsed
	}
	span, err := p.Process(ctx, r)
	if err != nil {
		r.done = true
		return nil, err
	}
	return r.finish(span), nil
}

// Standard returns the stages for the two counter sources:
// DriverOutput for driver reads and AppOutput for app reads.
func Standard() []*Stage {
	return []*Stage{
		NewStage(DriverOutput, gpc.DriverKey),
		NewStage(AppOutput, gpc.AppKey),
	}
}

// RegisterStandard registers the Standard stages with r.
func RegisterStandard(r *Router) error {
	for _, s := range Standard() {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
