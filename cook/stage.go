// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cook routes counter events to the cookers that aggregate
// them and publishes their outputs once a run completes.
//
// A Router holds an explicit registry of Cookers. During a run the
// Router delivers each event, in arrival order, to every cooker whose
// key set contains the event's source key. When the run finishes
// cleanly, each cooker is finalized and its output is published
// under the cooker's name in an Outputs. A run that fails or is
// cancelled publishes nothing.
package cook

import (
	"errors"

	"github.com/windowsperf/wperf-etl/gpc"
)

// A Cooker consumes the events of a run and produces one named output.
type Cooker interface {
	// Name returns the name the output is published under.
	Name() string

	// Keys returns the source keys of the events the cooker accepts.
	Keys() []string

	// Accept adds ev to the output. The Router only calls Accept
	// with events whose Key is in Keys. A non-nil error is counted
	// and logged by the Router but does not stop the run.
	Accept(ev gpc.Event) error

	// Finalize freezes the output and returns it. Once Finalize
	// has been called, Accept must fail.
	Finalize() Events
}

// ErrFinalized is returned by Stage.Accept after the stage has been
// finalized.
var ErrFinalized = errors.New("stage already finalized")

// Events is an immutable, ordered sequence of events.
// The zero Events is empty.
type Events struct {
	list []gpc.Event
}

// Len returns the number of events.
func (e Events) Len() int { return len(e.list) }

// At returns the i'th event.
func (e Events) At(i int) gpc.Event { return e.list[i] }

// Slice returns a copy of the events.
func (e Events) Slice() []gpc.Event {
	return append([]gpc.Event(nil), e.list...)
}

// A Stage is a Cooker that keeps every event it accepts, in arrival
// order.
//
// A Stage is either accumulating, when it owns a mutable list of
// events, or finalized, when the list has been frozen into an Events
// that may be shared. It never goes back to accumulating.
type Stage struct {
	name  string
	keys  []string
	state stageState
}

// stageState is accumulating or finalized.
type stageState interface {
	isStageState()
}

type accumulating struct {
	list []gpc.Event
}

type finalized struct {
	out Events
}

func (*accumulating) isStageState() {}
func (finalized) isStageState()     {}

// NewStage returns an accumulating Stage publishing as name and
// accepting events with any of the given keys.
func NewStage(name string, keys ...string) *Stage {
	return &Stage{
		name:  name,
		keys:  append([]string(nil), keys...),
		state: &accumulating{},
	}
}

// Name implements Cooker.Name.
func (s *Stage) Name() string { return s.name }

// Keys implements Cooker.Keys.
func (s *Stage) Keys() []string { return append([]string(nil), s.keys...) }

// Accept implements Cooker.Accept. It fails only with ErrFinalized.
func (s *Stage) Accept(ev gpc.Event) error {
	acc, ok := s.state.(*accumulating)
	if !ok {
		return ErrFinalized
	}
	acc.list = append(acc.list, ev)
	return nil
}

// Finalize implements Cooker.Finalize. Calling it again returns the
// same Events.
func (s *Stage) Finalize() Events {
	switch st := s.state.(type) {
	case *accumulating:
		out := Events{st.list}
		s.state = finalized{out}
		return out
	case finalized:
		return st.out
	}
	panic("unreachable")
}

// Finalized reports whether the stage has been finalized.
func (s *Stage) Finalized() bool {
	_, ok := s.state.(finalized)
	return ok
}
