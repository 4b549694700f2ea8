// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cook

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/windowsperf/wperf-etl/gpc"
)

// ErrSealed is returned by Router.Register once the Router has begun
// dispatching events or has been run.
var ErrSealed = errors.New("router is sealed: events already dispatched or run finished")

// A DuplicateOutputError reports a Cooker registered under a name that
// is already taken.
type DuplicateOutputError struct {
	Name string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("duplicate output name %q", e.Name)
}

// A Router delivers events to registered Cookers.
//
// A Router is used for a single run. It is not safe for concurrent
// use; the run's single goroutine is its only writer.
type Router struct {
	log     *zap.Logger
	cookers []Cooker
	names   map[string]bool
	byKey   map[string][]Cooker

	sealed   bool
	done     bool
	failures map[string]int
}

// NewRouter returns an empty Router. If log is nil, nothing is logged.
func NewRouter(log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		log:      log,
		names:    make(map[string]bool),
		byKey:    make(map[string][]Cooker),
		failures: make(map[string]int),
	}
}

// Register adds c to the router. Cookers receive events in the order
// they were registered. Register fails with a *DuplicateOutputError
// if another cooker has the same name, and with ErrSealed once
// events have been dispatched or the router has been run.
func (r *Router) Register(c Cooker) error {
	if r.sealed || r.done {
		return ErrSealed
	}
	name := c.Name()
	if name == "" {
		return fmt.Errorf("cooker has empty output name")
	}
	if r.names[name] {
		return &DuplicateOutputError{name}
	}
	keys := c.Keys()
	if len(keys) == 0 {
		return fmt.Errorf("cooker %s accepts no keys", name)
	}
	r.names[name] = true
	r.cookers = append(r.cookers, c)
	seen := make(map[string]bool)
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		r.byKey[k] = append(r.byKey[k], c)
	}
	return nil
}

// Names returns the output names of the registered cookers, in
// registration order.
func (r *Router) Names() []string {
	names := make([]string, len(r.cookers))
	for i, c := range r.cookers {
		names[i] = c.Name()
	}
	return names
}

// Dispatch delivers ev to every cooker that accepts ev.Key, in
// registration order. Events matching no cooker are ignored. A cooker
// that fails to accept an event is logged and counted; delivery to
// the other cookers continues.
func (r *Router) Dispatch(ev gpc.Event) {
	r.sealed = true
	for _, c := range r.byKey[ev.Key] {
		if err := c.Accept(ev); err != nil {
			name := c.Name()
			if r.failures[name] == 0 {
				r.log.Warn("cooker rejected event",
					zap.String("cooker", name),
					zap.String("key", ev.Key),
					zap.Error(err))
			}
			r.failures[name]++
		}
	}
}

// Failures returns the number of events each cooker failed to accept.
// Cookers without failures are omitted.
func (r *Router) Failures() map[string]int {
	out := make(map[string]int, len(r.failures))
	for name, n := range r.failures {
		out[name] = n
	}
	return out
}

// finish finalizes every cooker and publishes their outputs.
func (r *Router) finish(span gpc.Span) *Outputs {
	r.done = true
	o := &Outputs{
		Span:   span,
		names:  r.Names(),
		byName: make(map[string]Events, len(r.cookers)),
	}
	for _, c := range r.cookers {
		o.byName[c.Name()] = c.Finalize()
	}
	for name, n := range r.failures {
		r.log.Warn("cooker dropped events", zap.String("cooker", name), zap.Int("events", n))
	}
	return o
}
