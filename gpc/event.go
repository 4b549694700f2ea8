// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpc decodes WindowsPerf general purpose counter (GPC) reads
// from trace records.
//
// Two providers emit counter reads. The WindowsPerf driver logs each
// raw read of a hardware counter slot, and the WindowsPerf user-space
// agent ("app") logs named counter reads with an optional note. A
// Parser reads one or more trace files in order, turns each record
// from either provider into an Event, stamps it with its offset from
// the start of the run, and hands it to a Dispatcher.
package gpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/windowsperf/wperf-etl/tracefmt"
)

// Source keys. Every Event carries one of these as its Key.
const (
	DriverKey = "WindowsPerf Driver"
	AppKey    = "WindowsPerf App"
)

// An Event is one counter read.
type Event struct {
	// Key is the source key used for routing: DriverKey or AppKey.
	Key string

	// Provider is the provider name as recorded in the trace. It
	// contains Key, but may carry a prefix or suffix.
	Provider string

	// Core is the CPU core the counter was read on.
	Core uint64

	// Counter identifies the counter. For driver events it is the
	// hardware event number as eight upper-case hex digits. For app
	// events it is the event name.
	Counter string

	// Index is the raw event number for driver events and the event
	// index for app events.
	Index uint32

	// GPC is the counter slot a driver event was read from. It is
	// always 0 for app events.
	GPC uint32

	// Note is the app's annotation. It is always empty for driver
	// events.
	Note string

	// Time is the wall-clock time of the read.
	Time time.Time

	// Offset is the time since the start of the run. See
	// Normalizer for how it is computed.
	Offset time.Duration

	// Value is the counter value.
	Value uint64
}

// Classify maps a provider name to its source key. ok is false if
// the provider is not one of the two counter sources, in which case
// records from it should be ignored.
func Classify(provider string) (key string, ok bool) {
	switch {
	case strings.Contains(provider, DriverKey):
		return DriverKey, true
	case strings.Contains(provider, AppKey):
		return AppKey, true
	}
	return "", false
}

// Payload layouts:
//
//	driver: core, event, gpc index, value
//	app:    core, event name, event index, note, value
const (
	driverFields = 4
	appFields    = 5
)

// decode builds an Event from rec, which must have been classified
// as key. It returns a *tracefmt.DecodeError if the payload doesn't
// match the provider's layout.
func decode(rec *tracefmt.Record, key string) (Event, error) {
	ev := Event{
		Key:      key,
		Provider: rec.Provider,
		Time:     rec.Time.Time(),
	}
	p := rec.Payload
	bad := func(format string, args ...interface{}) (Event, error) {
		return Event{}, tracefmt.NewDecodeError(rec, key+": "+fmt.Sprintf(format, args...))
	}
	uint64At := func(i int, dst *uint64) bool {
		x, ok := p[i].AsUint64()
		*dst = x
		return ok
	}
	uint32At := func(i int, dst *uint32) bool {
		x, ok := p[i].AsUint32()
		*dst = x
		return ok
	}
	bad32 := func(i int, what string) (Event, error) {
		if _, ok := p[i].AsUint64(); ok {
			return bad("%s %v does not fit in 32 bits", what, p[i])
		}
		return bad("%s is %s, want integer", what, p[i].Kind)
	}

	switch key {
	case DriverKey:
		if len(p) < driverFields {
			return bad("payload has %d fields, want %d", len(p), driverFields)
		}
		if !uint64At(0, &ev.Core) {
			return bad("core is %s, want integer", p[0].Kind)
		}
		if !uint32At(1, &ev.Index) {
			return bad32(1, "event")
		}
		if !uint32At(2, &ev.GPC) {
			return bad32(2, "gpc index")
		}
		if !uint64At(3, &ev.Value) {
			return bad("value is %s, want integer", p[3].Kind)
		}
		ev.Counter = fmt.Sprintf("%08X", ev.Index)

	case AppKey:
		if len(p) < appFields {
			return bad("payload has %d fields, want %d", len(p), appFields)
		}
		if !uint64At(0, &ev.Core) {
			return bad("core is %s, want integer", p[0].Kind)
		}
		var ok bool
		if ev.Counter, ok = p[1].AsString(); !ok {
			return bad("event name is %s, want string", p[1].Kind)
		}
		if !uint32At(2, &ev.Index) {
			return bad32(2, "event index")
		}
		if ev.Note, ok = p[3].AsString(); !ok {
			return bad("note is %s, want string", p[3].Kind)
		}
		if !uint64At(4, &ev.Value) {
			return bad("value is %s, want integer", p[4].Kind)
		}

	default:
		panic("decode: unknown source key " + key)
	}
	return ev, nil
}
