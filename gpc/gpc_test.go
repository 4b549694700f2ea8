// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpc

import (
	"bytes"
	"testing"

	"github.com/windowsperf/wperf-etl/tracefmt"
)

// collector is a Dispatcher that keeps every event.
type collector struct {
	events []Event
}

func (c *collector) Dispatch(ev Event) {
	c.events = append(c.events, ev)
}

func (c *collector) byKey(key string) []Event {
	var out []Event
	for _, ev := range c.events {
		if ev.Key == key {
			out = append(out, ev)
		}
	}
	return out
}

func driverRec(ticks tracefmt.Ticks, core, event, gpc, value int64) *tracefmt.Record {
	return &tracefmt.Record{
		Provider: DriverKey,
		Time:     ticks,
		Payload:  []tracefmt.Value{tracefmt.Int(core), tracefmt.Int(event), tracefmt.Int(gpc), tracefmt.Int(value)},
	}
}

func appRec(ticks tracefmt.Ticks, core int64, name string, index int64, note string, value int64) *tracefmt.Record {
	return &tracefmt.Record{
		Provider: AppKey,
		Time:     ticks,
		Payload: []tracefmt.Value{
			tracefmt.Int(core), tracefmt.String(name), tracefmt.Int(index),
			tracefmt.String(note), tracefmt.Int(value),
		},
	}
}

func otherRec(provider string, ticks tracefmt.Ticks) *tracefmt.Record {
	return &tracefmt.Record{Provider: provider, Time: ticks}
}

// trace encodes recs in the binary trace format.
func trace(t *testing.T, recs ...*tracefmt.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tracefmt.NewWriter(&buf)
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
