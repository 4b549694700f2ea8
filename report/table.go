// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders the outputs of a run as tables.
//
// Each output name maps to a Table describing its columns. The
// mapping is an explicit Registry resolved when the program starts;
// Standard holds the tables for the standard outputs.
package report

import (
	"fmt"
	"strconv"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

// A Column is one column of a Table.
type Column struct {
	// Name is the column heading.
	Name string

	// Numeric columns are right-aligned in text output.
	Numeric bool

	// Value formats the column's cell for ev.
	Value func(ev gpc.Event) string
}

// A Table describes how to present one output.
type Table struct {
	// Output is the name of the output the table presents.
	Output string

	// Title and Description are shown above the table.
	Title       string
	Description string

	Columns []Column
}

// Cells returns the formatted cells of the row for ev.
func (t *Table) Cells(ev gpc.Event) []string {
	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cells[i] = c.Value(ev)
	}
	return cells
}

// A Registry maps output names to Tables.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// NewRegistry returns a Registry holding tables. It fails if two
// tables present the same output.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Table)}
	for _, t := range tables {
		if _, ok := r.byName[t.Output]; ok {
			return nil, &cook.DuplicateOutputError{Name: t.Output}
		}
		r.byName[t.Output] = t
		r.tables = append(r.tables, t)
	}
	return r, nil
}

// Lookup returns the Table for the named output.
func (r *Registry) Lookup(output string) (*Table, bool) {
	t, ok := r.byName[output]
	return t, ok
}

// Tables returns the registered tables in registration order.
func (r *Registry) Tables() []*Table {
	return append([]*Table(nil), r.tables...)
}

// EventsTable returns a generic table for an output with no
// registered Table, showing every field of the events.
func EventsTable(output string) *Table {
	return &Table{
		Output: output,
		Title:  output,
		Columns: []Column{
			{"Source", false, func(ev gpc.Event) string { return ev.Key }},
			{"Counter", false, func(ev gpc.Event) string { return ev.Counter }},
			colIndex, colCore, colGPC, colNote, colTime, colValue,
		},
	}
}

// FormatOffset formats an offset from the start of a run as seconds,
// to the 100ns resolution of the trace clock.
func FormatOffset(ev gpc.Event) string {
	return strconv.FormatFloat(ev.Offset.Seconds(), 'f', 7, 64)
}

var (
	colIndex = Column{"Event Index", true, func(ev gpc.Event) string { return strconv.FormatUint(uint64(ev.Index), 10) }}
	colCore  = Column{"Core", true, func(ev gpc.Event) string { return strconv.FormatUint(ev.Core, 10) }}
	colGPC   = Column{"GPC Index", true, func(ev gpc.Event) string { return strconv.FormatUint(uint64(ev.GPC), 10) }}
	colNote  = Column{"Event Note", false, func(ev gpc.Event) string { return ev.Note }}
	colTime  = Column{"Time", true, FormatOffset}
	colValue = Column{"Value", true, func(ev gpc.Event) string { return strconv.FormatUint(ev.Value, 10) }}
)

// DriverTable presents driver counter reads.
var DriverTable = &Table{
	Output:      cook.DriverOutput,
	Title:       "WindowsPerf GPC Data from Driver",
	Description: "General purpose counter reads logged by the WindowsPerf driver.",
	Columns: []Column{
		{"Event Index", false, func(ev gpc.Event) string { return ev.Counter }},
		colCore, colGPC, colTime, colValue,
	},
}

// AppTable presents app counter reads.
var AppTable = &Table{
	Output:      cook.AppOutput,
	Title:       "WindowsPerf GPC Data from App",
	Description: "Named counter reads logged by the WindowsPerf app.",
	Columns: []Column{
		{"Event Name", false, func(ev gpc.Event) string { return ev.Counter }},
		colIndex, colCore, colNote, colTime, colValue,
	},
}

// Standard is the registry of tables for the standard outputs.
var Standard = mustRegistry(DriverTable, AppTable)

func mustRegistry(tables ...*Table) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(fmt.Sprintf("report: %v", err))
	}
	return r
}
