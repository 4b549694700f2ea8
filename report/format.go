// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/safehtml/template"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpcstat"
	"github.com/windowsperf/wperf-etl/internal/texttab"
)

// FormatText writes events as a text table laid out by t.
func FormatText(w io.Writer, t *Table, events cook.Events) error {
	if _, err := fmt.Fprintf(w, "%s (%d events)\n", t.Title, events.Len()); err != nil {
		return err
	}
	var tab texttab.Table
	tab.Sep = "  "
	tab.Row()
	for _, c := range t.Columns {
		tab.Cell(c.Name, alignment(c.Numeric))
	}
	tab.Rule('-')
	for i := 0; i < events.Len(); i++ {
		tab.Row()
		for j, v := range t.Cells(events.At(i)) {
			tab.Cell(v, alignment(t.Columns[j].Numeric))
		}
	}
	return tab.Format(w)
}

func alignment(numeric bool) texttab.CellOption {
	if numeric {
		return texttab.Right
	}
	return texttab.Left
}

// lookup returns the Table for output, falling back to EventsTable.
func (r *Registry) lookup(output string) *Table {
	if t, ok := r.Lookup(output); ok {
		return t
	}
	return EventsTable(output)
}

// FormatOutputs writes a text table for every output in o, in order,
// preceded by the span of the run.
func FormatOutputs(w io.Writer, o *cook.Outputs, r *Registry) error {
	if err := formatSpan(w, o); err != nil {
		return err
	}
	for _, name := range o.Names() {
		events, err := o.Query(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		if err := FormatText(w, r.lookup(name), events); err != nil {
			return err
		}
	}
	return nil
}

func formatSpan(w io.Writer, o *cook.Outputs) error {
	start := "none"
	if !o.Span.Start.IsZero() {
		start = o.Span.Start.Format("2006-01-02T15:04:05.0000000Z07:00")
	}
	_, err := fmt.Fprintf(w, "start: %s\nduration: %v\n", start, o.Span.Duration)
	return err
}

var summaryHeader = []string{"Counter", "Core", "N", "Min", "Max", "Mean", "StdDev", "Median", "P95", "Rate/s"}

func summaryCells(s gpcstat.Summary) []string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'g', 6, 64) }
	return []string{
		s.Counter,
		strconv.FormatUint(s.Core, 10),
		strconv.Itoa(s.N),
		strconv.FormatUint(s.Min, 10),
		strconv.FormatUint(s.Max, 10),
		f(s.Mean), f(s.StdDev), f(s.Median), f(s.P95), f(s.Rate),
	}
}

// FormatSummaries writes one row per summary.
func FormatSummaries(w io.Writer, sums []gpcstat.Summary) error {
	var tab texttab.Table
	tab.Sep = "  "
	tab.Row()
	for i, h := range summaryHeader {
		tab.Cell(h, alignment(i > 0))
	}
	tab.Rule('-')
	for _, s := range sums {
		tab.Row()
		for i, v := range summaryCells(s) {
			tab.Cell(v, alignment(i > 0))
		}
	}
	return tab.Format(w)
}

const htmlText = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Start: {{.Start}}. Duration: {{.Duration}}.</p>
{{range .Tables}}
<h2>{{.Title}}</h2>
{{with .Description}}<p>{{.}}</p>{{end}}
{{if .Summaries}}
<table border="1">
<tr>{{range $.SummaryHeader}}<th>{{.}}</th>{{end}}</tr>
{{range .Summaries}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}
<p>{{.N}} events</p>
<table border="1">
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{end}}
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(htmlText))

type htmlPage struct {
	Title         string
	Start         string
	Duration      string
	SummaryHeader []string
	Tables        []htmlTable
}

type htmlTable struct {
	Title       string
	Description string
	N           int
	Header      []string
	Rows        [][]string
	Summaries   [][]string
}

// FormatHTML writes an HTML page with a summary and a table for every
// output in o.
func FormatHTML(w io.Writer, title string, o *cook.Outputs, r *Registry) error {
	page := htmlPage{
		Title:         title,
		Start:         "none",
		Duration:      o.Span.Duration.String(),
		SummaryHeader: summaryHeader,
	}
	if !o.Span.Start.IsZero() {
		page.Start = o.Span.Start.Format("2006-01-02T15:04:05.0000000Z07:00")
	}
	for _, name := range o.Names() {
		events, err := o.Query(name)
		if err != nil {
			return err
		}
		t := r.lookup(name)
		ht := htmlTable{Title: t.Title, Description: t.Description, N: events.Len()}
		for _, c := range t.Columns {
			ht.Header = append(ht.Header, c.Name)
		}
		for i := 0; i < events.Len(); i++ {
			ht.Rows = append(ht.Rows, t.Cells(events.At(i)))
		}
		for _, s := range gpcstat.Summarize(events) {
			ht.Summaries = append(ht.Summaries, summaryCells(s))
		}
		page.Tables = append(page.Tables, ht)
	}
	return htmlTemplate.Execute(w, page)
}
