// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package texttab lays out fixed-width text tables.
package texttab

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Table does layout of text-based tables.
//
// Methods that add cells return the Table so callers can chain them
// to build a row at once:
//
//	tab.Row().Cell("core").Cell("value", Right)
type Table struct {
	rows [][]cell
	cols int

	// Sep separates adjacent columns. It defaults to a single
	// space.
	Sep string
}

type cell struct {
	value string
	span  int
	align align
	rule  rune
}

// A CellOption modifies a single cell.
type CellOption func(c *cell)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

var (
	Left   CellOption = func(c *cell) { c.align = alignLeft }
	Center CellOption = func(c *cell) { c.align = alignCenter }
	Right  CellOption = func(c *cell) { c.align = alignRight }
)

func (a align) pad(s string, w int) string {
	n := w - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	switch a {
	case alignCenter:
		l := n / 2
		return strings.Repeat(" ", l) + s + strings.Repeat(" ", n-l)
	case alignRight:
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// Row starts a new row.
func (t *Table) Row() *Table {
	t.rows = append(t.rows, nil)
	return t
}

func (t *Table) add(c cell) *Table {
	if len(t.rows) == 0 {
		t.Row()
	}
	r := &t.rows[len(t.rows)-1]
	*r = append(*r, c)
	n := 0
	for _, c := range *r {
		n += c.span
	}
	if n > t.cols {
		t.cols = n
	}
	return t
}

// Cell adds a single-column cell to the current row.
func (t *Table) Cell(value string, opts ...CellOption) *Table {
	return t.Span(1, value, opts...)
}

// Cellf is like Cell, but formats its value with fmt.Sprintf.
func (t *Table) Cellf(format string, args ...interface{}) *Table {
	return t.Cell(fmt.Sprintf(format, args...))
}

// Span adds a cell covering cols columns to the current row.
func (t *Table) Span(cols int, value string, opts ...CellOption) *Table {
	c := cell{value: value, span: cols}
	for _, o := range opts {
		o(&c)
	}
	return t.add(c)
}

// Rule adds a row that fills every column with ch, such as a row of
// dashes under a header.
func (t *Table) Rule(ch rune) *Table {
	t.Row()
	return t.add(cell{span: -1, rule: ch})
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	return len(t.rows)
}

// widths computes the width of every column.
func (t *Table) widths() []int {
	sep := utf8.RuneCountInString(t.sep())
	ws := make([]int, t.cols)
	// Single-column cells first, then grow columns under spans
	// that don't fit.
	for pass := 0; pass < 2; pass++ {
		for _, r := range t.rows {
			col := 0
			for _, c := range r {
				if c.span < 0 {
					break
				}
				w := utf8.RuneCountInString(c.value)
				switch {
				case pass == 0 && c.span == 1:
					if w > ws[col] {
						ws[col] = w
					}
				case pass == 1 && c.span > 1:
					have := sep * (c.span - 1)
					for i := col; i < col+c.span; i++ {
						have += ws[i]
					}
					if extra := w - have; extra > 0 {
						// Give the extra space to the
						// last column of the span.
						ws[col+c.span-1] += extra
					}
				}
				col += c.span
			}
		}
	}
	return ws
}

func (t *Table) sep() string {
	if t.Sep == "" {
		return " "
	}
	return t.Sep
}

// Format lays out the table and writes it to w. Trailing spaces are
// trimmed from every line.
func (t *Table) Format(w io.Writer) error {
	ws := t.widths()
	total := 0
	for i, cw := range ws {
		if i > 0 {
			total += utf8.RuneCountInString(t.sep())
		}
		total += cw
	}

	var line strings.Builder
	for _, r := range t.rows {
		line.Reset()
		col := 0
		for i, c := range r {
			if c.span < 0 {
				line.WriteString(strings.Repeat(string(c.rule), total))
				break
			}
			if i > 0 {
				line.WriteString(t.sep())
			}
			cw := utf8.RuneCountInString(t.sep()) * (c.span - 1)
			for j := col; j < col+c.span; j++ {
				cw += ws[j]
			}
			line.WriteString(c.align.pad(c.value, cw))
			col += c.span
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(line.String(), " ")); err != nil {
			return err
		}
	}
	return nil
}
