// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpcchart

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

func testEvents() cook.Events {
	s := cook.NewStage("test", gpc.DriverKey)
	for i := 0; i < 10; i++ {
		for core := uint64(0); core < 2; core++ {
			s.Accept(gpc.Event{
				Key:     gpc.DriverKey,
				Counter: "00000011",
				Core:    core,
				Offset:  time.Duration(i) * 100 * time.Millisecond,
				Value:   uint64(i*i) + core,
			})
		}
	}
	return s.Finalize()
}

func TestChartPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := Chart(&buf, testEvents(), Options{Title: "cycles"}); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("output is not a PNG: % x", buf.Bytes()[:min(8, buf.Len())])
	}
}

func TestChartSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := Chart(&buf, testEvents(), Options{Format: SVG}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Errorf("output is not an SVG")
	}
	if !strings.Contains(buf.String(), "00000011 core 1") {
		t.Errorf("legend is missing series label")
	}
}

func TestChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Chart(&buf, cook.Events{}, Options{}); !errors.Is(err, ErrNoEvents) {
		t.Errorf("got %v, want %v", err, ErrNoEvents)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes for an empty chart", buf.Len())
	}
}

func TestParseFormat(t *testing.T) {
	for s, want := range map[string]Format{"png": PNG, "svg": SVG} {
		got, err := ParseFormat(s)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", s, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Errorf("ParseFormat(pdf) succeeded")
	}
}
