// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestJSONReader(t *testing.T) {
	const input = `
{"provider": "WindowsPerf Driver", "ticks": 100, "payload": [0, 17, 1, 1234]}

{"provider": "WindowsPerf App", "time": "1970-01-01T00:00:00.000015Z", "payload": [2, "inst_retired", 3, "", 18446744073709551615]}
{"provider": "Other", "ticks": -3}
`
	got, err := readAll(NewJSONReader(strings.NewReader(input), "test.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	want := []*Record{
		rec("WindowsPerf Driver", 100, Int(0), Int(17), Int(1), Int(1234)),
		rec("WindowsPerf App", 150, Int(2), String("inst_retired"), Int(3), String(""), Uint(1<<64-1)),
		rec("Other", -3),
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Record{})); diff != "" {
		t.Errorf("records differ (-want +got):\n%s", diff)
	}
}

func TestJSONReaderPositions(t *testing.T) {
	r := NewJSONReader(strings.NewReader("\n{\"provider\":\"a\",\"ticks\":1}\n"), "p.jsonl")
	if !r.Scan() {
		t.Fatal(r.Err())
	}
	if file, line := r.Record().Pos(); file != "p.jsonl" || line != 2 {
		t.Errorf("got position %s:%d, want p.jsonl:2", file, line)
	}
}

func TestJSONReaderErrors(t *testing.T) {
	check := func(input, want string) {
		t.Helper()
		_, err := readAll(NewJSONReader(strings.NewReader(input), "bad.jsonl"))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("%s: got error %v, want *DecodeError", input, err)
			return
		}
		if !strings.Contains(err.Error(), want) {
			t.Errorf("%s: got error %q, want it to contain %q", input, err, want)
		}
	}

	check(`[1, 2]`, "record 1: record is not an object")
	check(`{"ticks": 1}`, "missing provider")
	check(`{"provider": 7, "ticks": 1}`, "provider:")
	check(`{"provider": "a"}`, "missing ticks or time")
	check(`{"provider": "a", "time": "yesterday"}`, "time:")
	check(`{"provider": "a", "ticks": 1, "payload": 3}`, "payload:")
	check(`{"provider": "a", "ticks": 1, "payload": [1.5]}`, "payload value 0: 1.5 is not an integer")
	check(`{"provider": "a", "ticks": 1, "payload": [true]}`, "payload value 0: unsupported type true")
	check("{\"provider\": \"a\", \"ticks\": 1}\n{", "record 2:")
	check(`{"provider": "a", "ticks": 100000000000000000}`, "ticks: 100000000000000000 out of range")
	check(`{"provider": "a", "time": "2300-01-01T00:00:00Z"}`, "time: 2300-01-01T00:00:00Z out of range")
}

func TestJSONTime(t *testing.T) {
	r := NewJSONReader(strings.NewReader(`{"provider":"a","time":"2024-03-01T12:00:00.1234567Z"}`), "t")
	if !r.Scan() {
		t.Fatal(r.Err())
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 123456700, time.UTC)
	if got := r.Record().Time.Time(); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
