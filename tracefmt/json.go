// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/valyala/fastjson"
)

// A JSONReader reads trace records encoded as JSON lines. Each
// non-blank line is one object:
//
//	{"provider": "WindowsPerf Driver", "ticks": 17000000000, "payload": [0, 17, 1, 1234]}
//
// The timestamp is given either as "ticks" (100ns units since the
// Unix epoch) or as "time" in RFC 3339 format. Integer payload values
// decode to KindInt, or KindUint if they don't fit in an int64.
// String payload values decode to KindString.
type JSONReader struct {
	s        *bufio.Scanner
	p        fastjson.Parser
	fileName string
	line     int
	err      error
	rec      Record
}

// NewJSONReader constructs a reader to parse JSON line records from r.
func NewJSONReader(r io.Reader, fileName string) *JSONReader {
	reader := new(JSONReader)
	reader.Reset(r, fileName)
	return reader
}

// Reset resets the reader to begin reading from a new input.
func (r *JSONReader) Reset(ior io.Reader, fileName string) {
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.s = bufio.NewScanner(ior)
	r.s.Buffer(nil, maxRecordSize)
	r.fileName = fileName
	r.line = 0
	r.err = nil
	r.rec = Record{Payload: r.rec.Payload[:0], fileName: fileName}
}

// Scan advances the reader to the next record. See Reader.Scan.
func (r *JSONReader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.s.Scan() {
		r.line++
		line := bytes.TrimSpace(r.s.Bytes())
		if len(line) == 0 {
			continue
		}
		if msg := r.parseLine(line); msg != "" {
			r.err = &DecodeError{r.fileName, r.line, msg}
			return false
		}
		return true
	}
	if err := r.s.Err(); err != nil {
		r.err = fmt.Errorf("%s:%d: %w", r.fileName, r.line+1, err)
	}
	return false
}

func (r *JSONReader) parseLine(line []byte) string {
	v, err := r.p.ParseBytes(line)
	if err != nil {
		return err.Error()
	}
	if v.Type() != fastjson.TypeObject {
		return "record is not an object"
	}

	pv := v.Get("provider")
	if pv == nil {
		return "missing provider"
	}
	provider, err := pv.StringBytes()
	if err != nil {
		return "provider: " + err.Error()
	}

	var ticks Ticks
	if tv := v.Get("ticks"); tv != nil {
		x, err := tv.Int64()
		if err != nil {
			return "ticks: " + err.Error()
		}
		ticks = Ticks(x)
		if !ticks.Valid() {
			return fmt.Sprintf("ticks: %d out of range", x)
		}
	} else if tv := v.Get("time"); tv != nil {
		b, err := tv.StringBytes()
		if err != nil {
			return "time: " + err.Error()
		}
		t, err := time.Parse(time.RFC3339Nano, string(b))
		if err != nil {
			return "time: " + err.Error()
		}
		if t.Before(MinTicks.Time()) || t.After(MaxTicks.Time()) {
			return "time: " + string(b) + " out of range"
		}
		ticks = TicksOf(t)
	} else {
		return "missing ticks or time"
	}

	r.rec.Payload = r.rec.Payload[:0]
	if pl := v.Get("payload"); pl != nil {
		vals, err := pl.Array()
		if err != nil {
			return "payload: " + err.Error()
		}
		for i, pv := range vals {
			val, msg := jsonValue(pv)
			if msg != "" {
				return fmt.Sprintf("payload value %d: %s", i, msg)
			}
			r.rec.Payload = append(r.rec.Payload, val)
		}
	}

	r.rec.Provider = string(provider)
	r.rec.Time = ticks
	r.rec.num = r.line
	return ""
}

func jsonValue(v *fastjson.Value) (Value, string) {
	switch v.Type() {
	case fastjson.TypeString:
		return String(string(v.GetStringBytes())), ""
	case fastjson.TypeNumber:
		if x, err := v.Int64(); err == nil {
			return Int(x), ""
		}
		if x, err := v.Uint64(); err == nil {
			if x <= math.MaxInt64 {
				return Int(int64(x)), ""
			}
			return Uint(x), ""
		}
		return Value{}, fmt.Sprintf("%s is not an integer", v)
	}
	return Value{}, fmt.Sprintf("unsupported type %s", v.Type())
}

// Record returns the record that was just read by Scan. See
// Reader.Record.
func (r *JSONReader) Record() *Record {
	return &r.rec
}

// Err returns the first error encountered by the reader. See
// Reader.Err.
func (r *JSONReader) Err() error {
	return r.err
}
