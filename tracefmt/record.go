// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracefmt reads and writes the WindowsPerf trace record format.
//
// A trace is a sequence of records. Each record names the provider
// that emitted it, carries a timestamp with 100 nanosecond resolution
// and an ordered list of payload values. The package does not know
// what the payload values mean; that is up to the consumer.
//
// Two encodings are supported. The binary encoding (see Reader and
// Writer) is the native one and may be wrapped in a zstd frame. The
// JSON lines encoding (see JSONReader) is meant for hand-written
// fixtures and exports from other tools. Files reads a sequence of
// inputs in either encoding.
package tracefmt

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"time"
)

// Ticks is a timestamp in 100 nanosecond units since the Unix epoch.
// This is the resolution of the platform trace clock.
type Ticks int64

// TickDuration is the length of a single tick.
const TickDuration = 100 * time.Nanosecond

// MinTicks and MaxTicks bound the timestamps a trace may carry. The
// difference of any two timestamps in range fits in a time.Duration.
const (
	MaxTicks Ticks = math.MaxInt64 / (2 * Ticks(TickDuration))
	MinTicks Ticks = -MaxTicks
)

// TicksOf converts t to ticks, truncating anything below tick
// resolution. Times outside the range of MinTicks and MaxTicks
// are clamped to it.
func TicksOf(t time.Time) Ticks {
	switch {
	case t.Before(MinTicks.Time()):
		return MinTicks
	case t.After(MaxTicks.Time()):
		return MaxTicks
	}
	return Ticks(t.UnixNano() / int64(TickDuration))
}

// Valid reports whether t is within [MinTicks, MaxTicks].
func (t Ticks) Valid() bool {
	return MinTicks <= t && t <= MaxTicks
}

// Time returns t as a UTC wall-clock time.
func (t Ticks) Time() time.Time {
	return time.Unix(0, int64(t)*int64(TickDuration)).UTC()
}

// Sub returns the duration t-u. If the result would overflow a
// time.Duration, Sub returns the maximum (or minimum) duration.
func (t Ticks) Sub(u Ticks) time.Duration {
	const maxd = Ticks(math.MaxInt64 / int64(TickDuration))
	d := t - u
	switch {
	case u < 0 && d < t, d > maxd:
		return math.MaxInt64
	case u > 0 && d > t, d < -maxd:
		return math.MinInt64
	}
	return time.Duration(d) * TickDuration
}

// A Kind is the type of a payload Value.
type Kind uint8

const (
	KindInt Kind = 1 + iota
	KindUint
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindString:
		return "string"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// A Value is a single payload value. Only the field selected by Kind
// is meaningful.
type Value struct {
	Kind Kind
	Int  int64
	Uint uint64
	Str  string
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Uint returns an unsigned integer Value.
func Uint(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// String returns a string Value.
func String(v string) Value { return Value{Kind: KindString, Str: v} }

// AsUint64 returns v as an unsigned 64-bit integer. Signed values are
// reinterpreted bit for bit, which matches how the trace providers
// log unsigned quantities through signed fields. ok is false if v is
// not an integer.
func (v Value) AsUint64() (x uint64, ok bool) {
	switch v.Kind {
	case KindInt:
		return uint64(v.Int), true
	case KindUint:
		return v.Uint, true
	}
	return 0, false
}

// AsUint32 is like AsUint64 for 32-bit quantities. Signed values in
// int32 range are reinterpreted bit for bit. ok is false if v is not
// an integer or does not fit in 32 bits.
func (v Value) AsUint32() (x uint32, ok bool) {
	switch v.Kind {
	case KindInt:
		if v.Int < math.MinInt32 || v.Int > math.MaxUint32 {
			return 0, false
		}
		return uint32(v.Int), true
	case KindUint:
		if v.Uint > math.MaxUint32 {
			return 0, false
		}
		return uint32(v.Uint), true
	}
	return 0, false
}

// AsString returns v's string. ok is false if v is not a string.
func (v Value) AsString() (s string, ok bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindString:
		return strconv.Quote(v.Str)
	}
	return "<invalid>"
}

// A Record is a single trace record.
//
// Records returned by a reader are owned by that reader and are
// overwritten by the next call to Scan. Callers must copy anything
// they want to retain. Strings in the record are never overwritten,
// so retaining Provider or a string payload value is safe.
type Record struct {
	Provider string
	Time     Ticks
	Payload  []Value

	fileName string
	num      int
}

// Pos returns the name of the file this record was read from and its
// 1-based position in that file. For JSON line inputs, the position
// is the line number. Records that were not read from a file return
// "", 0.
func (r *Record) Pos() (fileName string, record int) {
	return r.fileName, r.num
}

// Clone returns a copy of r that does not share a payload with r.
func (r *Record) Clone() *Record {
	r2 := *r
	r2.Payload = append([]Value(nil), r.Payload...)
	return &r2
}

// A DecodeError reports bytes that cannot be interpreted as a trace
// record. Decode errors are fatal: a reader cannot resynchronize with
// the record stream after one.
type DecodeError struct {
	File   string
	Record int // 1-based; 0 for errors in the file header
	Msg    string
}

func (e *DecodeError) Error() string {
	if e.Record == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s: record %d: %s", e.File, e.Record, e.Msg)
}

// NewDecodeError returns a DecodeError at the position of rec.
func NewDecodeError(rec *Record, msg string) *DecodeError {
	return &DecodeError{rec.fileName, rec.num, msg}
}

// An OpenError reports an input that could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	err := e.Err
	var pe *fs.PathError
	if errors.As(err, &pe) {
		// Don't repeat the operation and path.
		err = pe.Err
	}
	return fmt.Sprintf("open %s: %v", e.Path, err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// A Decoder is a stream of trace records. Both Reader and JSONReader
// implement Decoder.
type Decoder interface {
	// Scan advances to the next record and reports whether there
	// was one. When Scan returns false, Err reports why.
	Scan() bool

	// Record returns the record read by the last call to Scan.
	Record() *Record

	// Err returns the error that stopped Scan, or nil at a clean
	// end of input.
	Err() error
}

var _ Decoder = (*Reader)(nil)
var _ Decoder = (*JSONReader)(nil)
