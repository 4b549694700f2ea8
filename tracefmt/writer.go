// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// A Writer writes the binary trace format.
//
// The file header is written with the first record, or by Close if
// there are no records, so every closed Writer produces a valid trace.
type Writer struct {
	w      io.Writer
	zw     *zstd.Encoder
	header bool
	body   []byte
	buf    []byte
}

// NewWriter returns a writer that writes an uncompressed trace to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewCompressedWriter returns a writer that writes a zstd-compressed
// trace to w. The caller must call Close to flush the compressed
// stream.
func NewCompressedWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Writer{w: zw, zw: zw}, nil
}

func (w *Writer) writeHeader() error {
	w.header = true
	hdr := binary.AppendUvarint([]byte(Magic), Version)
	_, err := w.w.Write(hdr)
	return err
}

// Write writes rec to w.
func (w *Writer) Write(rec *Record) error {
	if !w.header {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}

	b := w.body[:0]
	b = binary.AppendUvarint(b, uint64(len(rec.Provider)))
	b = append(b, rec.Provider...)
	b = binary.AppendVarint(b, int64(rec.Time))
	b = binary.AppendUvarint(b, uint64(len(rec.Payload)))
	for i, v := range rec.Payload {
		b = append(b, byte(v.Kind))
		switch v.Kind {
		case KindInt:
			b = binary.AppendVarint(b, v.Int)
		case KindUint:
			b = binary.AppendUvarint(b, v.Uint)
		case KindString:
			b = binary.AppendUvarint(b, uint64(len(v.Str)))
			b = append(b, v.Str...)
		default:
			return fmt.Errorf("payload value %d: unknown kind %d", i, v.Kind)
		}
	}
	if len(b) > maxRecordSize {
		return fmt.Errorf("record of %d bytes exceeds maximum size %d", len(b), maxRecordSize)
	}
	w.body = b

	w.buf = binary.AppendUvarint(w.buf[:0], uint64(len(b)))
	w.buf = append(w.buf, b...)
	_, err := w.w.Write(w.buf)
	return err
}

// Close writes the header if no record has been written and flushes
// the compressed stream, if any. It does not close the underlying
// io.Writer.
func (w *Writer) Close() error {
	if !w.header {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	if w.zw != nil {
		return w.zw.Close()
	}
	return nil
}
