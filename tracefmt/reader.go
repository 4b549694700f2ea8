// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Magic is the first eight bytes of a binary trace.
const Magic = "WPTRACE\x00"

// Version is the binary format version written by Writer.
const Version = 1

// maxRecordSize bounds the body of a single record. Anything larger
// is treated as corruption rather than an allocation request.
const maxRecordSize = 1 << 20

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// A Reader reads the binary trace format.
//
// Its API is modeled on bufio.Scanner. To minimize allocation, a
// Reader retains ownership of the Record it returns; see Record.
//
// To construct a new Reader, either call NewReader, or call Reset on
// a zeroed Reader.
type Reader struct {
	br       *bufio.Reader
	zr       *zstd.Decoder
	fileName string
	header   bool
	err      error

	body []byte
	rec  Record

	interns map[string]string
}

// NewReader constructs a reader to parse the binary trace format from
// r. fileName is used in error messages and record positions; it is
// purely diagnostic.
func NewReader(r io.Reader, fileName string) *Reader {
	reader := new(Reader)
	reader.Reset(r, fileName)
	return reader
}

// Reset resets the reader to begin reading from a new input.
func (r *Reader) Reset(ior io.Reader, fileName string) {
	if fileName == "" {
		fileName = "<unknown>"
	}
	if r.br == nil {
		r.br = bufio.NewReader(ior)
	} else {
		r.br.Reset(ior)
	}
	r.fileName = fileName
	r.header = false
	r.err = nil
	r.rec = Record{Payload: r.rec.Payload[:0], fileName: fileName}
	if r.interns == nil {
		r.interns = make(map[string]string)
	}
}

// Close releases the zstd decoder, if one was needed. The underlying
// io.Reader is not closed. A closed Reader can be reused by calling
// Reset.
func (r *Reader) Close() {
	if r.zr != nil {
		r.zr.Close()
		r.zr = nil
	}
}

func (r *Reader) decodeError(record int, msg string) {
	r.err = &DecodeError{r.fileName, record, msg}
}

// readHeader consumes the file header, switching to a zstd stream
// first if the input is compressed. It reports whether the input
// contains any records.
func (r *Reader) readHeader() bool {
	r.header = true
	peek, err := r.br.Peek(len(zstdMagic))
	if len(peek) == 0 && err == io.EOF {
		// Empty input. Treat it as an empty trace.
		return false
	}
	if bytes.Equal(peek, zstdMagic) {
		if r.zr == nil {
			r.zr, err = zstd.NewReader(r.br, zstd.WithDecoderConcurrency(1))
		} else {
			err = r.zr.Reset(r.br)
		}
		if err != nil {
			r.err = fmt.Errorf("%s: %w", r.fileName, err)
			return false
		}
		r.br = bufio.NewReader(r.zr)
	}

	var magic [len(Magic)]byte
	if _, err := io.ReadFull(r.br, magic[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.decodeError(0, "short file header")
		} else {
			r.err = fmt.Errorf("%s: %w", r.fileName, err)
		}
		return false
	}
	if string(magic[:]) != Magic {
		r.decodeError(0, "not a trace file")
		return false
	}
	version, err := binary.ReadUvarint(r.br)
	if err != nil {
		r.decodeError(0, "missing format version")
		return false
	}
	if version != Version {
		r.decodeError(0, fmt.Sprintf("unsupported format version %d", version))
		return false
	}
	return true
}

// Scan advances the reader to the next record and reports whether a
// record was read. The caller should use the Record method to get the
// record. If Scan reaches EOF or an error occurs, it returns false,
// in which case the caller should use the Err method to check for
// errors.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	if !r.header && !r.readHeader() {
		return false
	}

	num := r.rec.num + 1
	size, err := binary.ReadUvarint(r.br)
	switch {
	case err == io.EOF:
		// Clean end of input at a record boundary.
		return false
	case err == io.ErrUnexpectedEOF:
		r.decodeError(num, "truncated record length")
		return false
	case err != nil && isOverflow(err):
		r.decodeError(num, "bad record length")
		return false
	case err != nil:
		r.err = fmt.Errorf("%s: %w", r.fileName, err)
		return false
	}
	if size == 0 || size > maxRecordSize {
		r.decodeError(num, fmt.Sprintf("bad record length %d", size))
		return false
	}

	if cap(r.body) < int(size) {
		r.body = make([]byte, size)
	}
	r.body = r.body[:size]
	if _, err := io.ReadFull(r.br, r.body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.decodeError(num, "truncated record")
		} else {
			r.err = fmt.Errorf("%s: %w", r.fileName, err)
		}
		return false
	}

	r.rec.num = num
	if msg := r.parseRecord(r.body); msg != "" {
		r.decodeError(num, msg)
		return false
	}
	return true
}

// errOverflow is the error binary.ReadUvarint returns for a varint
// longer than 64 bits. encoding/binary doesn't export it.
var errOverflow = func() error {
	_, err := binary.ReadUvarint(bytes.NewReader(bytes.Repeat([]byte{0xff}, binary.MaxVarintLen64+1)))
	return err
}()

func isOverflow(err error) bool {
	return errors.Is(err, errOverflow)
}

// parseRecord decodes body into r.rec. It returns a non-empty message
// describing the problem if body is malformed.
func (r *Reader) parseRecord(body []byte) string {
	d := cursor{b: body}
	provider := d.bytes()
	ticks := d.varint()
	n := d.uvarint()
	if d.bad {
		return "malformed record header"
	}
	if n > uint64(len(d.b)) {
		// Every value takes at least one byte.
		return fmt.Sprintf("payload count %d exceeds record size", n)
	}
	if !Ticks(ticks).Valid() {
		return fmt.Sprintf("timestamp %d out of range", ticks)
	}
	r.rec.Provider = r.intern(provider)
	r.rec.Time = Ticks(ticks)
	r.rec.Payload = r.rec.Payload[:0]
	for i := uint64(0); i < n; i++ {
		kind := Kind(d.byte())
		var v Value
		switch kind {
		case KindInt:
			v = Int(d.varint())
		case KindUint:
			v = Uint(d.uvarint())
		case KindString:
			v = String(string(d.bytes()))
		default:
			if d.bad {
				break
			}
			return fmt.Sprintf("payload value %d: unknown kind %d", i, kind)
		}
		if d.bad {
			return fmt.Sprintf("payload value %d: truncated", i)
		}
		r.rec.Payload = append(r.rec.Payload, v)
	}
	if len(d.b) != 0 {
		return fmt.Sprintf("%d trailing bytes in record", len(d.b))
	}
	return ""
}

func (r *Reader) intern(x []byte) string {
	const maxIntern = 1024
	if s, ok := r.interns[string(x)]; ok {
		return s
	}
	if len(r.interns) >= maxIntern {
		// Providers are few, so this should never happen with
		// real traces. Evict an arbitrary entry.
		for k := range r.interns {
			delete(r.interns, k)
			break
		}
	}
	s := string(x)
	r.interns[s] = s
	return s
}

// Record returns the record that was just read by Scan. The caller
// should not retain the Record, as it will be overwritten by the next
// call to Scan.
func (r *Reader) Record() *Record {
	return &r.rec
}

// Err returns the first error encountered by the Reader: an I/O error
// or a *DecodeError. It returns nil at a clean end of input.
func (r *Reader) Err() error {
	return r.err
}

// cursor decodes the primitive encodings inside a record body. Once a
// read fails, bad is set and every later read returns zero values.
type cursor struct {
	b   []byte
	bad bool
}

func (c *cursor) byte() byte {
	if c.bad || len(c.b) == 0 {
		c.bad = true
		return 0
	}
	x := c.b[0]
	c.b = c.b[1:]
	return x
}

func (c *cursor) uvarint() uint64 {
	if c.bad {
		return 0
	}
	x, n := binary.Uvarint(c.b)
	if n <= 0 {
		c.bad = true
		return 0
	}
	c.b = c.b[n:]
	return x
}

func (c *cursor) varint() int64 {
	if c.bad {
		return 0
	}
	x, n := binary.Varint(c.b)
	if n <= 0 {
		c.bad = true
		return 0
	}
	c.b = c.b[n:]
	return x
}

func (c *cursor) bytes() []byte {
	n := c.uvarint()
	if c.bad || n > uint64(len(c.b)) {
		c.bad = true
		return nil
	}
	x := c.b[:n]
	c.b = c.b[n:]
	return x
}
