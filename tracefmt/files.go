// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"io"
	"os"
	"strings"
)

// A Files reads trace records from a sequence of input files.
//
// Inputs are read strictly in the order given by Paths. Each input is
// opened when the previous one has been read to completion and closed
// as soon as its last record has been returned, so at most one input
// is open at a time. Inputs whose name ends in ".json" or ".jsonl" are
// read with a JSONReader; everything else is read with a Reader.
type Files struct {
	// Paths is the list of file names to read in.
	Paths []string

	// Open opens an input. If nil, os.Open is used.
	Open func(path string) (io.ReadCloser, error)

	// Done, if non-nil, is called with an input's position in Paths
	// once it has been read to completion and closed. It is not
	// called for an input that fails to open or decode.
	Done func(index int)

	// inputs is the sequence of remaining inputs, or nil if this
	// Files has not started yet. Note that this distinguishes nil
	// from length 0.
	inputs []string
	index  int

	bin  Reader
	json JSONReader
	dec  Decoder
	file io.ReadCloser
	err  error
}

// IsJSON reports whether path names a JSON lines input.
func IsJSON(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".jsonl") || strings.HasSuffix(p, ".json")
}

// Scan advances the reader to the next record in the sequence of
// files and reports whether a record was read. The caller should use
// the Record method to get the record. If Scan reaches the end of the
// file sequence, or if an error occurs, it returns false. In this
// case, the caller should use the Err method to check for errors.
func (f *Files) Scan() bool {
	if f.err != nil {
		return false
	}

	if f.inputs == nil {
		f.inputs = append([]string{}, f.Paths...)
		f.index = -1
	}

	for {
		if f.file == nil {
			// Open the next file.
			if len(f.inputs) == 0 {
				// We're out of inputs.
				return false
			}
			path := f.inputs[0]
			f.inputs = f.inputs[1:]
			f.index++

			open := f.Open
			if open == nil {
				open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
			}
			file, err := open(path)
			if err != nil {
				f.err = &OpenError{path, err}
				return false
			}
			f.file = file

			if IsJSON(path) {
				f.json.Reset(file, path)
				f.dec = &f.json
			} else {
				f.bin.Reset(file, path)
				f.dec = &f.bin
			}
		}

		// Try to get the next record.
		if f.dec.Scan() {
			return true
		}
		err := f.dec.Err()
		f.closeFile()
		if err != nil {
			f.err = err
			return false
		}
		// Just an EOF. Open the next file.
		if f.Done != nil {
			f.Done(f.index)
		}
	}
}

func (f *Files) closeFile() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.dec = nil
	return err
}

// Record returns the record that was just read by Scan.
// See Reader.Record.
func (f *Files) Record() *Record {
	return f.dec.Record()
}

// Index returns the position in Paths of the input the last record
// was read from, or -1 if Scan has not opened an input yet.
func (f *Files) Index() int {
	if f.inputs == nil {
		return -1
	}
	return f.index
}

// Err returns the error that stopped Scan, if any. Open failures are
// reported as an *OpenError and malformed input as a *DecodeError.
// If Scan stopped because it read each file to completion, or if Scan
// has not yet returned false, Err returns nil.
func (f *Files) Err() error {
	return f.err
}

// Close releases the input currently being read, if any, and stops
// the scan. It is safe to call Close more than once, and after Scan
// has returned false.
func (f *Files) Close() error {
	f.inputs = []string{}
	err := f.closeFile()
	f.bin.Close()
	return err
}
