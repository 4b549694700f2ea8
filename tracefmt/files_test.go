// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tracefmt

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// trackingOpen wraps os.Open and records which files are open.
type trackingOpen struct {
	open map[string]bool
	max  int
}

type trackedFile struct {
	*os.File
	t    *trackingOpen
	name string
}

func (f *trackedFile) Close() error {
	delete(f.t.open, f.name)
	return f.File.Close()
}

func (t *trackingOpen) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	if t.open == nil {
		t.open = make(map[string]bool)
	}
	t.open[name] = true
	if len(t.open) > t.max {
		t.max = len(t.open)
	}
	return &trackedFile{f, t, name}, nil
}

func writeFiles(t *testing.T, dir string) {
	t.Helper()
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0666); err != nil {
			t.Fatal(err)
		}
	}
	write("a", encode(t, false, rec("X", 1), rec("Y", 2)))
	write("b.zst", encode(t, true, rec("Z", 3)))
	write("c.jsonl", []byte(`{"provider": "J", "ticks": 4}`+"\n"))
	write("bad", []byte("not a trace"))
	write("empty", nil)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir)

	check := func(paths []string, want ...string) {
		t.Helper()
		var tr trackingOpen
		f := &Files{Open: tr.Open}
		for _, p := range paths {
			f.Paths = append(f.Paths, filepath.Join(dir, p))
		}
		for f.Scan() {
			if len(want) == 0 {
				t.Errorf("got record, want end of stream")
				break
			}
			got := filepath.Base(f.Paths[f.Index()]) + " " + f.Record().Provider
			if got != want[0] {
				t.Errorf("got %q, want %q", got, want[0])
			}
			want = want[1:]
		}

		err := f.Err()
		wantErr := ""
		if len(want) == 1 && strings.HasPrefix(want[0], "err ") {
			wantErr = want[0][len("err "):]
			want = want[1:]
		}
		if err == nil && wantErr != "" {
			t.Errorf("got success, want error %s", wantErr)
		} else if err != nil && wantErr == "" {
			t.Errorf("got error %s", err)
		} else if err != nil && !strings.HasSuffix(err.Error(), wantErr) {
			t.Errorf("got error %s, want error ending %s", err, wantErr)
		}
		if len(want) != 0 {
			t.Errorf("got end of stream, want %v", want)
		}

		if err := f.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
		if len(tr.open) != 0 {
			t.Errorf("files left open: %v", tr.open)
		}
		if tr.max > 1 {
			t.Errorf("%d files open at once, want at most 1", tr.max)
		}
	}

	// Basic tests.
	check([]string{"a", "b.zst", "c.jsonl"}, "a X", "a Y", "b.zst Z", "c.jsonl J")
	check([]string{"c.jsonl", "a"}, "c.jsonl J", "a X", "a Y")
	check([]string{"a", "a"}, "a X", "a Y", "a X", "a Y")
	check(nil)

	// Errors stop the sequence.
	check([]string{"a", "missing", "b.zst"}, "a X", "a Y", "err missing: "+syscall.ENOENT.Error())
	check([]string{"a", "bad", "b.zst"}, "a X", "a Y", "err bad: not a trace file")
}

func TestFilesOpenError(t *testing.T) {
	f := &Files{Paths: []string{filepath.Join(t.TempDir(), "nope")}}
	if f.Scan() {
		t.Fatal("Scan succeeded")
	}
	var oe *OpenError
	if !errors.As(f.Err(), &oe) {
		t.Fatalf("got %T, want *OpenError", f.Err())
	}
	if !errors.Is(f.Err(), os.ErrNotExist) {
		t.Errorf("OpenError does not unwrap to os.ErrNotExist")
	}
}

func TestFilesCloseEarly(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir)
	var tr trackingOpen
	f := &Files{Paths: []string{filepath.Join(dir, "a"), filepath.Join(dir, "b.zst")}, Open: tr.Open}
	if !f.Scan() {
		t.Fatal(f.Err())
	}
	if len(tr.open) != 1 {
		t.Fatalf("got %d open files, want 1", len(tr.open))
	}
	f.Close()
	if len(tr.open) != 0 {
		t.Errorf("files left open after Close: %v", tr.open)
	}
	if f.Scan() {
		t.Errorf("Scan succeeded after Close")
	}
}

func TestFilesDone(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir)
	check := func(paths []string, want ...int) {
		t.Helper()
		var tr trackingOpen
		var done []int
		f := &Files{Open: tr.Open}
		f.Done = func(i int) {
			if len(tr.open) != 0 {
				t.Errorf("input %d still open when done", i)
			}
			done = append(done, i)
		}
		for _, p := range paths {
			f.Paths = append(f.Paths, filepath.Join(dir, p))
		}
		for f.Scan() {
		}
		f.Close()
		if len(done) != len(want) {
			t.Errorf("%v: done %v, want %v", paths, done, want)
			return
		}
		for i := range want {
			if done[i] != want[i] {
				t.Errorf("%v: done %v, want %v", paths, done, want)
				return
			}
		}
	}
	check([]string{"a", "empty", "b.zst"}, 0, 1, 2)
	check([]string{"empty", "empty"}, 0, 1)
	check([]string{"a", "bad", "b.zst"}, 0)
	check(nil)
}
