// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs provides a backend-agnostic layer for opening trace
// files, so inputs can come from the local disk or from cloud
// storage.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// An FS opens named inputs for reading.
type FS interface {
	// Open opens the named input. The caller must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Local is an FS for the local file system. Relative names are
// resolved against Dir, or the working directory if Dir is empty.
type Local struct {
	Dir string
}

// Open implements FS.Open.
func (l Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Dir != "" && !filepath.IsAbs(name) {
		name = filepath.Join(l.Dir, name)
	}
	return os.Open(name)
}

// A Mux is an FS that routes names of the form scheme://rest to the
// FS registered for scheme, and all other names to Default.
type Mux struct {
	// Default opens names without a scheme. If nil, Local{} is
	// used.
	Default FS

	schemes map[string]FS
}

// Handle registers fs for names beginning with scheme + "://".
func (m *Mux) Handle(scheme string, fs FS) {
	if m.schemes == nil {
		m.schemes = make(map[string]FS)
	}
	m.schemes[scheme] = fs
}

// Scheme returns the scheme of name, or "" if it has none.
func Scheme(name string) string {
	i := strings.Index(name, "://")
	if i <= 0 {
		return ""
	}
	return name[:i]
}

// Open implements FS.Open.
func (m *Mux) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if scheme := Scheme(name); scheme != "" {
		fs, ok := m.schemes[scheme]
		if !ok {
			return nil, fmt.Errorf("no file system for scheme %q", scheme)
		}
		return fs.Open(ctx, name)
	}
	if m.Default == nil {
		return Local{}.Open(ctx, name)
	}
	return m.Default.Open(ctx, name)
}

// MemFS is an in-memory FS, intended for tests.
// It is safe for concurrent use by multiple goroutines.
type MemFS struct {
	mu      sync.Mutex
	content map[string][]byte
	opened  int
	closed  int
}

// NewMemFS constructs a new, empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{content: make(map[string][]byte)}
}

// Put stores data under name, replacing any previous content.
func (m *MemFS) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[name] = append([]byte(nil), data...)
}

// Open implements FS.Open.
func (m *MemFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.content[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	m.opened++
	return &memFile{bytes.NewReader(data), m}, nil
}

// OpenCount returns the number of inputs opened and not yet closed.
func (m *MemFS) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened - m.closed
}

type memFile struct {
	*bytes.Reader
	m *MemFS
}

func (f *memFile) Close() error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.closed++
	return nil
}
