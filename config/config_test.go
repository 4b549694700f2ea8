// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

func assertHasError(t *testing.T, errs []error, substr string) {
	t.Helper()
	for _, err := range errs {
		if strings.Contains(err.Error(), substr) {
			return
		}
	}
	t.Errorf("no error containing %q in %v", substr, errs)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
version: 1
log:
  level: debug
cookers:
  - name: Driver
    keys: [WindowsPerf Driver]
  - name: All
    keys:
      - WindowsPerf Driver
      - WindowsPerf App
`))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Version: 1,
		Log:     Log{Level: zapcore.DebugLevel},
		Cookers: []Cooker{
			{Name: "Driver", Keys: []string{gpc.DriverKey}},
			{Name: "All", Keys: []string{gpc.DriverKey, gpc.AppKey}},
		},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config differs (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("version: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("config differs from Default (-want +got):\n%s", diff)
	}
	if c.Log.Level != zapcore.InfoLevel {
		t.Errorf("default level %v, want info", c.Log.Level)
	}
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		input, want string
	}{
		{"version: 1\nbogus: 3\n", "field bogus not found"},
		{"version: [1", "parsing config"},
		{"version: 1\nlog:\n  level: loud\n", "parsing config"},
		{"version: 2\n", "version must be 1, got 2"},
	} {
		_, err := Parse([]byte(test.input))
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("Parse(%q): got %v, want error containing %q", test.input, err, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	c := &Config{
		Version: 1,
		Cookers: []Cooker{
			{Name: "a", Keys: []string{gpc.DriverKey}},
			{Name: "a", Keys: []string{gpc.AppKey}},
			{Name: "", Keys: []string{gpc.AppKey}},
			{Name: "nokeys"},
			{Name: "badkey", Keys: []string{"Kernel"}},
		},
	}
	errs := c.Validate()
	assertHasError(t, errs, `cooker "a": duplicate name`)
	assertHasError(t, errs, "cooker 2: name is required")
	assertHasError(t, errs, `cooker "nokeys": keys is required`)
	assertHasError(t, errs, `cooker "badkey": unknown key "Kernel"`)
	if len(errs) != 4 {
		t.Errorf("got %d errors, want 4: %v", len(errs), errs)
	}

	assertHasError(t, (&Config{Version: 1}).Validate(), "at least one cooker")
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default() is invalid: %v", errs)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wperf.yaml")
	if err := os.WriteFile(path, []byte("version: 1\ncookers:\n  - name: X\n    keys: [WindowsPerf App]\n"), 0666); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Cookers) != 1 || c.Cookers[0].Name != "X" {
		t.Errorf("got cookers %+v", c.Cookers)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load of missing file: got %v, want %v", err, os.ErrNotExist)
	}
}

func TestRouter(t *testing.T) {
	c := &Config{Version: 1, Cookers: []Cooker{
		{Name: "one", Keys: []string{gpc.DriverKey}},
		{Name: "two", Keys: []string{gpc.DriverKey}},
	}}
	r, err := c.Router(zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, r.Names()); diff != "" {
		t.Errorf("names differ (-want +got):\n%s", diff)
	}

	dup := &Config{Version: 1, Cookers: []Cooker{{Name: "x", Keys: []string{gpc.AppKey}}, {Name: "x", Keys: []string{gpc.AppKey}}}}
	var de *cook.DuplicateOutputError
	if _, err := dup.Router(nil); !errors.As(err, &de) {
		t.Errorf("got %v, want *cook.DuplicateOutputError", err)
	}
}
