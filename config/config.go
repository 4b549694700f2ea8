// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the cooker registrations for a run from a
// YAML file.
//
// A configuration looks like:
//
//	version: 1
//	log:
//	  level: info
//	cookers:
//	  - name: ReadGPCDriver
//	    keys: [WindowsPerf Driver]
//	  - name: ReadGPCApp
//	    keys: [WindowsPerf App]
//
// Each cooker becomes a cook.Stage publishing its events under name.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

// Config is the contents of a configuration file.
type Config struct {
	Version int      `yaml:"version"`
	Log     Log      `yaml:"log"`
	Cookers []Cooker `yaml:"cookers"`
}

// Log configures logging.
type Log struct {
	// Level is the minimum level logged: debug, info, warn or
	// error. The zero value is info.
	Level zapcore.Level `yaml:"level"`
}

// Cooker registers a stage.
type Cooker struct {
	Name string   `yaml:"name"`
	Keys []string `yaml:"keys"`
}

// Default returns the configuration used when no file is given: the
// two standard stages.
func Default() *Config {
	c := &Config{Version: 1}
	for _, s := range cook.Standard() {
		c.Cookers = append(c.Cookers, Cooker{Name: s.Name(), Keys: s.Keys()})
	}
	return c
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse parses and validates a configuration. Unknown fields are
// errors. If the configuration lists no cookers, the standard ones
// are used.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(c.Cookers) == 0 {
		c.Cookers = Default().Cookers
	}
	if errs := c.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &c, nil
}

// Validate checks c for structural errors and returns all of them.
func (c *Config) Validate() []error {
	var errs []error
	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}
	if len(c.Cookers) == 0 {
		errs = append(errs, fmt.Errorf("config must define at least one cooker"))
	}
	names := make(map[string]bool)
	for i, ck := range c.Cookers {
		if ck.Name == "" {
			errs = append(errs, fmt.Errorf("cooker %d: name is required", i))
			continue
		}
		if names[ck.Name] {
			errs = append(errs, fmt.Errorf("cooker %q: duplicate name", ck.Name))
		}
		names[ck.Name] = true
		if len(ck.Keys) == 0 {
			errs = append(errs, fmt.Errorf("cooker %q: keys is required", ck.Name))
		}
		for _, k := range ck.Keys {
			if k != gpc.DriverKey && k != gpc.AppKey {
				errs = append(errs, fmt.Errorf("cooker %q: unknown key %q; want %q or %q", ck.Name, k, gpc.DriverKey, gpc.AppKey))
			}
		}
	}
	return errs
}

// Router returns a cook.Router with a Stage registered for each
// cooker, in the order they are listed.
func (c *Config) Router(log *zap.Logger) (*cook.Router, error) {
	r := cook.NewRouter(log)
	for _, ck := range c.Cookers {
		if err := r.Register(cook.NewStage(ck.Name, ck.Keys...)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
