// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Wperfetl reads WindowsPerf trace files and reports the counter
// reads they contain.
//
// Usage:
//
//	wperfetl [--config file] [-v] command [flags] file...
//
// The input files are read in order as a single run. Records from the
// WindowsPerf driver and the WindowsPerf app are collected into the
// outputs configured in the config file (by default ReadGPCDriver and
// ReadGPCApp); records from any other provider are ignored.
//
// Inputs are binary trace files, optionally zstd-compressed, or JSON
// lines files ending in .jsonl or .json. An input named
// gs://bucket/object is read from Google Cloud Storage.
//
// The commands are:
//
//	tables   print every output as a text table
//	stat     print per-counter statistics for every output
//	chart    plot one output as a PNG or SVG image
//	html     write every output as an HTML page
//	export   store the run in a SQL database
//	convert  rewrite a trace file in the binary format
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/windowsperf/wperf-etl/config"
	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
	"github.com/windowsperf/wperf-etl/storage/fs"
	"github.com/windowsperf/wperf-etl/storage/fs/gcs"
)

func main() {
	log.SetPrefix("wperfetl: ")
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// app holds the state shared by all commands.
type app struct {
	stdout, stderr io.Writer

	cfgFile  string
	verbose  bool
	gcsToken string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "wperfetl",
		Short: "Extract counter reads from WindowsPerf traces",
		Long: `Wperfetl reads WindowsPerf trace files as a single run and reports
the general purpose counter reads logged by the WindowsPerf driver
and app.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "read cooker configuration from `file`")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log progress and debug messages")
	root.PersistentFlags().StringVar(&a.gcsToken, "gcs-token", "", "OAuth2 access `token` for gs:// inputs (default: application default credentials)")

	root.AddCommand(
		a.tablesCmd(),
		a.statCmd(),
		a.chartCmd(),
		a.htmlCmd(),
		a.exportCmd(),
		a.convertCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.cfg = config.Default()
	if a.cfgFile != "" {
		cfg, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	level := a.cfg.Log.Level
	encCfg := zap.NewProductionEncoderConfig()
	if a.verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(a.stderr), level)
	a.log = zap.New(core)
	return nil
}

// openFS returns the FS for paths, connecting to Cloud Storage only
// if some path needs it.
func (a *app) openFS(ctx context.Context, paths []string) (fs.FS, func(), error) {
	mux := &fs.Mux{}
	for _, p := range paths {
		if fs.Scheme(p) != gcs.Scheme {
			continue
		}
		g, err := gcs.NewFS(ctx, a.gcsOptions()...)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to cloud storage: %w", err)
		}
		mux.Handle(gcs.Scheme, g)
		return mux, func() { g.Close() }, nil
	}
	return mux, func() {}, nil
}

// run reads paths as a single run through the configured cookers.
func (a *app) run(ctx context.Context, paths []string) (*cook.Outputs, error) {
	files, done, err := a.openFS(ctx, paths)
	if err != nil {
		return nil, err
	}
	defer done()

	r, err := a.cfg.Router(a.log)
	if err != nil {
		return nil, err
	}
	p := &gpc.Parser{
		Paths:  paths,
		FS:     files,
		Logger: a.log,
		Progress: func(pct int) {
			a.log.Debug("progress", zap.Int("percent", pct))
		},
	}
	o, err := cook.Run(ctx, p, r)
	if err != nil {
		return nil, err
	}
	st := p.Stats()
	a.log.Debug("run stats",
		zap.Int("records", st.Records),
		zap.Int("dropped", st.Dropped),
		zap.Any("events", st.Events),
		zap.Any("failures", r.Failures()))
	return o, nil
}
