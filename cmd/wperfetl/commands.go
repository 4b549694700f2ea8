// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpcchart"
	"github.com/windowsperf/wperf-etl/gpcstat"
	"github.com/windowsperf/wperf-etl/report"
	"github.com/windowsperf/wperf-etl/storage/db"
	_ "github.com/windowsperf/wperf-etl/storage/db/sqlite3"
	"github.com/windowsperf/wperf-etl/storage/fs/gcs"
	"github.com/windowsperf/wperf-etl/tracefmt"
)

func (a *app) gcsOptions() []option.ClientOption {
	if a.gcsToken == "" {
		return nil
	}
	return []option.ClientOption{gcs.WithToken(a.gcsToken)}
}

// create opens name for writing, or returns stdout if name is "" or "-".
func (a *app) create(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopCloser{a.stdout}, nil
	}
	return os.Create(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeTo creates name, calls write and closes it, reporting the first
// error.
func (a *app) writeTo(name string, write func(w io.Writer) error) error {
	f, err := a.create(name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	err = write(bw)
	if err1 := bw.Flush(); err == nil {
		err = err1
	}
	if err1 := f.Close(); err == nil {
		err = err1
	}
	return err
}

func (a *app) tablesCmd() *cobra.Command {
	var outputs []string
	cmd := &cobra.Command{
		Use:   "tables [--output name]... file...",
		Short: "Print outputs as text tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.run(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.writeTo("", func(w io.Writer) error {
				if len(outputs) == 0 {
					return report.FormatOutputs(w, o, report.Standard)
				}
				for i, name := range outputs {
					events, err := o.Query(name)
					if err != nil {
						return err
					}
					if i > 0 {
						fmt.Fprintln(w)
					}
					t, ok := report.Standard.Lookup(name)
					if !ok {
						t = report.EventsTable(name)
					}
					if err := report.FormatText(w, t, events); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "print only the named `output` (repeatable)")
	return cmd
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat file...",
		Short: "Print per-counter statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.run(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.writeTo("", func(w io.Writer) error {
				fmt.Fprintf(w, "duration: %v\n", o.Span.Duration)
				for _, name := range o.Names() {
					events, err := o.Query(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "\n%s (%d events)\n", name, events.Len())
					if err := report.FormatSummaries(w, gpcstat.Summarize(events)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (a *app) chartCmd() *cobra.Command {
	var output, format, out string
	cmd := &cobra.Command{
		Use:   "chart [--output name] [--format png|svg] [-o file] file...",
		Short: "Plot counter values over time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := gpcchart.ParseFormat(format)
			if err != nil {
				return err
			}
			o, err := a.run(cmd.Context(), args)
			if err != nil {
				return err
			}
			events, err := o.Query(output)
			if err != nil {
				return err
			}
			if events.Len() == 0 {
				return fmt.Errorf("%s: %w", output, gpcchart.ErrNoEvents)
			}
			if out == "" {
				out = output + "." + format
			}
			title := output
			if t, ok := report.Standard.Lookup(output); ok {
				title = t.Title
			}
			err = a.writeTo(out, func(w io.Writer) error {
				return gpcchart.Chart(w, events, gpcchart.Options{Title: title, Format: f})
			})
			if err != nil {
				return err
			}
			a.log.Info("wrote chart", zap.String("file", out), zap.Int("events", events.Len()))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", cook.DriverOutput, "plot the named `output`")
	cmd.Flags().StringVar(&format, "format", "png", "image `format`: png or svg")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the image to `file` (default output.format, - for stdout)")
	return cmd
}

func (a *app) htmlCmd() *cobra.Command {
	var out, title string
	cmd := &cobra.Command{
		Use:   "html [-o file] file...",
		Short: "Write outputs as an HTML page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.run(cmd.Context(), args)
			if err != nil {
				return err
			}
			return a.writeTo(out, func(w io.Writer) error {
				return report.FormatHTML(w, title, o, report.Standard)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the page to `file` (default stdout)")
	cmd.Flags().StringVar(&title, "title", "WindowsPerf counters", "page `title`")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "export --dsn source [--driver sqlite3|mysql] file...",
		Short: "Store the run in a SQL database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("--dsn is required")
			}
			o, err := a.run(cmd.Context(), args)
			if err != nil {
				return err
			}
			d, err := db.OpenSQL(driver, dsn)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer d.Close()
			r, err := d.Export(cmd.Context(), o)
			if err != nil {
				return err
			}
			n, err := r.CountEvents(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "run %d: %d events in %d outputs\n", r.ID, n, len(o.Names()))
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "database `driver`: sqlite3 or mysql")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database `source` name, as for the driver")
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	var compress bool
	cmd := &cobra.Command{
		Use:   "convert [--zstd] input output",
		Short: "Rewrite a trace file in the binary format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			files, done, err := a.openFS(cmd.Context(), []string{in})
			if err != nil {
				return err
			}
			defer done()

			src := &tracefmt.Files{
				Paths: []string{in},
				Open: func(name string) (io.ReadCloser, error) {
					return files.Open(cmd.Context(), name)
				},
			}
			defer src.Close()

			n := 0
			err = a.writeTo(out, func(w io.Writer) error {
				tw := tracefmt.NewWriter(w)
				if compress {
					var err error
					if tw, err = tracefmt.NewCompressedWriter(w); err != nil {
						return err
					}
				}
				for src.Scan() {
					if err := tw.Write(src.Record()); err != nil {
						return err
					}
					n++
				}
				if err := src.Err(); err != nil {
					return err
				}
				return tw.Close()
			})
			if err != nil {
				return err
			}
			a.log.Info("converted", zap.String("input", in), zap.String("output", out), zap.Int("records", n))
			return nil
		},
	}
	cmd.Flags().BoolVar(&compress, "zstd", false, "compress the output with zstd")
	return cmd
}
