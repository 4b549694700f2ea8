// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build cgo
// +build cgo

// Package sqlite3 provides the sqlite3 driver for
// github.com/windowsperf/wperf-etl/storage/db. It must be imported
// instead of go-sqlite3 to ensure foreign keys are properly honored.
package sqlite3

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/windowsperf/wperf-etl/storage/db"
)

func init() {
	db.RegisterOpenHook("sqlite3", func(db *sql.DB) error {
		// The in-memory database is per connection, and the
		// database is locked while a transaction is open, so
		// only use a single connection.
		db.SetMaxOpenConns(1)
		// Foreign keys are off by default.
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return err
		}
		return nil
	})
}
