// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbtest opens run databases for tests.
//
// By default every test gets its own in-memory SQLite database. With
// -wperf.cloudsql=project:region:instance, each test instead gets a
// fresh MySQL database on that Cloud SQL instance, dropped when the
// test ends.
package dbtest

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"testing"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"

	"github.com/windowsperf/wperf-etl/storage/db"
	_ "github.com/windowsperf/wperf-etl/storage/db/sqlite3"
)

var (
	instance = flag.String("wperf.cloudsql", "", "run database tests on this Cloud SQL `instance` (project:region:instance) instead of SQLite")
	user     = flag.String("wperf.cloudsql-user", "root", "Cloud SQL `user` for -wperf.cloudsql")
)

// Driver returns the name of the SQL driver NewDB opens databases
// with, "sqlite3" or "mysql".
func Driver() string {
	if *instance != "" {
		return "mysql"
	}
	return "sqlite3"
}

// cloudRunDB creates an empty MySQL database for the runs of t and
// returns its data source name.
func cloudRunDB(t *testing.T) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		t.Fatal(err)
	}
	name := "wperf_runs_" + hex.EncodeToString(suffix)
	server := fmt.Sprintf("%s:@cloudsql(%s)/", *user, *instance)

	admin, err := sql.Open("mysql", server)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.Exec("CREATE DATABASE " + name); err != nil {
		admin.Close()
		t.Fatalf("create run database: %v", err)
	}
	t.Cleanup(func() {
		defer admin.Close()
		if _, err := admin.Exec("DROP DATABASE " + name); err != nil {
			t.Errorf("drop run database %s: %v", name, err)
		}
	})
	t.Logf("runs stored in %s on %s", name, *instance)
	return server + name
}

// NewDB opens an empty run database for t. The database is closed
// (and, on Cloud SQL, dropped) when t finishes.
func NewDB(t *testing.T) *db.DB {
	t.Helper()
	dsn := ":memory:"
	if Driver() == "mysql" {
		dsn = cloudRunDB(t)
	}
	d, err := db.OpenSQL(Driver(), dsn)
	if err != nil {
		t.Fatalf("open run database: %v", err)
	}
	// Registered after the drop, so it runs before it.
	t.Cleanup(func() { d.Close() })

	if n, err := d.CountRuns(); err != nil {
		t.Fatal(err)
	} else if n != 0 {
		t.Fatalf("new run database holds %d runs, want 0", n)
	}
	return d
}
