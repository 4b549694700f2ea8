// Copyright 2016 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package db stores the outputs of runs in a SQL database.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/windowsperf/wperf-etl/cook"
	"github.com/windowsperf/wperf-etl/gpc"
)

// DB is a high-level interface to a database of runs. It's safe for
// concurrent use by multiple goroutines.
type DB struct {
	sql *sql.DB // underlying database connection
	// prepared statements
	insertRunStmt *sql.Stmt
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	d := &DB{sql: db}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	if err := d.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to configure its connections.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS Runs (
	RunID {{if .sqlite3}}INTEGER PRIMARY KEY AUTOINCREMENT{{else}}SERIAL PRIMARY KEY AUTO_INCREMENT{{end}},
	Created BIGINT NOT NULL,
	Start BIGINT,
	Duration BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS Events (
	RunID BIGINT UNSIGNED,
	Output VARCHAR(255),
	Seq BIGINT UNSIGNED,
	SourceKey VARCHAR(64) NOT NULL,
	Provider VARCHAR(255) NOT NULL,
	Core BIGINT UNSIGNED NOT NULL,
	Counter VARCHAR(255) NOT NULL,
	EventIndex INT UNSIGNED NOT NULL,
	GPC INT UNSIGNED NOT NULL,
	Note VARCHAR(8192) NOT NULL,
	RawTime BIGINT NOT NULL,
	RelTime BIGINT NOT NULL,
	Value BIGINT NOT NULL,
	PRIMARY KEY (RunID, Output, Seq),
{{if not .sqlite3}}
	Index (Counter(100), Core),
{{end}}
	FOREIGN KEY (RunID) REFERENCES Runs(RunID) ON UPDATE CASCADE ON DELETE CASCADE
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS EventsCounterCore ON Events(Counter, Core);
{{end}}
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return fmt.Errorf("create table: %v", err)
		}
	}
	return nil
}

// prepareStatements calls db.sql.Prepare on reusable SQL statements.
func (db *DB) prepareStatements() error {
	var err error
	db.insertRunStmt, err = db.sql.Prepare("INSERT INTO Runs(Created, Start, Duration) VALUES (?, ?, ?)")
	return err
}

// now is a hook for testing
var now = time.Now

// A Run is a stored run. Its outputs are added with InsertOutput.
type Run struct {
	// ID is the primary key of the run.
	ID int64

	// Created is when the run was stored.
	Created time.Time

	// Span is the time covered by the run.
	Span gpc.Span

	db *DB
}

// withTx runs f in a transaction, committing if f succeeds and
// rolling back otherwise.
func (db *DB) withTx(ctx context.Context, f func(tx *sql.Tx) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return f(tx)
}

// NewRun stores a new, empty run covering span.
func (db *DB) NewRun(ctx context.Context, span gpc.Span) (*Run, error) {
	var r *Run
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		r, err = db.insertRun(ctx, tx, span)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (db *DB) insertRun(ctx context.Context, tx *sql.Tx, span gpc.Span) (*Run, error) {
	created := now().UTC().Truncate(time.Second)
	var start sql.NullInt64
	if !span.Start.IsZero() {
		start = sql.NullInt64{Int64: span.Start.UnixNano(), Valid: true}
	}
	res, err := tx.StmtContext(ctx, db.insertRunStmt).ExecContext(ctx, created.Unix(), start, int64(span.Duration))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, Created: created, Span: span, db: db}, nil
}

// eventColumns is the number of columns in the Events table.
const eventColumns = 13

// insertBatch is the number of events inserted per statement. SQLite
// limits a statement to 999 parameters.
const insertBatch = 999 / eventColumns

// InsertOutput stores events as the output named name. All events are
// inserted in a single transaction: if InsertOutput fails, none of
// them are stored.
func (r *Run) InsertOutput(ctx context.Context, name string, events cook.Events) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		return r.insertEvents(ctx, tx, name, events)
	})
}

func (r *Run) insertEvents(ctx context.Context, tx *sql.Tx, name string, events cook.Events) error {
	args := make([]interface{}, 0, insertBatch*eventColumns)
	flush := func() error {
		if len(args) == 0 {
			return nil
		}
		n := len(args) / eventColumns
		row := "(" + strings.TrimSuffix(strings.Repeat("?, ", eventColumns), ", ") + ")"
		query := "INSERT INTO Events VALUES " + strings.TrimSuffix(strings.Repeat(row+", ", n), ", ")
		_, err := tx.ExecContext(ctx, query, args...)
		args = args[:0]
		return err
	}
	for i := 0; i < events.Len(); i++ {
		ev := events.At(i)
		args = append(args,
			r.ID, name, i,
			ev.Key, ev.Provider, int64(ev.Core), ev.Counter, ev.Index, ev.GPC, ev.Note,
			ev.Time.UnixNano(), int64(ev.Offset), int64(ev.Value))
		if len(args) == cap(args) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Export stores the span and every output of o as a new run, in a
// single transaction. If Export fails, nothing is stored.
func (db *DB) Export(ctx context.Context, o *cook.Outputs) (*Run, error) {
	var r *Run
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if r, err = db.insertRun(ctx, tx, o.Span); err != nil {
			return err
		}
		for _, name := range o.Names() {
			events, err := o.Query(name)
			if err != nil {
				return err
			}
			if err := r.insertEvents(ctx, tx, name, events); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun returns the stored run with the given ID.
func (db *DB) GetRun(ctx context.Context, id int64) (*Run, error) {
	var created, duration int64
	var start sql.NullInt64
	err := db.sql.QueryRowContext(ctx, "SELECT Created, Start, Duration FROM Runs WHERE RunID = ?", id).Scan(&created, &start, &duration)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	} else if err != nil {
		return nil, err
	}
	r := &Run{ID: id, Created: time.Unix(created, 0).UTC(), db: db}
	r.Span.Duration = time.Duration(duration)
	if start.Valid {
		r.Span.Start = time.Unix(0, start.Int64).UTC()
	}
	return r, nil
}

// Outputs returns the names of the outputs stored for the run, in
// sorted order.
func (r *Run) Outputs(ctx context.Context) ([]string, error) {
	rows, err := r.db.sql.QueryContext(ctx, "SELECT DISTINCT Output FROM Events WHERE RunID = ? ORDER BY Output", r.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Query is the result of a query.
// Use Next to advance through the events, making sure to call Close when done:
//
//	q := r.Query(ctx, "ReadGPCDriver")
//	defer q.Close()
//	for q.Next() {
//	  ev := q.Event()
//	  ...
//	}
//	err = q.Err() // get any error encountered during iteration
//	...
type Query struct {
	rows *sql.Rows
	ev   gpc.Event
	err  error
}

// Query returns the events of the named output in the order they were
// inserted.
func (r *Run) Query(ctx context.Context, output string) *Query {
	rows, err := r.db.sql.QueryContext(ctx, `SELECT SourceKey, Provider, Core, Counter, EventIndex, GPC, Note, RawTime, RelTime, Value
FROM Events WHERE RunID = ? AND Output = ? ORDER BY Seq`, r.ID, output)
	return &Query{rows: rows, err: err}
}

// Next prepares the next event for reading. It returns false when
// there are no more events or if an error occurred.
func (q *Query) Next() bool {
	if q.err != nil {
		return false
	}
	if !q.rows.Next() {
		q.err = q.rows.Err()
		return false
	}
	var core, raw, rel, value int64
	var ev gpc.Event
	if err := q.rows.Scan(&ev.Key, &ev.Provider, &core, &ev.Counter, &ev.Index, &ev.GPC, &ev.Note, &raw, &rel, &value); err != nil {
		q.err = err
		return false
	}
	ev.Core = uint64(core)
	ev.Time = time.Unix(0, raw).UTC()
	ev.Offset = time.Duration(rel)
	ev.Value = uint64(value)
	q.ev = ev
	return true
}

// Event returns the most recent event generated by Next.
func (q *Query) Event() gpc.Event {
	return q.ev
}

// Err returns the error state of the query.
func (q *Query) Err() error {
	return q.err
}

// Close frees resources associated with the query.
func (q *Query) Close() error {
	if q.rows != nil {
		return q.rows.Close()
	}
	return q.err
}

// CountRuns returns the number of runs stored.
func (db *DB) CountRuns() (int, error) {
	var runs int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM Runs").Scan(&runs)
	return runs, err
}

// CountEvents returns the number of events stored for the run, over
// all of its outputs.
func (r *Run) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := r.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM Events WHERE RunID = ?", r.ID).Scan(&n)
	return n, err
}

// DeleteRun deletes a run and all of its events.
func (db *DB) DeleteRun(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM Events WHERE RunID = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM Runs WHERE RunID = ?", id)
		return err
	})
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	if err := db.insertRunStmt.Close(); err != nil {
		return err
	}
	return db.sql.Close()
}
