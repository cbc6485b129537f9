// Package resultdb stores analysis results in SQLite so that editors and
// scripts can query types and diagnostics by source position.
package resultdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/typeinfer/internal/analyzer"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/token"
)

// ErrNotFound is returned when nothing was recorded at a position.
var ErrNotFound = errors.New("resultdb: no result at position")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id  TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS calls (
		session        TEXT NOT NULL,
		file           TEXT NOT NULL,
		line           INTEGER NOT NULL,
		col            INTEGER NOT NULL,
		name           TEXT NOT NULL,
		candidate      TEXT NOT NULL,
		return_type    TEXT NOT NULL,
		type_arguments TEXT NOT NULL,
		PRIMARY KEY (session, file, line, col)
	)`,
	`CREATE TABLE IF NOT EXISTS expressions (
		session  TEXT NOT NULL,
		file     TEXT NOT NULL,
		line     INTEGER NOT NULL,
		col      INTEGER NOT NULL,
		declared TEXT NOT NULL,
		narrowed TEXT NOT NULL,
		stable   INTEGER NOT NULL,
		PRIMARY KEY (session, file, line, col)
	)`,
	`CREATE TABLE IF NOT EXISTS diagnostics (
		session  TEXT NOT NULL,
		file     TEXT NOT NULL,
		line     INTEGER NOT NULL,
		col      INTEGER NOT NULL,
		kind     TEXT NOT NULL,
		severity TEXT NOT NULL,
		message  TEXT NOT NULL,
		related  TEXT NOT NULL
	)`,
}

// DB is a result database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// A single connection keeps in-memory databases shared between calls.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema in %s: %w", path, err)
		}
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Export writes res as one session in a single transaction.
func (d *DB) Export(ctx context.Context, sessionID uuid.UUID, res *analyzer.Results) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	id := sessionID.String()
	if _, err = tx.ExecContext(ctx, `INSERT INTO sessions (id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("export session %s: %w", id, err)
	}

	for _, call := range res.Calls() {
		p := call.Position
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO calls (session, file, line, col, name, candidate, return_type, type_arguments) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.File, p.Line, p.Column, call.Name, call.Candidate.String(), call.ReturnType.String(), typeArguments(call)); err != nil {
			return fmt.Errorf("export call at %s: %w", p, err)
		}
	}

	for _, e := range res.Expressions() {
		p := e.Position
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO expressions (session, file, line, col, declared, narrowed, stable) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, p.File, p.Line, p.Column, e.Declared.String(), e.Narrowed.String(), e.Stable); err != nil {
			return fmt.Errorf("export expression at %s: %w", p, err)
		}
	}

	for _, diag := range res.Diagnostics() {
		p := diag.Position
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO diagnostics (session, file, line, col, kind, severity, message, related) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.File, p.Line, p.Column, string(diag.Kind), string(diag.Severity), diag.Message, strings.Join(diag.Related, "\n")); err != nil {
			return fmt.Errorf("export diagnostic at %s: %w", p, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("export commit: %w", err)
	}
	return nil
}

func typeArguments(call *resolver.ResolvedCall) string {
	parts := make([]string, 0, len(call.TypeArguments))
	for name, t := range call.TypeArguments {
		parts = append(parts, name+"="+t.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// ExprRow is a stored expression type.
type ExprRow struct {
	Declared string
	Narrowed string
	Stable   bool
}

const latestSession = `(SELECT id FROM sessions ORDER BY seq DESC LIMIT 1)`

// TypeAt returns the expression type at a position in the latest session.
func (d *DB) TypeAt(ctx context.Context, file string, line, col int) (ExprRow, error) {
	var row ExprRow
	err := d.db.QueryRowContext(ctx,
		`SELECT declared, narrowed, stable FROM expressions WHERE session = `+latestSession+` AND file = ? AND line = ? AND col = ?`,
		file, line, col).Scan(&row.Declared, &row.Narrowed, &row.Stable)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("type at %s:%d:%d: %w", file, line, col, err)
	}
	return row, nil
}

// DiagnosticsFor returns the diagnostics of file in the latest session,
// ordered by position.
func (d *DB) DiagnosticsFor(ctx context.Context, file string) ([]*diagnostics.Diagnostic, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT line, col, kind, severity, message, related FROM diagnostics WHERE session = `+latestSession+` AND file = ? ORDER BY line, col, kind`,
		file)
	if err != nil {
		return nil, fmt.Errorf("diagnostics for %s: %w", file, err)
	}
	defer rows.Close()

	var out []*diagnostics.Diagnostic
	for rows.Next() {
		diag := &diagnostics.Diagnostic{Position: token.Position{File: file}}
		var kind, severity, related string
		if err := rows.Scan(&diag.Position.Line, &diag.Position.Column, &kind, &severity, &diag.Message, &related); err != nil {
			return nil, fmt.Errorf("diagnostics for %s: %w", file, err)
		}
		diag.Kind = diagnostics.Kind(kind)
		diag.Severity = diagnostics.Severity(severity)
		if related != "" {
			diag.Related = strings.Split(related, "\n")
		}
		out = append(out, diag)
	}
	return out, rows.Err()
}
