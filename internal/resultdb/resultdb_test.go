package resultdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/funvibe/typeinfer/internal/analyzer"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/pipeline"
	"github.com/funvibe/typeinfer/internal/program"
)

const src = `
package: main
functions:
  - {name: id, type_params: [T], params: [{name: x, type: T}], returns: T}
  - name: main
    at: "2:1"
    params: [{name: s, type: Any}]
    body:
      - {at: "3:5", val: n, init: {call: id, at: "3:13", args: [{value: Int}]}}
      - at: "4:5"
        if: {is: s, type: String}
        then:
          - expr: {ref: s, at: "5:9"}
      - expr: {ref: n, at: "6:5", required: String}
`

func analyze(t *testing.T) *analyzer.Results {
	t.Helper()
	prog, err := program.Parse([]byte(src), "main.yaml")
	if err != nil {
		t.Fatal(err)
	}
	res, err := analyzer.New(prog, nil, nil).Analyze(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, path
}

func TestExportAndQuery(t *testing.T) {
	ctx := context.Background()
	db, _ := openTemp(t)
	res := analyze(t)

	if err := db.Export(ctx, res.SessionID, res); err != nil {
		t.Fatalf("Export: %v", err)
	}

	row, err := db.TypeAt(ctx, "main.yaml", 5, 9)
	if err != nil {
		t.Fatalf("TypeAt: %v", err)
	}
	if row.Declared != "Any" || row.Narrowed != "String" || !row.Stable {
		t.Errorf("row = %+v", row)
	}

	if _, err := db.TypeAt(ctx, "main.yaml", 40, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing position: err = %v", err)
	}

	diags, err := db.DiagnosticsFor(ctx, "main.yaml")
	if err != nil {
		t.Fatalf("DiagnosticsFor: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != diagnostics.TypeMismatch || diags[0].Position.Line != 6 || !diags[0].IsError() {
		t.Fatalf("diagnostics = %v", diags)
	}

	var candidate, typeArgs string
	if err := db.db.QueryRowContext(ctx, `SELECT candidate, type_arguments FROM calls WHERE line = 3 AND col = 13`).Scan(&candidate, &typeArgs); err != nil {
		t.Fatal(err)
	}
	if candidate != "<T> main.id(T): T" || typeArgs != "T=Int" {
		t.Errorf("call row = %q, %q", candidate, typeArgs)
	}
}

func TestLatestSessionWins(t *testing.T) {
	ctx := context.Background()
	db, _ := openTemp(t)

	first := analyze(t)
	if err := db.Export(ctx, first.SessionID, first); err != nil {
		t.Fatal(err)
	}
	if err := db.Export(ctx, first.SessionID, first); err == nil {
		t.Fatal("exporting the same session twice should fail")
	}

	second := analyze(t)
	if err := db.Export(ctx, second.SessionID, second); err != nil {
		t.Fatal(err)
	}
	var sessions, diags int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sessions); err != nil {
		t.Fatal(err)
	}
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnostics`).Scan(&diags); err != nil {
		t.Fatal(err)
	}
	if sessions != 2 || diags != 2 {
		t.Errorf("sessions = %d, diagnostics = %d; the failed export must roll back", sessions, diags)
	}

	got, err := db.DiagnosticsFor(ctx, "main.yaml")
	if err != nil || len(got) != 1 {
		t.Errorf("latest session diagnostics = %v, %v", got, err)
	}
}

func TestExportProcessor(t *testing.T) {
	_, path := openTemp(t)
	res := analyze(t)

	ctx := (&ExportProcessor{Path: path}).Process(&pipeline.PipelineContext{Results: res})
	if ctx.Failed() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.TypeAt(context.Background(), "main.yaml", 6, 5); err != nil {
		t.Errorf("TypeAt after export: %v", err)
	}

	// Nothing to export without results.
	if ctx := (&ExportProcessor{Path: path}).Process(&pipeline.PipelineContext{}); ctx.Failed() {
		t.Errorf("unexpected errors: %v", ctx.Errors)
	}
}
