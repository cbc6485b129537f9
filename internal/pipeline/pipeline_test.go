package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingProcessor struct {
	seen int
}

func (rp *recordingProcessor) Process(ctx *PipelineContext) *PipelineContext {
	rp.seen++
	return ctx
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderReadsProgramAndConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "typeinfer.yaml", "strict: true\nworkers: 2\n")
	path := writeFile(t, dir, "main.yaml", `
package: main
functions:
  - name: main
    body:
      - {val: x, init: {value: Int}}
`)

	next := &recordingProcessor{}
	ctx := New(&LoaderProcessor{}, next).Run(&PipelineContext{FilePath: path})
	if ctx.Failed() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}
	if ctx.Program == nil || ctx.Program.Package != "main" || len(ctx.Program.Functions) != 1 {
		t.Fatalf("program = %+v", ctx.Program)
	}
	if ctx.Config == nil || ctx.Config.Workers != 2 || !ctx.Config.StrictEmptyIntersection() {
		t.Errorf("config = %+v", ctx.Config)
	}
	if next.seen != 1 {
		t.Errorf("next stage ran %d times", next.seen)
	}
}

func TestLoaderErrorsDoNotStopPipeline(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want string
	}{
		{"no file", "", "no program file"},
		{"wrong extension", writeFile(t, dir, "main.txt", "package: main"), "unsupported extension"},
		{"missing file", filepath.Join(dir, "absent.yaml"), "reading program"},
		{"invalid program", writeFile(t, dir, "bad.yaml", "functions: []"), "package is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingProcessor{}
			ctx := New(&LoaderProcessor{}, next).Run(&PipelineContext{FilePath: tt.path})
			if len(ctx.Errors) != 1 || !strings.Contains(ctx.Errors[0].Error(), tt.want) {
				t.Fatalf("errors = %v, want one mentioning %q", ctx.Errors, tt.want)
			}
			if next.seen != 1 {
				t.Error("later stages should still run")
			}
		})
	}
}

func TestCtxDefaultsToBackground(t *testing.T) {
	if (&PipelineContext{}).Ctx() == nil {
		t.Fatal("Ctx returned nil")
	}
}

func TestRunStopsWhenCanceled(t *testing.T) {
	cctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &recordingProcessor{}
	ctx := New(first, &recordingProcessor{}).Run(&PipelineContext{Context: cctx})
	if first.seen != 0 {
		t.Errorf("stage ran after cancellation")
	}
	if len(ctx.Errors) != 1 || !errors.Is(ctx.Errors[0], context.Canceled) {
		t.Fatalf("errors = %v", ctx.Errors)
	}
}
