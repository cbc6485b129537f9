package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/program"
)

// LoaderProcessor reads the program file and, unless the context already
// has one, the nearest typeinfer.yaml.
type LoaderProcessor struct{}

func (lp *LoaderProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.FilePath == "" {
		ctx.Errors = append(ctx.Errors, fmt.Errorf("loader: no program file given"))
		return ctx
	}
	if ext := filepath.Ext(ctx.FilePath); !slices.Contains(config.ProgramFileExtensions, ext) {
		ctx.Errors = append(ctx.Errors, fmt.Errorf("loader: %s: unsupported extension %q", ctx.FilePath, ext))
		return ctx
	}

	if ctx.Config == nil {
		cfg, err := loadConfig(filepath.Dir(ctx.FilePath))
		if err != nil {
			ctx.Errors = append(ctx.Errors, err)
			return ctx
		}
		ctx.Config = cfg
	}

	prog, err := program.Load(ctx.FilePath)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Program = prog
	if ctx.Logger != nil {
		ctx.Logger.Printf("loaded %s: package %s, %d function bodies", ctx.FilePath, prog.Package, len(prog.Functions))
	}
	return ctx
}

func loadConfig(dir string) (*config.Config, error) {
	path, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
