package pipeline

import (
	"context"
	"log"

	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/program"
)

// Processor is one pipeline stage.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Results is what the analysis stage leaves for later stages.
type Results interface {
	Diagnostics() []*diagnostics.Diagnostic
	HasErrors() bool
}

// PipelineContext carries state between stages.
type PipelineContext struct {
	// Context bounds the blocking stages; nil means context.Background.
	Context  context.Context
	FilePath string
	Config   *config.Config
	Logger   *log.Logger

	Program *program.Program
	Results Results

	// Errors are failures that stop a stage. Diagnostics about the analyzed
	// program live in Results.
	Errors []error
}

// Ctx returns the context the stages should block on.
func (c *PipelineContext) Ctx() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

// Failed reports whether any stage recorded an error.
func (c *PipelineContext) Failed() bool {
	return len(c.Errors) > 0
}
