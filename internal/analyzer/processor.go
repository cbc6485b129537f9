package analyzer

import (
	"github.com/funvibe/typeinfer/internal/pipeline"
)

// Processor runs a session over the loaded program.
type Processor struct{}

func (p *Processor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Program == nil {
		return ctx
	}

	session := New(ctx.Program, ctx.Config, ctx.Logger)
	results, err := session.Analyze(ctx.Ctx())
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	for _, f := range results.Failures() {
		ctx.Errors = append(ctx.Errors, f)
	}
	ctx.Results = results
	return ctx
}
