package pipeline

import (
	"fmt"
)

// Pipeline runs stages in order over one program file.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the stages. A stage error does not stop the stages after
// it: each stage checks for the input it needs. Cancellation does.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for i, processor := range p.processors {
		if err := ctx.Ctx().Err(); err != nil {
			ctx.Errors = append(ctx.Errors, fmt.Errorf("pipeline stopped before stage %d (%T): %w", i, processor, err))
			break
		}
		ctx = processor.Process(ctx)
		if ctx.Logger != nil {
			ctx.Logger.Printf("stage %T done, %d errors so far", processor, len(ctx.Errors))
		}
	}
	return ctx
}
