package resultdb

import (
	"fmt"

	"github.com/funvibe/typeinfer/internal/analyzer"
	"github.com/funvibe/typeinfer/internal/pipeline"
)

// ExportProcessor writes the analysis results to the database at Path.
type ExportProcessor struct {
	Path string
}

func (ep *ExportProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	res, ok := ctx.Results.(*analyzer.Results)
	if !ok || res == nil {
		return ctx
	}

	db, err := Open(ep.Path)
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	defer db.Close()

	if err := db.Export(ctx.Ctx(), res.SessionID, res); err != nil {
		ctx.Errors = append(ctx.Errors, fmt.Errorf("%s: %w", ep.Path, err))
		return ctx
	}
	if ctx.Logger != nil {
		ctx.Logger.Printf("exported session %s to %s", res.SessionID, ep.Path)
	}
	return ctx
}
