// Package analyzer runs the inference engine over every function body of a
// loaded program and collects the results by source position.
package analyzer

import (
	"context"
	"io"
	"log"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/funvibe/typeinfer/internal/checkers"
	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/dataflow"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/program"
	"github.com/funvibe/typeinfer/internal/resolver"
	"github.com/funvibe/typeinfer/internal/solver"
	"github.com/funvibe/typeinfer/internal/token"
)

// Session analyzes one program. The checker lists are fixed at creation.
type Session struct {
	ID       uuid.UUID
	Program  *program.Program
	Config   *config.Config
	Checkers *checkers.Checkers

	logger   *log.Logger
	resolver *resolver.Resolver
	engine   *dataflow.Engine
}

// Failure is a function whose analysis stopped on an internal error.
type Failure struct {
	Function string
	Position token.Position
	Err      error
}

func (f *Failure) Error() string {
	return f.Position.String() + ": analyzing " + f.Function + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// New creates a session. A nil cfg means config.Default and a nil logger
// discards output.
func New(prog *program.Program, cfg *config.Config, logger *log.Logger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := solver.New(prog.Table, solver.Options{
		StrictEmptyIntersection: cfg.StrictEmptyIntersection(),
		IterationBudget:         cfg.IterationBudget,
		Logger:                  logger,
	})
	return &Session{
		ID:       uuid.New(),
		Program:  prog,
		Config:   cfg,
		Checkers: checkers.Default(),
		logger:   logger,
		resolver: resolver.New(prog.Table, s),
		engine:   dataflow.NewEngine(prog.Table, dataflow.Options{IterationBudget: cfg.IterationBudget}),
	}
}

// Analyze runs every function body on a bounded pool of workers. An
// internal error aborts only the function it happened in; the returned
// error is non-nil only when ctx is done.
func (s *Session) Analyze(ctx context.Context) (*Results, error) {
	fns := s.Program.Functions
	reporter := diagnostics.NewReporter()
	done := make([]*dataflow.FunctionResult, len(fns))
	failed := make([]*Failure, len(fns))

	g, gctx := errgroup.WithContext(ctx)
	workers := s.Config.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	g.SetLimit(workers)

	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.analyzeFunction(fn, reporter)
			if err != nil {
				failed[i] = &Failure{Function: fn.Name, Position: fn.Position, Err: err}
				s.logger.Printf("session %s: internal error in %s at %s: %+v", s.ID, fn.Name, fn.Position, err)
				s.logger.Printf("function %s:\n%s", fn.Name, dumpConfig.Sdump(fn.Params))
				return nil
			}
			done[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := newResults(s.ID, reporter.Diagnostics())
	for i := range fns {
		if failed[i] != nil {
			res.failures = append(res.failures, failed[i])
			continue
		}
		res.add(done[i])
	}
	s.logger.Printf("session %s: %d functions, %d calls, %d diagnostics, %d failures",
		s.ID, len(fns), len(res.calls), len(res.diagnostics), len(res.failures))
	return res, nil
}

// analyzeFunction analyzes one body. Diagnostics are collected in a
// worker-local bag and flushed only when the whole function succeeds.
func (s *Session) analyzeFunction(fn *dataflow.Function, sink diagnostics.Sink) (*dataflow.FunctionResult, error) {
	hooks := &dataflow.ScopeHooks{Resolver: s.resolver, Lookup: s.Program.Scope}
	res, err := s.engine.Analyze(fn, hooks)
	if err != nil {
		return nil, err
	}

	bag := &diagnostics.Bag{}
	for _, d := range res.Diagnostics {
		bag.Report(d)
	}
	for _, d := range s.Checkers.Run(res, &checkers.Context{Table: s.Program.Table, Function: fn}) {
		bag.Report(d)
	}
	bag.FlushTo(sink)
	return res, nil
}

var dumpConfig = spew.ConfigState{Indent: "  ", MaxDepth: 4, DisablePointerAddresses: true, DisableMethods: true}
