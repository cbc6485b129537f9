package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	"github.com/mattn/go-isatty"

	"github.com/funvibe/typeinfer/internal/analyzer"
	"github.com/funvibe/typeinfer/internal/config"
	"github.com/funvibe/typeinfer/internal/diagnostics"
	"github.com/funvibe/typeinfer/internal/pipeline"
	"github.com/funvibe/typeinfer/internal/resultdb"
)

type options struct {
	configPath string
	strict     bool
	workers    int
	dbPath     string
	dump       bool
	watch      bool
	verbose    bool
}

func main() {
	log.SetFlags(0)          // Disable timestamp in logs
	log.SetOutput(os.Stderr) // Diagnostics go to stdout

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "configuration file (default: nearest typeinfer.yaml)")
	flag.BoolVar(&opts.strict, "strict", false, "report empty intersections as errors")
	flag.IntVar(&opts.workers, "workers", 0, "declarations analyzed in parallel")
	flag.StringVar(&opts.dbPath, "db", "", "export results to this SQLite database")
	flag.BoolVar(&opts.dump, "dump", false, "print every resolved call")
	flag.BoolVar(&opts.watch, "watch", false, "re-run when an input file changes")
	flag.BoolVar(&opts.verbose, "v", false, "log pipeline progress to stderr")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file.yaml...\n", config.ToolName)
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := newRunner(opts, os.Stdout)
	if err != nil {
		log.Fatalf("%s: %v", config.ToolName, err)
	}

	if opts.watch {
		if err := r.watch(ctx, files); err != nil && ctx.Err() == nil {
			log.Fatalf("%s: %v", config.ToolName, err)
		}
		return
	}
	if !r.runAll(ctx, files) {
		os.Exit(1)
	}
}

// runner analyzes program files with one set of options.
type runner struct {
	opts   options
	out    io.Writer
	color  bool
	config *config.Config // nil means per-file lookup
	logger *log.Logger
}

func newRunner(opts options, out io.Writer) (*runner, error) {
	r := &runner{opts: opts, out: out, logger: log.New(io.Discard, "", 0)}
	if opts.verbose {
		r.logger = log.Default()
	}
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		r.config = cfg
	}

	if f, ok := out.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if r.config != nil && r.config.Color != nil {
		r.color = *r.config.Color
	}
	return r, nil
}

func (r *runner) pipeline() *pipeline.Pipeline {
	stages := []pipeline.Processor{
		&pipeline.LoaderProcessor{},
		&overrideProcessor{opts: r.opts},
		&analyzer.Processor{},
	}
	if r.opts.dbPath != "" {
		stages = append(stages, &resultdb.ExportProcessor{Path: r.opts.dbPath})
	}
	return pipeline.New(stages...)
}

// runAll analyzes every file and reports whether all of them are free of
// errors.
func (r *runner) runAll(ctx context.Context, files []string) bool {
	ok := true
	for _, file := range files {
		if !r.run(ctx, file) {
			ok = false
		}
	}
	return ok
}

func (r *runner) run(ctx context.Context, file string) bool {
	pctx := &pipeline.PipelineContext{
		Context:  ctx,
		FilePath: file,
		Config:   r.config,
		Logger:   r.logger,
	}
	pctx = r.pipeline().Run(pctx)

	for _, err := range pctx.Errors {
		fmt.Fprintf(r.out, "%s: %v\n", file, err)
	}

	res, _ := pctx.Results.(*analyzer.Results)
	if res == nil {
		return !pctx.Failed()
	}

	color := r.color
	if r.config == nil && pctx.Config != nil && pctx.Config.Color != nil {
		color = *pctx.Config.Color
	}
	for _, d := range res.Diagnostics() {
		fmt.Fprintln(r.out, diagnostics.Format(d, color))
	}
	if r.opts.dump {
		r.dumpCalls(res)
	}
	return !pctx.Failed() && !res.HasErrors()
}

var dumpConfig = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true, MaxDepth: 3}

func (r *runner) dumpCalls(res *analyzer.Results) {
	for _, call := range res.Calls() {
		fmt.Fprintln(r.out, call)
		if len(call.TypeArguments) > 0 {
			dumpConfig.Fdump(r.out, call.TypeArguments)
		}
	}
}

// overrideProcessor applies command-line settings on top of the loaded
// configuration.
type overrideProcessor struct {
	opts options
}

func (op *overrideProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Config == nil {
		return ctx
	}
	if !op.opts.strict && op.opts.workers <= 0 {
		return ctx
	}
	cfg := *ctx.Config
	if op.opts.strict {
		strict := true
		cfg.Strict = &strict
	}
	if op.opts.workers > 0 {
		cfg.Workers = op.opts.workers
	}
	ctx.Config = &cfg
	return ctx
}
