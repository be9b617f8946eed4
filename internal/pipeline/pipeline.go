package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitescraper/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the crawl
// result accumulated by the previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., priority, dependencies)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the result to work on.
	Do(ctx context.Context, result *model.CrawlResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool

	// finishOnCancel runs the remaining steps on a detached context once
	// the caller's context is cancelled.
	finishOnCancel bool
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors are
// joined into the error returned by Execute.
//
// Design decision: The default is to stop on error because a failed crawl
// leaves nothing worth exporting. A failed export, on the other hand,
// should not keep the run out of the history database.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithFinishOnCancel makes the pipeline run the steps that follow a
// cancellation on a context that is no longer cancelled, so that the
// partial result of an interrupted crawl is still analyzed, exported and
// saved. The result is marked Cancelled.
func WithFinishOnCancel(finish bool) Option {
	return func(p *Pipeline) {
		p.finishOnCancel = finish
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check the context before each step rather than
// during, because steps should handle their own cancellation. The crawl
// step, for instance, turns a cancellation into a partial result.
//
// Returns the first error encountered if continueOnError is false,
// or all step errors joined together otherwise.
func (p *Pipeline) Execute(ctx context.Context, result *model.CrawlResult) error {
	var errs []error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			if !p.finishOnCancel {
				p.logger.Warn("pipeline cancelled",
					"step", step.Name(),
					"reason", err,
				)
				return err
			}
			p.logger.Warn("context cancelled, finishing with partial results",
				"step", step.Name(),
				"pages", len(result.Pages),
			)
			ctx = context.WithoutCancel(ctx)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"domain", result.Domain,
		)

		if err := step.Do(ctx, result); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"domain", result.Domain,
				"error", err,
			)

			if !p.continueOnError {
				return err
			}
			errs = append(errs, err)
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"domain", result.Domain,
		)
	}

	return errors.Join(errs...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
