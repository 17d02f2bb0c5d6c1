package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vrsindex/vrsindex/internal/logging"
	"github.com/vrsindex/vrsindex/pkg/checkpoint"
	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/output"
	"github.com/vrsindex/vrsindex/pkg/pipeline"
	"github.com/vrsindex/vrsindex/pkg/tui"
	"github.com/vrsindex/vrsindex/pkg/vcf"
)

// runner processes input files into the configured output. It owns the
// checkpoint backend and the quarantine file for its lifetime.
type runner struct {
	cfg     *config.Config
	logger  *logging.Logger
	tracer  trace.Tracer
	backend checkpoint.Backend
	errors  *pipeline.ErrorHandler
	quar    *pipeline.FileQuarantine

	fresh    bool
	progress io.Writer // nil disables the progress bar
}

// newRunner validates cfg and opens the resources it names.
func newRunner(ctx context.Context, cfg *config.Config, logger *logging.Logger, tracer trace.Tracer) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := pipeline.ParseErrorPolicy(cfg.Errors.Policy)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:    cfg,
		logger: logger,
		tracer: tracer,
		errors: pipeline.NewErrorHandler(policy).WithMaxErrors(int64(cfg.Errors.MaxErrors)),
	}

	if policy == pipeline.ErrorPolicyQuarantine {
		r.quar, err = pipeline.NewFileQuarantine(cfg.Errors.QuarantinePath)
		if err != nil {
			return nil, err
		}
		r.errors.WithQuarantine(r.quar)
	}

	if cfg.Checkpoint.Enabled {
		r.backend, err = checkpoint.Open(ctx, cfg.Checkpoint)
		if err != nil {
			r.Close()
			return nil, err
		}
		logger.Debug("checkpoint backend ready", "backend", r.backend.Name())
	}
	return r, nil
}

// Close releases the checkpoint backend and quarantine file.
func (r *runner) Close() error {
	var errs []error
	if r.backend != nil {
		errs = append(errs, r.backend.Close())
	}
	if r.quar != nil {
		errs = append(errs, r.quar.Close())
	}
	return errors.Join(errs...)
}

// fileResult is the outcome of processing one input.
type fileResult struct {
	Summary tui.RunSummary
	Skipped bool // a complete checkpoint already covered the input
}

// processFile runs one input to the end and appends its groups to the
// configured output.
func (r *runner) processFile(ctx context.Context, input string) (fileResult, error) {
	out := r.cfg.Output.Path
	runID := uuid.NewString()
	log := r.logger.WithRun(runID, input)

	// Stdin cannot be re-read, so it keeps no checkpoint; it still settles
	// interrupted runs into the same output.
	stdin := input == "-"
	backend := r.backend
	if stdin {
		backend = nil
	}

	plan, err := pipeline.Resume(ctx, r.backend, pipeline.ResumeOptions{
		Input:        input,
		Output:       out,
		RunID:        runID,
		CounterStart: r.cfg.Output.CounterStart,
		Recover:      r.cfg.Output.Recover,
		Fresh:        r.fresh,
		Untracked:    stdin,
	})
	if err != nil {
		return fileResult{}, err
	}
	if plan.AlreadyComplete {
		log.Info("input already indexed", "checkpoint", plan.Checkpoint.ID,
			"completed", plan.Checkpoint.UpdatedAt.Format(time.RFC3339))
		return fileResult{Skipped: true}, nil
	}
	if plan.Scan.Torn {
		log.Warn("truncated torn output tail", "output", out,
			"valid_bytes", plan.Scan.ValidBytes, "total_bytes", plan.Scan.TotalBytes)
	}
	if plan.Resumed {
		log.Info("resuming", "records", plan.SkipRecords, "next_counter", plan.Counter.Peek())
	}

	var opts []vcf.Option
	bar := r.newProgress(input)
	if bar != nil {
		opts = append(opts, vcf.WithProgress(bar))
	}
	src, err := vcf.Open(input, opts...)
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return fileResult{}, vrserrors.IoFailure("open input", err)
		}
		return fileResult{}, vrserrors.Wrap(err, vrserrors.CodeMalformedInput, "read VCF header").WithContext("path", input)
	}
	defer src.Close()

	w, err := output.Create(out)
	if err != nil {
		return fileResult{}, err
	}

	p := pipeline.NewProcessor(src, w, plan.Counter, pipeline.Options{
		SourceID:        r.cfg.SourceID(),
		Input:           input,
		RunID:           runID,
		Errors:          r.errors,
		Logger:          log,
		Tracer:          r.tracer,
		Checkpoints:     backend,
		Checkpoint:      plan.Checkpoint,
		CheckpointEvery: int64(r.cfg.Checkpoint.IntervalRecords),
		SkipRecords:     plan.SkipRecords,
	})
	stats, runErr := p.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}

	log.Info("run finished",
		"records", stats.RecordsRead,
		"skipped", stats.RecordsSkipped,
		"alleles", stats.AllelesWritten,
		"next_counter", stats.NextCounter,
		"duration", stats.Duration,
		"state", p.State().String(),
	)

	return fileResult{Summary: tui.RunSummary{
		Input:          input,
		Output:         out,
		RunID:          runID,
		Resumed:        plan.Resumed,
		RecordsRead:    stats.RecordsResumed + stats.RecordsRead,
		RecordsSkipped: stats.RecordsSkipped,
		AllelesWritten: stats.AllelesWritten,
		FirstCounter:   stats.FirstCounter,
		NextCounter:    stats.NextCounter,
		BytesWritten:   stats.BytesWritten,
		Duration:       stats.Duration,
	}}, runErr
}

// progressBar is the subset of the progress bar the runner drives.
type progressBar interface {
	io.Writer
	Finish() error
}

func (r *runner) newProgress(input string) progressBar {
	if r.progress == nil {
		return nil
	}
	total := int64(-1)
	if input != "-" {
		if info, err := os.Stat(input); err == nil {
			total = info.Size()
		}
	}
	return tui.NewProgress(r.progress, total, filepath.Base(input))
}
