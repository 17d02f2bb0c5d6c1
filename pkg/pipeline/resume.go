package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/vrsindex/vrsindex/pkg/checkpoint"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/output"
)

// ResumeOptions describes the run being planned.
type ResumeOptions struct {
	Input        string
	Output       string
	RunID        string
	CounterStart uint64

	// Recover truncates a torn trailing group instead of failing.
	Recover bool

	// Fresh ignores any stored checkpoint for this input and output.
	Fresh bool

	// Untracked runs keep no checkpoint of their own but still settle
	// interrupted runs into the same output before appending.
	Untracked bool
}

// ResumePlan tells a run where to start.
type ResumePlan struct {
	Checkpoint  *checkpoint.Checkpoint
	SkipRecords int64
	Counter     *output.Counter
	Scan        output.ScanResult

	// Resumed is set when an interrupted run is being continued.
	Resumed bool

	// AlreadyComplete is set when a finished checkpoint covers this input;
	// the caller should not process it again.
	AlreadyComplete bool
}

// Resume inspects the output file and the checkpoint backend and decides
// how a run should start. backend may be nil, in which case the output file
// alone determines the starting counter.
//
// Before planning, Resume settles the interrupted run, if any, that wrote
// the end of the output: groups it wrote past its last saved boundary are
// removed and its checkpoint is detached, so that run later continues at
// the end of the file. A run resuming its own undetached checkpoint owns
// the end of the file and is cut back to that checkpoint's boundary.
// Groups another run wrote are never truncated.
func Resume(ctx context.Context, backend checkpoint.Backend, opts ResumeOptions) (*ResumePlan, error) {
	id := checkpoint.IDFor(opts.Input, opts.Output)
	tracked := backend != nil && !opts.Untracked

	var own *checkpoint.Checkpoint
	if tracked && !opts.Fresh {
		cp, err := backend.Load(ctx, id)
		switch {
		case err == nil:
			if cp.Done() {
				return &ResumePlan{Checkpoint: cp, AlreadyComplete: true}, nil
			}
			own = cp
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "load checkpoint")
		}
	}

	if backend != nil {
		if err := settle(ctx, backend, opts.Output, id, own != nil && !own.Detached); err != nil {
			return nil, err
		}
	}

	var (
		plan *ResumePlan
		err  error
	)
	if own != nil {
		plan, err = resumeFrom(own, opts)
	} else {
		plan, err = startFresh(opts)
	}
	if err != nil {
		return nil, err
	}

	// The plan is stored before the first append so a later run can tell
	// where this one started.
	if tracked {
		if err := backend.Save(ctx, plan.Checkpoint); err != nil {
			return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "save checkpoint").
				WithContext("id", plan.Checkpoint.ID)
		}
	}
	return plan, nil
}

// settle closes off the interrupted run that wrote the end of out, if
// there is one other than self. selfPending is set when self is itself an
// undetached interrupted run, which cannot coexist with another.
func settle(ctx context.Context, backend checkpoint.Backend, out, self string, selfPending bool) error {
	open, err := backend.ListIncomplete(ctx)
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "list checkpoints")
	}

	var pending []*checkpoint.Checkpoint
	for _, cp := range open {
		if cp.ID != self && !cp.Detached && cp.Writes(out) {
			pending = append(pending, cp)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if len(pending) > 1 || selfPending {
		return vrserrors.New(vrserrors.CodeCheckpoint, "output has more than one interrupted run").
			WithContext("output", out).
			WithContext("other_run", pending[0].InputPath)
	}

	cp := pending[0]
	size, err := outputSize(out)
	if err != nil {
		return err
	}
	if size < cp.OutputBytes {
		return vrserrors.New(vrserrors.CodeCorruptOutput, "output is shorter than an interrupted run's checkpoint").
			WithContext("path", out).
			WithContext("size", size).
			WithContext("checkpoint", cp.ID)
	}
	if size > cp.OutputBytes {
		if err := output.Truncate(out, cp.OutputBytes); err != nil {
			return err
		}
	}

	cp.Detach()
	if err := backend.Save(ctx, cp); err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "detach checkpoint").WithContext("id", cp.ID)
	}
	return nil
}

func resumeFrom(cp *checkpoint.Checkpoint, opts ResumeOptions) (*ResumePlan, error) {
	if cp.Detached {
		return resumeAtEnd(cp, opts)
	}

	size, err := outputSize(opts.Output)
	if err != nil {
		return nil, err
	}
	if size < cp.OutputBytes {
		return nil, vrserrors.New(vrserrors.CodeCorruptOutput, "output is shorter than its checkpoint").
			WithContext("path", opts.Output).
			WithContext("size", size).
			WithContext("checkpoint_bytes", cp.OutputBytes)
	}
	if size > cp.OutputBytes {
		if err := output.Truncate(opts.Output, cp.OutputBytes); err != nil {
			return nil, err
		}
	}

	res, err := output.ScanFile(opts.Output)
	if err != nil {
		return nil, err
	}
	if res.Torn {
		return nil, vrserrors.New(vrserrors.CodeCorruptOutput, "checkpoint offset is not on a group boundary").
			WithContext("offset", cp.OutputBytes)
	}
	if !res.Empty() && res.NextCounter != cp.NextCounter {
		return nil, vrserrors.New(vrserrors.CodeCheckpoint, "checkpoint counter does not match output").
			WithContext("checkpoint", cp.NextCounter).
			WithContext("output", res.NextCounter)
	}

	cp.RunID = opts.RunID
	return &ResumePlan{
		Checkpoint:  cp,
		SkipRecords: cp.RecordsRead,
		Counter:     output.NewCounter(cp.NextCounter),
		Scan:        res,
		Resumed:     true,
	}, nil
}

// resumeAtEnd continues a detached run after the groups other runs
// appended, keying its next group with the file's next counter.
func resumeAtEnd(cp *checkpoint.Checkpoint, opts ResumeOptions) (*ResumePlan, error) {
	res, next, err := scanOutput(opts)
	if err != nil {
		return nil, err
	}

	cp.RunID = opts.RunID
	cp.Detached = false
	cp.Update(cp.RecordsRead, cp.RecordsSkipped, cp.AllelesWritten, next, res.ValidBytes)
	return &ResumePlan{
		Checkpoint:  cp,
		SkipRecords: cp.RecordsRead,
		Counter:     output.NewCounter(next),
		Scan:        res,
		Resumed:     true,
	}, nil
}

func startFresh(opts ResumeOptions) (*ResumePlan, error) {
	res, next, err := scanOutput(opts)
	if err != nil {
		return nil, err
	}

	cp := checkpoint.New(opts.RunID, opts.Input, opts.Output)
	cp.Update(0, 0, 0, next, res.ValidBytes)
	return &ResumePlan{
		Checkpoint: cp,
		Counter:    output.NewCounter(next),
		Scan:       res,
	}, nil
}

// scanOutput validates the output for appending and returns the counter
// the next group takes.
func scanOutput(opts ResumeOptions) (output.ScanResult, uint64, error) {
	var (
		res output.ScanResult
		err error
	)
	if opts.Recover {
		res, err = output.Recover(opts.Output)
	} else {
		res, err = output.ScanFile(opts.Output)
	}
	if err != nil {
		return res, 0, err
	}
	if res.Torn && !opts.Recover {
		return res, 0, vrserrors.New(vrserrors.CodeCorruptOutput, "output ends with a partial group").
			WithContext("path", opts.Output).
			WithContext("valid_bytes", res.ValidBytes)
	}

	next := opts.CounterStart
	if !res.Empty() {
		next = res.NextCounter
	}
	return res, next, nil
}

func outputSize(path string) (int64, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return info.Size(), nil
	case errors.Is(err, os.ErrNotExist):
		return 0, nil
	default:
		return 0, vrserrors.IoFailure("stat output", err)
	}
}
