package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vrsindex/vrsindex/internal/logging"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/telemetry"
	"github.com/vrsindex/vrsindex/pkg/tui"
	"github.com/vrsindex/vrsindex/pkg/watch"
)

var watchSkipExisting bool

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Index VCF files as they arrive in a directory",
	Long: `Watch a directory and index every new VCF file into one output, in
arrival order, continuing a single counter. Files already in the directory
are indexed first, oldest first, unless --skip-existing is given.

A file is picked up once it has not been written to for watch.debounce.
Record errors follow the error policy; a file that fails as a whole is
logged and the watch continues, except for output failures, which stop it.

Examples:
  vrsindex watch /data/incoming -o alleles.idx --source-id 2`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output index file (overrides output.path)")
	watchCmd.Flags().IntVarP(&runSourceID, "source-id", "s", 0, "Source id written into every locus line (0-255)")
	watchCmd.Flags().StringVar(&runPolicy, "policy", "", "Record error policy: skip, strict, quarantine")
	watchCmd.Flags().StringVar(&runQuarantine, "quarantine", "", "Quarantine file for rejected records")
	watchCmd.Flags().IntVar(&runMaxErrors, "max-errors", 0, "Abort after this many record errors (0=unlimited)")
	watchCmd.Flags().BoolVar(&runNoCheckpoint, "no-checkpoint", false, "Disable checkpoints")
	watchCmd.Flags().BoolVar(&watchSkipExisting, "skip-existing", false, "Ignore files already in the directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.Get()
	applyRunFlags(cmd, cfg)
	cfg.Progress.Enabled = false
	if cfg.Output.Path == "" {
		return vrserrors.New(vrserrors.CodeConfig, "an output file is required (--output or output.path)")
	}

	logger := newLogger(cfg)
	tp, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.WithoutCancel(ctx))

	r, err := newRunner(ctx, cfg, logger, tp.Tracer())
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := watch.New(args[0], cfg.Watch.Patterns, cfg.Watch.Debounce)
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeConfig, "watch directory").WithContext("dir", args[0])
	}
	w.OnError = func(err error) {
		logger.Warn("watch error", "error", err)
	}

	// Existing must run before the watch loop starts; both touch the seen set.
	existing, err := w.Existing()
	if err != nil {
		return err
	}
	if watchSkipExisting {
		existing = nil
	}

	logger.Info("watching", "dir", args[0], "output", cfg.Output.Path, "patterns", cfg.Watch.Patterns)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		for _, path := range existing {
			if err := watchOne(gctx, cmd, r, logger, path); err != nil {
				return err
			}
		}
		for path := range w.Files() {
			if err := watchOne(gctx, cmd, r, logger, path); err != nil {
				return err
			}
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("watch stopped")
		return nil
	}
	return err
}

// watchOne indexes one file. Only errors that make further files unsafe
// to process are returned.
func watchOne(ctx context.Context, cmd *cobra.Command, r *runner, logger *logging.Logger, path string) error {
	res, err := r.processFile(ctx, path)
	switch {
	case res.Skipped:
		logger.Info("skipping indexed file", "path", path)
		return nil
	case err == nil:
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderRunSummary(res.Summary))
		return nil
	case vrserrors.IsCode(err, vrserrors.CodeIoFailure),
		vrserrors.IsCode(err, vrserrors.CodeCorruptOutput),
		vrserrors.IsCode(err, vrserrors.CodeCanceled):
		return fmt.Errorf("%s: %w", path, err)
	default:
		logger.Error("file failed", "path", path, "code", vrserrors.CodeOf(err).Name(), "error", err)
		return nil
	}
}
