package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/telemetry"
	"github.com/vrsindex/vrsindex/pkg/tui"
)

var (
	runOutput       string
	runSourceID     int
	runPolicy       string
	runQuarantine   string
	runMaxErrors    int
	runFresh        bool
	runNoProgress   bool
	runNoCheckpoint bool
)

var runCmd = &cobra.Command{
	Use:   "run <input.vcf[.gz]>...",
	Short: "Index VRS annotations from one or more VCF files",
	Long: `Extract VRS_Allele_IDs, VRS_Starts, VRS_Ends and VRS_States from every
record and append one four-line group per allele to the output file.

Inputs are processed in order into the same output; the counter continues
across inputs and across runs. An interrupted run resumes from its last
checkpoint; a finished one is not repeated unless --fresh is given.

Use "-" to read from stdin (no checkpoints).

Examples:
  vrsindex run annotated.vcf.gz -o alleles.idx --source-id 1
  vrsindex run chr1.vcf chr2.vcf -o alleles.idx --source-id 3 --policy quarantine --quarantine bad.jsonl
  zcat in.vcf.gz | vrsindex run - -o alleles.idx --source-id 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output index file (overrides output.path)")
	runCmd.Flags().IntVarP(&runSourceID, "source-id", "s", 0, "Source id written into every locus line (0-255)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Record error policy: skip, strict, quarantine")
	runCmd.Flags().StringVar(&runQuarantine, "quarantine", "", "Quarantine file for rejected records")
	runCmd.Flags().IntVar(&runMaxErrors, "max-errors", 0, "Abort after this many record errors (0=unlimited)")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "Ignore existing checkpoints")
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false, "Disable the progress bar")
	runCmd.Flags().BoolVar(&runNoCheckpoint, "no-checkpoint", false, "Disable checkpoints")
}

// applyRunFlags overrides cfg with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = runOutput
	}
	if flags.Changed("source-id") {
		cfg.SetSourceID(runSourceID)
	}
	if flags.Changed("policy") {
		cfg.Errors.Policy = runPolicy
	}
	if flags.Changed("quarantine") {
		cfg.Errors.QuarantinePath = runQuarantine
		if !flags.Changed("policy") {
			cfg.Errors.Policy = config.PolicyQuarantine
		}
	}
	if flags.Changed("max-errors") {
		cfg.Errors.MaxErrors = runMaxErrors
	}
	if runNoProgress {
		cfg.Progress.Enabled = false
	}
	if runNoCheckpoint {
		cfg.Checkpoint.Enabled = false
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.Get()
	applyRunFlags(cmd, cfg)
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
	r.fresh = runFresh
	if cfg.Progress.Enabled {
		r.progress = os.Stderr
	}

	for _, input := range args {
		res, err := r.processFile(ctx, input)
		if res.Skipped {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.Warn(fmt.Sprintf("%s already indexed into %s (use --fresh to redo)", input, cfg.Output.Path)))
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderRunSummary(res.Summary))
	}

	if stats := r.errors.Stats(); stats.ErrorCount > 0 {
		logger.Info("record errors", "policy", stats.Policy.String(), "total", stats.ErrorCount, "by_code", stats.ByCode)
	}
	return nil
}
