package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vrsindex/vrsindex/pkg/checkpoint"
	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

var checkpointsAll bool

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List or delete run checkpoints",
	Long: `Manage the checkpoints stored in the configured backend (local
directory, Redis or S3). Checkpoint ids are derived from the input and
output paths of a run.`,
}

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List interrupted runs (or all runs with --all)",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointsList,
}

var checkpointsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete checkpoints by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckpointsDelete,
}

func init() {
	checkpointsListCmd.Flags().BoolVar(&checkpointsAll, "all", false, "Include completed runs")
	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsDeleteCmd)
}

func openBackend(cmd *cobra.Command) (checkpoint.Backend, error) {
	m, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := m.Get()
	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = config.BackendLocal
	}
	return checkpoint.Open(cmd.Context(), cfg.Checkpoint)
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	var cps []*checkpoint.Checkpoint
	if checkpointsAll {
		cps, err = backend.List(cmd.Context(), "")
	} else {
		cps, err = backend.ListIncomplete(cmd.Context())
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cps) == 0 {
		fmt.Fprintf(out, "No checkpoints in %s backend.\n", backend.Name())
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHASE\tRECORDS\tNEXT\tUPDATED\tDURATION\tINPUT\tOUTPUT")
	for _, cp := range cps {
		phase := string(cp.Phase)
		if cp.Detached {
			phase += " (detached)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			cp.ID, phase, cp.RecordsRead, cp.NextCounter,
			cp.UpdatedAt.Local().Format(time.DateTime), cp.Duration().Round(time.Second),
			cp.InputPath, cp.OutputPath)
	}
	return tw.Flush()
}

func runCheckpointsDelete(cmd *cobra.Command, args []string) error {
	backend, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	var errs vrserrors.MultiError
	for _, id := range args {
		if err := backend.Delete(cmd.Context(), id); err != nil {
			errs.Add(err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
	}
	return errs.ErrorOrNil()
}
