// vrsindex - VRS annotation index builder
// Extracts GA4GH VRS allele annotations from VCF INFO fields into a compact,
// append-only index file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vrsindex/vrsindex/internal/logging"
	"github.com/vrsindex/vrsindex/pkg/config"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
	"github.com/vrsindex/vrsindex/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configPath string
	verbose    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Warn(err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: 130 for interrupts,
// 2 for configuration problems, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, vrserrors.ErrCanceled), errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, vrserrors.ErrConfig):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "vrsindex",
	Short: "vrsindex - Index GA4GH VRS annotations from VCF files",
	Long: `vrsindex reads VCF files annotated with VRS_Allele_IDs, VRS_Starts,
VRS_Ends and VRS_States INFO fields and appends one compact group per allele
to an index file keyed by a monotonic counter.

Configuration is layered: built-in defaults, /etc/vrsindex/config.yaml,
~/.vrsindex/config.yaml, ./.vrsindex.yaml, --config, VRSINDEX_* environment
variables and finally command-line flags.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (must exist when given)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the layered configuration without validating it, so
// commands can apply their flags first.
func loadConfig() (*config.Manager, error) {
	m := config.NewManager()
	if err := m.Load(configPath); err != nil {
		return nil, err
	}
	return m, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.New(os.Stderr, level, cfg.Logging.Format)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the merged configuration as YAML, preceded by the files it was
loaded from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range m.GetPaths() {
			fmt.Fprintf(out, "# loaded %s\n", p)
		}
		return m.Dump(out)
	},
}
