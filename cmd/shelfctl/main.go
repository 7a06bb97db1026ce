// Command shelfctl runs the enhancement pipeline by hand and inspects the
// job ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shelfproc/internal/enhance"
	"shelfproc/internal/infra"
)

var (
	enhanceConfigPath string
	outputJSON        bool
	logLevel          string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shelfctl",
		Short:         "Diagnose and operate the shelf photo enhancement worker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			infra.LoadDotEnv()
		},
	}
	root.PersistentFlags().StringVar(&enhanceConfigPath, "enhance-config", os.Getenv("ENHANCEMENT_CONFIG"), "YAML file with enhancement overrides")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for pipeline output")

	root.AddCommand(
		newAssessCmd(),
		newEnhanceCmd(),
		newLocalCmd(),
		newStatsCmd(),
		newResetCmd(),
	)
	return root
}

func loadEnhancer() (*enhance.Enhancer, error) {
	cfg, err := enhance.LoadConfig(enhanceConfigPath)
	if err != nil {
		return nil, err
	}
	return enhance.NewEnhancer(cfg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cliLogger writes pipeline logs to stderr so --json output stays clean.
func cliLogger(cmd *cobra.Command) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(lvl).With().Timestamp().Logger()
}
