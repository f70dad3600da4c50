package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect TruthLens configuration",
		Long: `Inspect TruthLens configuration.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TRUTHLENS_*, then PORT, DB_PATH, REDIS_ADDR, ...)
3. Config file (./truthlens.yaml or ~/.truthlens/truthlens.yaml)
4. Defaults`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if used := opts.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "# no config file found, using defaults and environment")
			}

			data, err := opts.cfg.Redacted().YAML()
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
