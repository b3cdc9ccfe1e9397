package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/runner"
	"github.com/lokalise/nginx-loadtest/internal/script"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an options file",
		Long: `Check an options file against the options schema, then check the
scenarios and thresholds it defines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			opts, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if _, err := runner.New(script.New(script.WithOptions(opts)), runner.WithQuiet(true)); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			if runner.IsTerminal(out) {
				green.EnableColor()
			} else {
				green.DisableColor()
			}
			fmt.Fprintf(out, "%s %s is valid\n", green.Sprint("✓"), path)
			return nil
		},
	}
}
