package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lokalise/nginx-loadtest/internal/runner"
	"github.com/lokalise/nginx-loadtest/internal/script"
)

func newRunCmd() *cobra.Command {
	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the load test",
		Long: `Run the open-model scenario against the target, logging one line per
response, then print the text summary and write summary.json.

Flags can also be set through the environment, e.g. NGINX_LOADTEST_TARGET.
The run exits with code 99 when a threshold fails and 105 when it is
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd, v)
		},
	}

	cmd.Flags().StringP("config", "c", "", "Options file (YAML or JSON) replacing the built-in scenario")
	cmd.Flags().String("target", script.DefaultTarget, "URL every iteration requests")
	cmd.Flags().String("summary-dir", ".", "Directory summary files are written to")
	cmd.Flags().Bool("no-summary", false, "Skip the end-of-test summary")
	cmd.Flags().String("html-report", "", "Also write an HTML report to this file, relative to --summary-dir")
	cmd.Flags().String("junit-report", "", "Also write the thresholds as JUnit XML to this file, relative to --summary-dir")
	cmd.Flags().BoolP("quiet", "q", false, "Disable the progress display")

	v = newViper(cmd.Flags())
	return cmd
}

func runLoadTest(cmd *cobra.Command, v *viper.Viper) error {
	opts, err := loadOptions(v.GetString("config"))
	if err != nil {
		return err
	}

	target := v.GetString("target")
	if err := script.ValidateTarget(target); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(
		script.New(script.WithTarget(target), script.WithOptions(opts)),
		runner.WithStdout(cmd.OutOrStdout()),
		runner.WithStderr(cmd.ErrOrStderr()),
		runner.WithQuiet(v.GetBool("quiet")),
	)
	if err != nil {
		return err
	}

	result, runErr := r.Run(ctx)
	if result == nil {
		return runErr
	}

	if !v.GetBool("no-summary") {
		if err := r.HandleSummary(result, v.GetString("summary-dir")); err != nil {
			return err
		}
	}
	if err := writeReports(cmd.OutOrStdout(), result.Data,
		v.GetString("html-report"), v.GetString("junit-report"), v.GetString("summary-dir")); err != nil {
		return err
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			return &ExitError{Code: ExitAborted, Err: fmt.Errorf("test run was aborted: %w", runErr)}
		}
		return runErr
	}
	if !result.Passed() {
		return thresholdsError(result.Data)
	}
	return nil
}
