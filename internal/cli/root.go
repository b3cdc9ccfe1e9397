package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/script"
)

var version = "0.1.0"

// envPrefix prefixes the environment variables bound to flags, e.g.
// NGINX_LOADTEST_TARGET for --target.
const envPrefix = "NGINX_LOADTEST"

// NewRootCmd builds the nginx-loadtest command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nginx-loadtest",
		Short:   "Open-model load test for the nginx dev host",
		Version: version,
		Long: `nginx-loadtest drives an arrival-rate ramp against the nginx dev host:
10 requests/s for 5s, a 2 minute ramp to 50 requests/s and a 5s ramp back
down to 10 requests/s, with between 2 and 10 virtual users. Every response
is logged, and an end-of-test summary is printed and saved to summary.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newOptionsCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newSummaryCmd())
	return cmd
}

// Execute runs the command line and prints any error to stderr. The
// returned error carries the exit code; see ExitCode.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// newViper binds flags to a fresh viper instance, with NGINX_LOADTEST_*
// environment variables as fallback for flags that were not set.
func newViper(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	return v
}

// loadOptions returns the scenario options from path, or the built-in
// scenario when path is empty.
func loadOptions(path string) (*config.Options, error) {
	if path == "" {
		return script.DefaultOptions(), nil
	}

	opts, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options in %s: %w", path, err)
	}
	return opts, nil
}
