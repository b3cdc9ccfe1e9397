package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lokalise/nginx-loadtest/internal/config"
)

func newOptionsCmd() *cobra.Command {
	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the effective scenario options",
		Long: `Print the options a run would use, with defaults applied. Without
--config this is the built-in nginx scenario.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(v.GetString("config"))
			if err != nil {
				return err
			}
			config.ApplyDefaults(opts)

			out := cmd.OutOrStdout()
			switch format := v.GetString("format"); format {
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(opts); err != nil {
					return fmt.Errorf("failed to encode options: %w", err)
				}
				return enc.Close()
			case "json":
				raw, err := json.MarshalIndent(opts, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode options: %w", err)
				}
				_, err = fmt.Fprintln(out, string(raw))
				return err
			default:
				return fmt.Errorf("unsupported format %q (use yaml or json)", format)
			}
		},
	}

	cmd.Flags().StringP("config", "c", "", "Options file (YAML or JSON)")
	cmd.Flags().StringP("format", "f", "yaml", "Output format: yaml or json")

	v = newViper(cmd.Flags())
	return cmd
}
