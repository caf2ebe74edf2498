package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/telekom/leadform/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show leadform version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()
			writer := cmd.OutOrStdout()

			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "yaml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("failed to marshal to YAML: %w", err)
				}
				_, _ = fmt.Fprint(writer, string(data))
				return nil
			case "":
				_, _ = fmt.Fprintf(writer, "leadform %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildDate)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")

	return cmd
}
