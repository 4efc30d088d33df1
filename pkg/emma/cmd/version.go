package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emma-cli/emma/pkg/emma/output"
	"github.com/emma-cli/emma/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show emma version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// runtime is optional so the command also works standalone
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := output.FormatText
			if rt != nil {
				writer = rt.Writer()
				parsed, err := output.ParseFormat(rt.OutputFormat())
				if err != nil {
					return err
				}
				format = parsed
			}

			if format != output.FormatText {
				return output.WriteObject(writer, format, info)
			}
			_, _ = fmt.Fprintf(writer, "emma %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildDate)
			return nil
		},
	}
}
