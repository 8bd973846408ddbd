package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Shows the y12ctl client version and optionally the server version.`,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("server", false, "Also show server version")
}

func runVersion(cmd *cobra.Command, args []string) error {
	showServer, _ := cmd.Flags().GetBool("server")

	format := getOutputFormat()
	if format == output.FormatJSON || format == output.FormatYAML {
		result := map[string]any{
			"client": VersionInfo.Map(),
		}
		if showServer {
			serverInfo, err := getClient().Version(context.Background())
			if err != nil {
				result["server_error"] = err.Error()
			} else {
				result["server"] = serverInfo
			}
		}
		return output.PrintFormatted(format, result, nil)
	}

	output.PrintMessage("Client: " + VersionInfo.Full())
	if !showServer {
		return nil
	}

	serverInfo, err := getClient().Version(context.Background())
	if err != nil {
		output.PrintMessage(fmt.Sprintf("\nServer: error: %v", err))
		return nil
	}
	output.PrintMessage("\nServer: " + serverInfo.Version)
	output.PrintTable([]string{"FIELD", "VALUE"}, [][]string{
		{"Release", serverInfo.ReleaseName},
		{"Version", serverInfo.ReleaseVersion},
		{"Build Date", serverInfo.BuildDate},
		{"Git Commit", serverInfo.GitCommit},
		{"Go Version", serverInfo.GoVersion},
	})
	return nil
}
