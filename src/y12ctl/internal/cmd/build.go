package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitswalk/y12/src/y12ctl/internal/client"
	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Manage builds",
}

var buildSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Generate a build kit",
	Long: `Submits a build request. The server generates the kernel config, build
script and container files before answering, then hands the job to the
image runner when one is configured.`,
	RunE: runBuildSubmit,
}

var buildGetCmd = &cobra.Command{
	Use:   "get <build-id>",
	Short: "Get a build job by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildGet,
}

var buildWatchCmd = &cobra.Command{
	Use:   "watch <build-id>",
	Short: "Follow the logs of a build until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildWatch,
}

var buildArtifactsCmd = &cobra.Command{
	Use:   "artifacts <build-id>",
	Short: "List the artifacts of a finished build",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildArtifacts,
}

var buildProgressCmd = &cobra.Command{
	Use:   "progress <build-id>",
	Short: "Report runner progress on a build",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildProgress,
}

func init() {
	buildCmd.AddCommand(buildSubmitCmd)
	buildCmd.AddCommand(buildGetCmd)
	buildCmd.AddCommand(buildWatchCmd)
	buildCmd.AddCommand(buildArtifactsCmd)
	buildCmd.AddCommand(buildDownloadCmd)
	buildCmd.AddCommand(buildUploadISOCmd)
	buildCmd.AddCommand(buildProgressCmd)

	buildSubmitCmd.Flags().StringP("distro", "d", "debian", "Target distribution")
	buildSubmitCmd.Flags().StringP("mode", "m", "server", "Build mode (desktop, server)")
	buildSubmitCmd.Flags().String("hardware", "", "File with hardware inventory output, - for stdin")
	buildSubmitCmd.Flags().Bool("ai", true, "Ask the model for the kernel config")
	buildSubmitCmd.Flags().StringSlice("overlay", nil, "Overlays to install")
	buildSubmitCmd.Flags().StringSlice("software", nil, "Custom packages to install")
	buildSubmitCmd.Flags().StringSlice("module", nil, "Kernel modules detected on the target")
	buildSubmitCmd.Flags().BoolP("watch", "w", false, "Follow the build after submitting")

	buildProgressCmd.Flags().Int("percent", -1, "Progress percentage")
	buildProgressCmd.Flags().String("log", "", "Log line to append")
	buildProgressCmd.Flags().String("status", "", "New status (building_iso, complete, failed)")

	buildGetCmd.ValidArgsFunction = cobra.NoFileCompletions
	_ = buildSubmitCmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"desktop", "server"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func readHardware(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read hardware inventory: %w", err)
	}
	return string(data), nil
}

func runBuildSubmit(cmd *cobra.Command, args []string) error {
	distro, _ := cmd.Flags().GetString("distro")
	mode, _ := cmd.Flags().GetString("mode")
	hwPath, _ := cmd.Flags().GetString("hardware")
	ai, _ := cmd.Flags().GetBool("ai")
	overlays, _ := cmd.Flags().GetStringSlice("overlay")
	software, _ := cmd.Flags().GetStringSlice("software")
	modules, _ := cmd.Flags().GetStringSlice("module")
	watch, _ := cmd.Flags().GetBool("watch")

	hw, err := readHardware(hwPath)
	if err != nil {
		return err
	}

	c := getClient()
	resp, err := c.CreateBuild(context.Background(), &client.BuildRequest{
		Distro:          distro,
		Mode:            mode,
		HardwareRaw:     hw,
		AIMode:          ai,
		Overlays:        overlays,
		CustomSoftware:  software,
		DetectedModules: modules,
	})
	if err != nil {
		return err
	}

	err = output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage(fmt.Sprintf("Build %s created.", resp.ID))
		output.PrintTable(
			[]string{"FIELD", "VALUE"},
			[][]string{
				{"Build ID", resp.ID},
				{"Status", resp.Status},
				{"Kernel Config", fmt.Sprintf("%d lines (%s)", resp.KernelConfigLines, resp.AIModel)},
				{"Packages", fmt.Sprint(resp.Packages)},
				{"Storage Prefix", resp.R2Prefix},
			},
		)
		return nil
	})
	if err != nil || !watch {
		return err
	}
	return watchBuild(resp.ID)
}

func runBuildGet(cmd *cobra.Command, args []string) error {
	job, err := getClient().GetBuild(context.Background(), args[0])
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), job, func() error {
		rows := [][]string{
			{"ID", job.ID},
			{"Distribution", job.Distro},
			{"Mode", job.Mode},
			{"Status", job.Status},
			{"Progress", fmt.Sprintf("%d%%", job.Progress)},
			{"Kernel Config", fmt.Sprintf("%d lines (%s)", job.KernelConfigLines, job.AIModel)},
			{"Packages", strings.Join(job.Packages, " ")},
			{"Created", job.CreatedAt.Format("2006-01-02 15:04:05")},
			{"Expires", job.ExpiresAt.Format("2006-01-02 15:04:05")},
		}
		if job.TestResults != nil {
			rows = append(rows, []string{"Tests", fmt.Sprintf("%d/%d passed", job.TestResults.Passed, job.TestResults.Total)})
		}
		if job.BuildRunner != "" {
			rows = append(rows, []string{"Runner", job.BuildRunner})
		}
		if job.ISOUploaded {
			rows = append(rows, []string{"Image", fmt.Sprintf("%d bytes, sha256 %s", job.ISOSize, job.ISOSHA256)})
		}
		if job.Error != "" {
			rows = append(rows, []string{"Error", job.Error})
		}
		output.PrintTable([]string{"FIELD", "VALUE"}, rows)

		if len(job.Logs) > 0 {
			output.PrintMessage("\nLogs:")
			for _, l := range job.Logs {
				output.PrintMessage("  " + l)
			}
		}
		return nil
	})
}

type streamStatus struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

type streamLog struct {
	Message string `json:"message"`
}

func runBuildWatch(cmd *cobra.Command, args []string) error {
	return watchBuild(args[0])
}

// watchBuild prints stream events until the job reaches a terminal status.
// JSON and YAML output print each event as one document.
func watchBuild(id string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	format := getOutputFormat()
	var final string
	err := getClient().Stream(ctx, id, func(ev client.Event) error {
		if format != output.FormatTable {
			return output.PrintFormatted(format, map[string]any{
				"event": ev.Name,
				"data":  json.RawMessage(ev.Data),
			}, nil)
		}

		switch ev.Name {
		case "status":
			var s streamStatus
			if err := json.Unmarshal(ev.Data, &s); err != nil {
				return fmt.Errorf("bad status event: %w", err)
			}
			line := fmt.Sprintf("[%3d%%] %s", s.Progress, s.Status)
			if s.Error != "" {
				line += ": " + s.Error
			}
			output.PrintMessage(line)
		case "log":
			var l streamLog
			if err := json.Unmarshal(ev.Data, &l); err != nil {
				return fmt.Errorf("bad log event: %w", err)
			}
			output.PrintMessage("       " + l.Message)
		case "done":
			var s streamStatus
			_ = json.Unmarshal(ev.Data, &s)
			final = s.Status
		}
		return nil
	})
	if err != nil {
		return err
	}
	if final == "failed" {
		return fmt.Errorf("build %s failed", id)
	}
	return nil
}

func runBuildArtifacts(cmd *cobra.Command, args []string) error {
	resp, err := getClient().ListArtifacts(context.Background(), args[0])
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		rows := make([][]string, len(resp.Artifacts))
		for i, a := range resp.Artifacts {
			rows[i] = []string{a.Name, resp.Checksums[a.Name]}
		}
		output.PrintTable([]string{"FILE", "SHA256"}, rows)
		if resp.TestResults != nil {
			output.PrintMessage(fmt.Sprintf("\nValidation: %d/%d passed", resp.TestResults.Passed, resp.TestResults.Total))
		}
		if resp.ISO != nil {
			output.PrintMessage(fmt.Sprintf("Image: %s (%d bytes)", resp.ISO.URL, resp.ISO.Size))
		}
		return nil
	})
}

func runBuildProgress(cmd *cobra.Command, args []string) error {
	percent, _ := cmd.Flags().GetInt("percent")
	logLine, _ := cmd.Flags().GetString("log")
	status, _ := cmd.Flags().GetString("status")

	p := &client.Progress{Log: logLine, Status: status}
	if percent >= 0 {
		p.Progress = &percent
	}

	resp, err := getClient().ReportProgress(context.Background(), args[0], p)
	if err != nil {
		return err
	}
	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage(fmt.Sprintf("Build %s: %s (%d%%)", args[0], resp.Status, resp.Progress))
		return nil
	})
}
