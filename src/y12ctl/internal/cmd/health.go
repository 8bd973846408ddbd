package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bitswalk/y12/src/y12ctl/internal/client"
	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Long:  `Checks the job store and artifact storage of the y12 server.`,
	RunE:  runHealth,
}

var selfTestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the server self-test",
	Long:  `Generates a reference build kit on the server without storing it and lists the validation results.`,
	RunE:  runSelfTest,
}

func backendRow(name string, s client.BackendStatus) []string {
	state := "ok"
	if !s.OK {
		state = "down"
		if s.Error != "" {
			state = "down: " + s.Error
		}
	}
	return []string{name, s.Type, s.Location, state}
}

func runHealth(cmd *cobra.Command, args []string) error {
	resp, err := getClient().Health(context.Background())
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage(fmt.Sprintf("%s %s: %s", resp.Service, resp.Version, resp.Status))
		output.PrintTable(
			[]string{"BACKEND", "TYPE", "LOCATION", "STATE"},
			[][]string{
				backendRow("job store", resp.JobStore),
				backendRow("storage", resp.Storage),
			},
		)

		if len(resp.Jobs) > 0 {
			statuses := make([]string, 0, len(resp.Jobs))
			for s := range resp.Jobs {
				statuses = append(statuses, s)
			}
			sort.Strings(statuses)
			rows := make([][]string, len(statuses))
			for i, s := range statuses {
				rows[i] = []string{s, strconv.Itoa(resp.Jobs[s])}
			}
			output.PrintMessage("")
			output.PrintTable([]string{"STATUS", "JOBS"}, rows)
		}
		return nil
	})
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	resp, err := getClient().SelfTest(context.Background())
	if err != nil {
		return err
	}

	err = output.PrintFormatted(getOutputFormat(), resp, func() error {
		rows := make([][]string, len(resp.Tests))
		for i, t := range resp.Tests {
			result := "PASS"
			if !t.Pass {
				result = "FAIL"
			}
			rows[i] = []string{result, t.Name, t.Message}
		}
		output.PrintTable([]string{"RESULT", "CHECK", "DETAIL"}, rows)
		output.PrintMessage(fmt.Sprintf("\n%d/%d passed", resp.Passed, resp.Total))
		return nil
	})
	if err != nil {
		return err
	}
	if resp.Failed > 0 {
		return fmt.Errorf("%d self-test checks failed", resp.Failed)
	}
	return nil
}
