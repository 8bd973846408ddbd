package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var distrosCmd = &cobra.Command{
	Use:     "distros",
	Aliases: []string{"distro"},
	Short:   "List supported distributions",
	RunE:    runDistros,
}

func runDistros(cmd *cobra.Command, args []string) error {
	resp, err := getClient().ListDistros(context.Background())
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		rows := make([][]string, len(resp.Distros))
		for i, d := range resp.Distros {
			rows[i] = []string{d.ID, d.Name, d.PackageManager, d.BaseImage}
		}
		output.PrintTable([]string{"ID", "NAME", "PKG MANAGER", "BASE IMAGE"}, rows)
		output.PrintMessage("\nModes: " + strings.Join(resp.Modes, ", "))
		return nil
	})
}
