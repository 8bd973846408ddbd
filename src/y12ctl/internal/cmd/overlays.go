package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitswalk/y12/src/y12ctl/internal/client"
	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var overlaysCmd = &cobra.Command{
	Use:   "overlays",
	Short: "Inspect overlays",
}

var overlaysValidateCmd = &cobra.Command{
	Use:   "validate <overlay>...",
	Short: "Check overlays and custom packages against a distribution",
	Long: `Dry run. Reports each overlay as native, script or unknown for the
distribution and the install command of each custom package.`,
	RunE: runOverlaysValidate,
}

func init() {
	overlaysCmd.AddCommand(overlaysValidateCmd)

	overlaysValidateCmd.Flags().StringP("distro", "d", "debian", "Target distribution")
	overlaysValidateCmd.Flags().StringSlice("software", nil, "Custom packages to check")
}

func runOverlaysValidate(cmd *cobra.Command, args []string) error {
	distro, _ := cmd.Flags().GetString("distro")
	software, _ := cmd.Flags().GetStringSlice("software")

	resp, err := getClient().ValidateOverlays(context.Background(), &client.ValidateRequest{
		Distro:         distro,
		Overlays:       args,
		CustomSoftware: software,
	})
	if err != nil {
		return err
	}

	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage("Distribution: " + resp.Distro + " (" + resp.PackageManager + ")")
		if len(resp.Overlays) > 0 {
			rows := make([][]string, len(resp.Overlays))
			for i, o := range resp.Overlays {
				rows[i] = []string{o.ID, o.Status, strings.Join(o.Packages, " "), o.Note}
			}
			output.PrintTable([]string{"OVERLAY", "STATUS", "PACKAGES", "NOTE"}, rows)
		}
		if len(resp.CustomSoftware) > 0 {
			rows := make([][]string, len(resp.CustomSoftware))
			for i, s := range resp.CustomSoftware {
				rows[i] = []string{s.Name, s.Status, s.Command}
			}
			output.PrintMessage("")
			output.PrintTable([]string{"PACKAGE", "STATUS", "COMMAND"}, rows)
		}
		return nil
	})
}
