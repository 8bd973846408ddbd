package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

var buildDownloadCmd = &cobra.Command{
	Use:   "download <build-id> [file]",
	Short: "Download build artifacts",
	Long: `Downloads one artifact, every artifact, the tar.xz bundle (--bundle) or
the final image (--iso) into the output directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBuildDownload,
}

var buildUploadISOCmd = &cobra.Command{
	Use:   "upload-iso <build-id> <image>",
	Short: "Upload the final image of a build",
	Long: `Uploads an image produced by a runner. The build secret is read from
--secret, the config file or Y12_BUILD_SECRET, and prompted for otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: runBuildUploadISO,
}

func init() {
	buildDownloadCmd.Flags().StringP("dir", "C", ".", "Output directory")
	buildDownloadCmd.Flags().Bool("bundle", false, "Download all artifacts as one tar.xz archive")
	buildDownloadCmd.Flags().Bool("iso", false, "Download the final image")
}

// createOutput opens dir/name for writing, refusing names that leave dir
func createOutput(dir, name string) (*os.File, string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, path, nil
}

func runBuildDownload(cmd *cobra.Command, args []string) error {
	id := args[0]
	dir, _ := cmd.Flags().GetString("dir")
	bundle, _ := cmd.Flags().GetBool("bundle")
	iso, _ := cmd.Flags().GetBool("iso")

	c := getClient()
	ctx := context.Background()

	switch {
	case bundle:
		f, path, err := createOutput(dir, fmt.Sprintf("y12-%s-artifacts.tar.xz", id))
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := c.DownloadBundle(ctx, id, f)
		if err != nil {
			os.Remove(path)
			return err
		}
		output.PrintMessage(fmt.Sprintf("%s (%d bytes)", path, n))
		return nil

	case iso:
		f, path, err := createOutput(dir, fmt.Sprintf("y12-%s.iso", id))
		if err != nil {
			return err
		}
		defer f.Close()
		n, sha, err := c.DownloadImage(ctx, id, f)
		if err != nil {
			os.Remove(path)
			return err
		}
		output.PrintMessage(fmt.Sprintf("%s (%d bytes, sha256 %s)", path, n, sha))
		return nil
	}

	names := args[1:]
	if len(names) == 0 {
		list, err := c.ListArtifacts(ctx, id)
		if err != nil {
			return err
		}
		for _, a := range list.Artifacts {
			names = append(names, a.Name)
		}
	}

	for _, name := range names {
		f, path, err := createOutput(dir, name)
		if err != nil {
			return err
		}
		n, err := c.DownloadFile(ctx, id, name, f)
		f.Close()
		if err != nil {
			os.Remove(path)
			return fmt.Errorf("%s: %w", name, err)
		}
		output.PrintMessage(fmt.Sprintf("%s (%d bytes)", path, n))
	}
	return nil
}

func promptSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no build secret configured and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Build secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read build secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func runBuildUploadISO(cmd *cobra.Command, args []string) error {
	c := getClient()
	if c.Secret == "" {
		secret, err := promptSecret()
		if err != nil {
			return err
		}
		c.Secret = secret
	}

	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	resp, err := c.UploadImage(context.Background(), args[0], f)
	if err != nil {
		return err
	}
	return output.PrintFormatted(getOutputFormat(), resp, func() error {
		output.PrintMessage(fmt.Sprintf("Uploaded %s (%d bytes, sha256 %s)", resp.R2Key, resp.Size, resp.SHA256))
		return nil
	})
}
