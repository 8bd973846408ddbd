package generate

import (
	"fmt"
	"strings"
	"time"
)

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// Readme renders README.md
func Readme(m Manifest) string {
	var b strings.Builder
	image := fmt.Sprintf("y12-%s-%s", m.Distro, m.Mode)

	fmt.Fprintf(&b, "# y12 build %s\n\n", m.JobID)
	b.WriteString("## Build Configuration\n")
	fmt.Fprintf(&b, "- **Distro**: %s\n", m.Distro)
	fmt.Fprintf(&b, "- **Mode**: %s\n", m.Mode)
	fmt.Fprintf(&b, "- **Base Image**: %s\n", m.BaseImage)
	fmt.Fprintf(&b, "- **Package Manager**: %s\n", m.PackageManager)
	fmt.Fprintf(&b, "- **Packages**: %s\n", listOrNone(m.Packages))
	fmt.Fprintf(&b, "- **Custom Software**: %s\n", listOrNone(m.CustomSoftware))
	fmt.Fprintf(&b, "- **Overlays**: %s\n", listOrNone(m.Overlays))
	fmt.Fprintf(&b, "- **Kernel Modules**: %s\n", listOrNone(m.Modules))
	fmt.Fprintf(&b, "- **AI Model**: %s\n", m.AIModel)
	fmt.Fprintf(&b, "- **Kernel Config Lines**: %d\n", m.KernelConfigLines)
	fmt.Fprintf(&b, "- **Created**: %s\n\n", m.Created.UTC().Format(time.RFC3339))

	b.WriteString("## How to Build\n\n")
	b.WriteString("### Option 1: Docker Compose (recommended)\n")
	b.WriteString("```bash\ndocker compose up --build\n# the ISO lands in ./output/\n```\n\n")
	b.WriteString("### Option 2: Manual Docker Build\n")
	fmt.Fprintf(&b, "```bash\ndocker build -t %s .\n", image)
	fmt.Fprintf(&b, "docker run --rm -v $(pwd)/output:/output %s \\\n", image)
	b.WriteString("  sh -c \"cp /output.iso /output/ && cp /output.iso.sha256 /output/\"\n```\n\n")
	b.WriteString("### Option 3: Run build.sh directly (requires Docker)\n")
	b.WriteString("```bash\nchmod +x build.sh\n./build.sh\n```\n\n")

	b.WriteString("## Files\n")
	descriptions := map[string]string{
		FileKernelConfig: fmt.Sprintf("kernel config fragment (%d lines)", m.KernelConfigLines),
		FileBuildScript:  "standalone build script",
		FileDockerfile:   "multi-stage Docker build",
		FileCompose:      "one command build",
		FileManifest:     "build metadata",
		FileReadme:       "this file",
		FileTestResults:  "automated validation results",
		FileChecksums:    "SHA256 checksums of the artifacts",
	}
	for _, f := range ArtifactFiles {
		fmt.Fprintf(&b, "- `%s`: %s\n", f, descriptions[f])
	}

	b.WriteString("\n## Verification\n")
	b.WriteString("```bash\nsha256sum -c checksums.sha256\n```\n")
	return b.String()
}
