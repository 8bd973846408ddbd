package generate

import "strings"

// Artifact file names under a job prefix
const (
	FileKernelConfig = "kernel.config"
	FileBuildScript  = "build.sh"
	FileDockerfile   = "Dockerfile"
	FileCompose      = "docker-compose.yml"
	FileManifest     = "manifest.json"
	FileReadme       = "README.md"
	FileTestResults  = "test-results.json"
	FileChecksums    = "checksums.sha256"
	FileImage        = "output.iso"
)

// ArtifactFiles is the downloadable set, in listing order
var ArtifactFiles = []string{
	FileKernelConfig,
	FileBuildScript,
	FileDockerfile,
	FileCompose,
	FileManifest,
	FileReadme,
	FileTestResults,
	FileChecksums,
}

// ChecksummedFiles are hashed into checksums.sha256, in this order
var ChecksummedFiles = []string{
	FileKernelConfig,
	FileBuildScript,
	FileDockerfile,
	FileCompose,
	FileManifest,
	FileReadme,
}

// IsArtifact reports whether name is on the download allow-list
func IsArtifact(name string) bool {
	for _, f := range ArtifactFiles {
		if f == name {
			return true
		}
	}
	return false
}

// ContentType derives the served content type from the file extension
func ContentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".yml"), strings.HasSuffix(name, ".yaml"):
		return "text/yaml"
	case strings.HasSuffix(name, ".md"):
		return "text/markdown"
	case strings.HasSuffix(name, ".iso"):
		return "application/octet-stream"
	default:
		return "text/plain"
	}
}
