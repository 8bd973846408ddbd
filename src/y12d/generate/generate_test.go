package generate

import (
	"strings"
	"testing"
	"time"

	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func baselineManifest() Manifest {
	return Manifest{
		JobID:             "0f8fad5b-d9cb-469f-a165-70867728950e",
		Distro:            "debian",
		Mode:              "server",
		BaseImage:         "debian:12-slim",
		PackageManager:    "apt",
		Packages:          []string{"docker.io", "containerd"},
		CustomSoftware:    []string{},
		Overlays:          []string{"docker", "tailscale"},
		Modules:           []string{"i915", "nvme"},
		AIMode:            true,
		AIModel:           "fallback",
		KernelConfigLines: 15,
		Created:           time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// build.sh
// =============================================================================

func TestBuildScriptShape(t *testing.T) {
	m := baselineManifest()
	m.CustomSoftware = []string{"htop"}
	s := BuildScript(m, []string{"tailscale"})

	assert.True(t, strings.HasPrefix(s, "#!/bin/bash\nset -euo pipefail\n"))
	assert.Equal(t, 1, strings.Count(s, "debian:12-slim"), "base image must be written once")
	assert.Contains(t, s, `docker pull "$BASE_IMAGE"`)
	assert.Contains(t, s, "apt-get install -y --no-install-recommends docker.io containerd")
	assert.Contains(t, s, `|| echo "WARN: htop not available in repos"`)
	assert.Contains(t, s, "https://tailscale.com/install.sh")
	assert.Contains(t, s, "--branch "+KernelRef)
	assert.Contains(t, s, "merge_config.sh")
	assert.Contains(t, s, "bzImage")
	assert.Contains(t, s, `menuentry "Y12 Custom Linux (debian server)"`)
	assert.Contains(t, s, "grub-mkrescue")
	assert.Contains(t, s, "sha256sum")
	assert.Contains(t, s, "scripts/config --enable NVME")
	assert.Contains(t, s, "./output/$ISO_NAME.iso")
	assert.Contains(t, s, `export ISO_NAME="y12-debian-server-0f8fad5b"`)
}

func TestBuildScriptSkipsUnknownScriptOverlays(t *testing.T) {
	m := baselineManifest()
	s := BuildScript(m, []string{"kali", "openclaw"})
	assert.NotContains(t, s, "Phase 6")
}

func TestBuildScriptPerPackageManager(t *testing.T) {
	tests := []struct {
		mgr  string
		want string
	}{
		{"dnf", `docker exec "$CONTAINER" dnf install -y podman`},
		{"nix", `docker exec "$CONTAINER" nix-env -iA nixpkgs.podman`},
		{"apt", "apt-get install -y --no-install-recommends podman"},
	}
	for _, tt := range tests {
		t.Run(tt.mgr, func(t *testing.T) {
			m := baselineManifest()
			m.PackageManager = tt.mgr
			m.Packages = []string{"podman"}
			assert.Contains(t, BuildScript(m, nil), tt.want)
		})
	}
}

// =============================================================================
// Dockerfile
// =============================================================================

func TestDockerfileUsesFixedBuildImageForEveryDistro(t *testing.T) {
	c := catalog.Builtin()
	for _, d := range c.Distros {
		t.Run(d.ID, func(t *testing.T) {
			m := baselineManifest()
			m.Distro = d.ID
			m.BaseImage = d.BaseImage
			m.PackageManager = d.PackageManager

			df := Dockerfile(m)
			assert.True(t, strings.HasPrefix(df, "FROM "+BuildImage+" AS builder\n"))
			assert.Equal(t, 1, strings.Count(df, "FROM "))
			if d.BaseImage != BuildImage {
				assert.NotContains(t, df, d.BaseImage)
			}
		})
	}
}

func TestDockerfileSteps(t *testing.T) {
	m := baselineManifest()
	m.CustomSoftware = []string{"htop"}
	df := Dockerfile(m)

	assert.Contains(t, df, "for i in 1 2 3; do git clone --depth 1 --branch v6.6")
	assert.Contains(t, df, "COPY kernel.config /tmp/y12.config")
	assert.Contains(t, df, "make -j$(nproc) bzImage modules")
	assert.Contains(t, df, "for p in docker.io containerd htop;")
	assert.Contains(t, df, "grub-mkrescue")
	assert.Contains(t, df, "sha256sum /output.iso")
	assert.True(t, strings.HasSuffix(df, "CMD [\"cat\", \"/output.iso\"]\n"))
}

// =============================================================================
// docker-compose.yml
// =============================================================================

func TestCompose(t *testing.T) {
	out, err := Compose(baselineManifest())
	require.NoError(t, err)

	var doc composeFile
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "3.8", doc.Version)
	svc, ok := doc.Services["builder"]
	require.True(t, ok)
	assert.Equal(t, "Dockerfile", svc.Build.Dockerfile)
	assert.Equal(t, []string{"./output:/output"}, svc.Volumes)
	assert.Contains(t, svc.Command, "/output/y12-debian-server-0f8fad5b.iso")
	assert.Contains(t, svc.Command, "/output/y12-debian-server-0f8fad5b.iso.sha256")
}

// =============================================================================
// README.md
// =============================================================================

func TestReadme(t *testing.T) {
	r := Readme(baselineManifest())

	assert.Contains(t, r, "docker compose up --build")
	assert.Contains(t, r, "docker build -t y12-debian-server .")
	assert.Contains(t, r, "./build.sh")
	for _, f := range ArtifactFiles {
		assert.Contains(t, r, "`"+f+"`")
	}
	assert.Contains(t, r, "- **Custom Software**: none")
}

// =============================================================================
// Idempotence
// =============================================================================

func TestGeneratorsAreIdempotent(t *testing.T) {
	render := func() map[string]string {
		m := baselineManifest()
		compose, err := Compose(m)
		require.NoError(t, err)
		manifest, err := ManifestJSON(m)
		require.NoError(t, err)
		return map[string]string{
			FileBuildScript: BuildScript(m, []string{"tailscale"}),
			FileDockerfile:  Dockerfile(m),
			FileCompose:     compose,
			FileReadme:      Readme(m),
			FileManifest:    string(manifest),
		}
	}

	first := render()
	time.Sleep(5 * time.Millisecond)
	if diff := cmp.Diff(first, render()); diff != "" {
		t.Errorf("artifacts changed between runs (-first +second):\n%s", diff)
	}
}

// =============================================================================
// Manifest
// =============================================================================

func TestManifestRoundTrip(t *testing.T) {
	m := baselineManifest()
	data, err := ManifestJSON(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"jobId": "0f8fad5b-d9cb-469f-a165-70867728950e"`)
	assert.Contains(t, string(data), `"pkgManager": "apt"`)

	got, err := ParseManifest(data)
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestManifestMissingFields(t *testing.T) {
	assert.Empty(t, baselineManifest().MissingFields())
	assert.Equal(t, []string{"baseImage", "pkgManager"}, Manifest{JobID: "x", Distro: "d", Mode: "m"}.MissingFields())
}

// =============================================================================
// Checksums
// =============================================================================

func TestChecksums(t *testing.T) {
	files := []NamedContent{
		{Name: "b.txt", Content: []byte("beta")},
		{Name: "a.txt", Content: []byte("alpha")},
	}
	sums, text := Checksums(files)
	sums2, text2 := Checksums(files)

	assert.Equal(t, text, text2)
	assert.Equal(t, sums, sums2)
	assert.Len(t, sums["a.txt"], 64)
	assert.NotEqual(t, sums["a.txt"], sums["b.txt"])
	assert.Equal(t, sums["b.txt"]+"  b.txt\n"+sums["a.txt"]+"  a.txt", text)
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", SHA256Hex([]byte("test")))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType(FileManifest))
	assert.Equal(t, "text/yaml", ContentType(FileCompose))
	assert.Equal(t, "text/markdown", ContentType(FileReadme))
	assert.Equal(t, "text/plain", ContentType(FileKernelConfig))
	assert.True(t, IsArtifact(FileChecksums))
	assert.False(t, IsArtifact("../etc/passwd"))
}
