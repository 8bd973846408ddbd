package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/kconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseline() (generate.Manifest, string, string, string) {
	c := catalog.Builtin()
	m := generate.Manifest{
		JobID:          "5b7c2a10-4f3e-4d8a-9a2b-000000000001",
		Distro:         "debian",
		Mode:           "server",
		BaseImage:      "debian:12-slim",
		PackageManager: "apt",
		Overlays:       []string{"docker", "tailscale"},
		Modules:        []string{"i915", "nvme"},
		Created:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	m.Packages = c.Resolve(m.PackageManager, m.Overlays)
	cfg := kconfig.FallbackConfig(m.Mode, m.Modules)
	script := generate.BuildScript(m, c.ScriptOverlays(m.PackageManager, m.Overlays))
	return m, cfg, script, generate.Dockerfile(m)
}

func byName(results []TestResult) map[string]TestResult {
	out := make(map[string]TestResult, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

func TestBaselinePasses(t *testing.T) {
	m, cfg, script, df := baseline()
	results := NewEngine(catalog.Builtin()).Run(m, cfg, script, df)
	sum := Summarize(results)

	assert.Equal(t, 29, sum.Total)
	assert.GreaterOrEqual(t, sum.Passed, 15)

	// the rule based fragment is shorter than the size check wants
	got := byName(results)
	assert.False(t, got["kernel_config_size"].Pass)
	assert.Equal(t, "15 config lines (min 20)", got["kernel_config_size"].Message)
	for _, r := range results {
		if r.Name != "kernel_config_size" {
			assert.True(t, r.Pass, "%s: %s", r.Name, r.Message)
		}
	}
	assert.Equal(t, "tailscale: script-installed", got["pkg_resolve_tailscale"].Message)
	assert.Equal(t, "docker: docker.io, containerd", got["pkg_resolve_docker"].Message)
	assert.False(t, sum.AllPassed())
}

func TestOrderIsStable(t *testing.T) {
	m, cfg, script, df := baseline()
	results := NewEngine(catalog.Builtin()).Run(m, cfg, script, df)

	require.GreaterOrEqual(t, len(results), 7)
	assert.Equal(t, "kernel_config_CONFIG_NET", results[0].Name)
	assert.Equal(t, "kernel_config_CONFIG_PRINTK", results[5].Name)
	assert.Equal(t, "server_disable_CONFIG_DRM", results[6].Name)
	assert.Equal(t, "cross_dockerfile_base", results[len(results)-1].Name)
}

func TestCriticalOptionsDisabled(t *testing.T) {
	m, cfg, script, df := baseline()
	cfg += "\n# CONFIG_NET is not set\nCONFIG_EXT4_FS=n"

	got := byName(NewEngine(catalog.Builtin()).Run(m, cfg, script, df))
	assert.False(t, got["kernel_config_CONFIG_NET"].Pass)
	assert.False(t, got["kernel_config_CONFIG_EXT4_FS"].Pass)
	assert.True(t, got["kernel_config_CONFIG_INET"].Pass)
}

func TestDesktopRules(t *testing.T) {
	m, _, script, df := baseline()
	m.Mode = "desktop"

	e := NewEngine(catalog.Builtin())
	got := byName(e.Run(m, kconfig.FallbackConfig("desktop", nil), script, df))
	assert.True(t, got["desktop_enable_CONFIG_DRM"].Pass)
	assert.True(t, got["desktop_enable_CONFIG_SND"].Pass)
	_, hasServer := got["server_disable_CONFIG_DRM"]
	assert.False(t, hasServer)

	got = byName(e.Run(m, "CONFIG_LOCALVERSION=\"-x\"\n# CONFIG_DRM is not set", script, df))
	assert.False(t, got["desktop_enable_CONFIG_DRM"].Pass)
}

func TestServerRejectsBuiltinDRM(t *testing.T) {
	m, _, script, df := baseline()
	got := byName(NewEngine(catalog.Builtin()).Run(m, "CONFIG_DRM=y\nCONFIG_NETFILTER=m", script, df))

	assert.False(t, got["server_disable_CONFIG_DRM"].Pass)
	assert.True(t, got["server_disable_CONFIG_SND"].Pass)
	assert.False(t, got["server_enable_CONFIG_NETFILTER"].Pass)
	assert.False(t, got["kernel_localversion"].Pass)
}

func TestUnknownOverlayAndInvalidInputs(t *testing.T) {
	m, cfg, script, df := baseline()
	m.Overlays = append(m.Overlays, "made-up")
	m.Distro = "gentoo"
	m.Mode = "kiosk"
	m.PackageManager = ""

	got := byName(NewEngine(catalog.Builtin()).Run(m, cfg, script, df))
	assert.False(t, got["pkg_resolve_made-up"].Pass)
	assert.Equal(t, "made-up: unknown overlay", got["pkg_resolve_made-up"].Message)
	assert.False(t, got["distro_valid"].Pass)
	assert.False(t, got["mode_valid"].Pass)
	assert.False(t, got["manifest_complete"].Pass)
	assert.True(t, strings.HasSuffix(got["manifest_complete"].Message, "pkgManager"))
}

func TestBrokenArtifacts(t *testing.T) {
	m, cfg, _, _ := baseline()
	got := byName(NewEngine(catalog.Builtin()).Run(m, cfg, "echo hi", "FROM alpine"))

	for _, name := range []string{"script_shebang", "script_strict_mode", "script_base_image", "script_kernel_build",
		"script_iso_creation", "script_checksum", "dockerfile_kernel_clone", "dockerfile_make",
		"dockerfile_config_copy", "dockerfile_bootloader", "cross_dockerfile_base"} {
		assert.False(t, got[name].Pass, name)
	}
	assert.True(t, got["dockerfile_from"].Pass)
}
