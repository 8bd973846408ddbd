package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Resolve
// =============================================================================

func TestResolvePreservesOrderAndDuplicates(t *testing.T) {
	c := Builtin()

	got := c.Resolve("apt", []string{"nodejs", "docker", "tailscale", "meshcentral", "nosuch"})
	want := []string{"nodejs", "npm", "docker.io", "containerd", "nodejs", "npm"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveIsDeterministicForEveryDistro(t *testing.T) {
	c := Builtin()
	overlays := []string{"docker", "k3s", "postgres", "unknown-thing", "qemu"}

	for _, d := range c.Distros {
		t.Run(d.ID, func(t *testing.T) {
			mgr, _ := c.Target(d.ID)
			first := c.Resolve(mgr, overlays)
			for i := 0; i < 5; i++ {
				if diff := cmp.Diff(first, c.Resolve(mgr, overlays)); diff != "" {
					t.Fatalf("run %d differs:\n%s", i, diff)
				}
			}
		})
	}
}

func TestResolveNeverIncludesUnknownOverlays(t *testing.T) {
	c := &Catalog{Packages: map[string]map[string][]string{
		"apt": {"docker": {"docker.io"}},
	}}
	assert.Empty(t, c.Resolve("apt", []string{"missing"}))
	assert.Empty(t, c.Resolve("dnf", []string{"docker"}))
	assert.Equal(t, []string{"docker.io"}, c.Resolve("apt", []string{"missing", "docker"}))
}

// =============================================================================
// Lookup / Status
// =============================================================================

func TestStatusDistinguishesScriptFromUnknown(t *testing.T) {
	c := Builtin()

	tests := []struct {
		mgr, overlay string
		want         OverlayStatus
	}{
		{"apt", "docker", StatusNative},
		{"apt", "tailscale", StatusScript},
		{"apt", "not-an-overlay", StatusUnknown},
		{"nix", "tailscale", StatusNative},
		{"dnf", "prometheus", StatusScript},
		{"pacman", "docker", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.mgr+"/"+tt.overlay, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Status(tt.mgr, tt.overlay))
		})
	}

	pkgs, ok := c.Lookup("apt", "k3s")
	assert.True(t, ok)
	assert.Empty(t, pkgs)
}

func TestTargetDefaults(t *testing.T) {
	c := Builtin()

	mgr, img := c.Target("rocky")
	assert.Equal(t, "dnf", mgr)
	assert.Equal(t, "rockylinux:9", img)

	mgr, img = c.Target("gentoo")
	assert.Equal(t, "apt", mgr)
	assert.Equal(t, "debian:12-slim", img)
	assert.False(t, c.ValidDistro("gentoo"))
	assert.True(t, c.ValidMode("server"))
	assert.False(t, c.ValidMode("kiosk"))
}

func TestBuiltinIsIndependentCopy(t *testing.T) {
	a := Builtin()
	a.Packages["apt"]["docker"] = []string{"changed"}

	b := Builtin()
	assert.Equal(t, []string{"docker.io", "containerd"}, b.Packages["apt"]["docker"])
}

// =============================================================================
// Inspect
// =============================================================================

func TestInspect(t *testing.T) {
	r := Builtin().Inspect("nixos", []string{"docker", "openclaw", "bogus"}, []string{"htop"})

	assert.Equal(t, "nix", r.PackageManager)
	require.Len(t, r.Overlays, 3)
	assert.Equal(t, StatusNative, r.Overlays[0].Status)
	assert.Equal(t, []string{"docker"}, r.Overlays[0].Packages)
	assert.Equal(t, StatusScript, r.Overlays[1].Status)
	assert.Equal(t, StatusUnknown, r.Overlays[2].Status)
	require.Len(t, r.CustomSoftware, 1)
	assert.Equal(t, "nix-env -iA nixpkgs.htop", r.CustomSoftware[0].Command)
}

func TestInstallCommand(t *testing.T) {
	assert.Equal(t, "apt-get install htop", InstallCommand("apt", "htop"))
	assert.Equal(t, "dnf install htop", InstallCommand("dnf", "htop"))
	assert.Equal(t, "nix-env -iA nixpkgs.htop", InstallCommand("nix", "htop"))
}

// =============================================================================
// Load
// =============================================================================

func TestLoadMergesOverBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	content := `
[packages.apt]
docker = ["docker-ce"]
wireguard = ["wireguard-tools"]
newscript = []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"docker-ce"}, c.Resolve("apt", []string{"docker"}))
	assert.Equal(t, StatusNative, c.Status("apt", "wireguard"))
	assert.Equal(t, StatusScript, c.Status("apt", "newscript"))
	// untouched entries survive
	assert.Equal(t, StatusNative, c.Status("apt", "nginx"))
	assert.Len(t, c.Distros, 4)
}

func TestLoadRejectsBrokenCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	content := `
[[distros]]
id = "arch"
pkg_manager = "pacman"
base_image = "archlinux:latest"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package manager")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
