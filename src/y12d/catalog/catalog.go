// Package catalog maps distributions and overlays to concrete package names.
//
// A Catalog is plain data. It is built once at startup, either from the
// builtin tables or from a TOML file, and handed to every component that
// needs it. Nothing in this package keeps global state.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/bitswalk/y12/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the catalog package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Distro describes one supported target distribution
type Distro struct {
	ID             string `toml:"id" json:"id"`
	Name           string `toml:"name" json:"name"`
	Tagline        string `toml:"tagline" json:"tagline"`
	PackageManager string `toml:"pkg_manager" json:"pkg_manager"`
	BaseImage      string `toml:"base_image" json:"base_image"`
}

// Catalog holds the distro table and the per package manager overlay maps
type Catalog struct {
	DefaultPackageManager string                         `toml:"default_pkg_manager"`
	DefaultBaseImage      string                         `toml:"default_base_image"`
	Modes                 []string                       `toml:"modes"`
	Distros               []Distro                       `toml:"distros"`
	Packages              map[string]map[string][]string `toml:"packages"`
}

// OverlayStatus classifies how an overlay gets installed
type OverlayStatus string

const (
	// StatusNative overlays install through the package manager
	StatusNative OverlayStatus = "native"
	// StatusScript overlays are mapped to an empty list
	StatusScript OverlayStatus = "script"
	// StatusUnknown overlays have no mapping at all
	StatusUnknown OverlayStatus = "unknown"
)

// Load reads a TOML catalog from path and layers it over the builtin one.
// Distros listed in the file replace the builtin table. Overlay entries are
// merged per package manager.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var file Catalog
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	c := Builtin()
	c.merge(&file)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}

	log.Info("Package catalog loaded", "path", path, "distros", len(c.Distros), "managers", len(c.Packages))
	return c, nil
}

func (c *Catalog) merge(o *Catalog) {
	if o.DefaultPackageManager != "" {
		c.DefaultPackageManager = o.DefaultPackageManager
	}
	if o.DefaultBaseImage != "" {
		c.DefaultBaseImage = o.DefaultBaseImage
	}
	if len(o.Modes) > 0 {
		c.Modes = o.Modes
	}
	if len(o.Distros) > 0 {
		c.Distros = o.Distros
	}
	for mgr, overlays := range o.Packages {
		if c.Packages[mgr] == nil {
			c.Packages[mgr] = make(map[string][]string, len(overlays))
		}
		for id, pkgs := range overlays {
			if pkgs == nil {
				pkgs = []string{}
			}
			c.Packages[mgr][id] = pkgs
		}
	}
}

// Validate checks that every distro points at a known package manager
func (c *Catalog) Validate() error {
	if len(c.Distros) == 0 {
		return fmt.Errorf("no distros defined")
	}
	seen := make(map[string]bool, len(c.Distros))
	for _, d := range c.Distros {
		if d.ID == "" {
			return fmt.Errorf("distro with empty id")
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate distro %q", d.ID)
		}
		seen[d.ID] = true
		if d.BaseImage == "" {
			return fmt.Errorf("distro %q has no base image", d.ID)
		}
		if _, ok := c.Packages[d.PackageManager]; !ok {
			return fmt.Errorf("distro %q uses unknown package manager %q", d.ID, d.PackageManager)
		}
	}
	return nil
}

// Distro returns the distro with the given id
func (c *Catalog) Distro(id string) (Distro, bool) {
	for _, d := range c.Distros {
		if d.ID == id {
			return d, true
		}
	}
	return Distro{}, false
}

// Target returns the package manager and base image for a distro. Unknown
// distros get the catalog defaults; the validation suite reports them.
func (c *Catalog) Target(distro string) (pkgManager, baseImage string) {
	if d, ok := c.Distro(distro); ok {
		return d.PackageManager, d.BaseImage
	}
	return c.DefaultPackageManager, c.DefaultBaseImage
}

// ValidDistro reports whether distro is in the table
func (c *Catalog) ValidDistro(distro string) bool {
	_, ok := c.Distro(distro)
	return ok
}

// ValidMode reports whether mode is a supported build mode
func (c *Catalog) ValidMode(mode string) bool {
	for _, m := range c.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Managers returns the package manager ids in sorted order
func (c *Catalog) Managers() []string {
	out := make([]string, 0, len(c.Packages))
	for mgr := range c.Packages {
		out = append(out, mgr)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the package list of an overlay. ok is false when the
// overlay is not mapped for pkgManager, which is different from a mapped
// empty list.
func (c *Catalog) Lookup(pkgManager, overlay string) (pkgs []string, ok bool) {
	pkgs, ok = c.Packages[pkgManager][overlay]
	return pkgs, ok
}

// Status classifies an overlay for pkgManager
func (c *Catalog) Status(pkgManager, overlay string) OverlayStatus {
	pkgs, ok := c.Lookup(pkgManager, overlay)
	switch {
	case !ok:
		return StatusUnknown
	case len(pkgs) == 0:
		return StatusScript
	default:
		return StatusNative
	}
}

// Resolve expands overlays into packages. Input order is kept and duplicates
// are kept too: two overlays sharing a package list it twice. Unknown and
// script-installed overlays add nothing.
func (c *Catalog) Resolve(pkgManager string, overlays []string) []string {
	out := []string{}
	for _, o := range overlays {
		pkgs, _ := c.Lookup(pkgManager, o)
		out = append(out, pkgs...)
	}
	return out
}

// ScriptOverlays returns, in order, the overlays mapped to an empty list
func (c *Catalog) ScriptOverlays(pkgManager string, overlays []string) []string {
	var out []string
	for _, o := range overlays {
		if c.Status(pkgManager, o) == StatusScript {
			out = append(out, o)
		}
	}
	return out
}

// InstallCommand predicts the command used for a custom package
func InstallCommand(pkgManager, name string) string {
	switch pkgManager {
	case "nix":
		return "nix-env -iA nixpkgs." + name
	case "dnf":
		return "dnf install " + name
	default:
		return "apt-get install " + name
	}
}
