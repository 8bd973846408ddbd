// Package validate runs rule based checks over the generated artifacts of a
// build. Results are advisory: they never stop a build, they only decide
// between complete and complete_with_warnings.
package validate

import (
	"fmt"
	"strings"

	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/kconfig"
)

// MinConfigLines is the smallest fragment the size check accepts
const MinConfigLines = 20

// options that a fragment must never switch off, whatever the mode
var mustNotDisable = []string{
	"CONFIG_NET",
	"CONFIG_INET",
	"CONFIG_EXT4_FS",
	"CONFIG_PROC_FS",
	"CONFIG_SYSFS",
	"CONFIG_PRINTK",
}

// TestResult is the outcome of one rule
type TestResult struct {
	Name    string `json:"name"`
	Pass    bool   `json:"pass"`
	Message string `json:"msg"`
}

// Summary counts passing rules
type Summary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// AllPassed reports whether every rule passed
func (s Summary) AllPassed() bool {
	return s.Passed == s.Total
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d", s.Passed, s.Total)
}

// Summarize counts results
func Summarize(results []TestResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Pass {
			s.Passed++
		}
	}
	return s
}

// Engine checks artifacts against a package catalog
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates an Engine for c
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

type recorder struct {
	results []TestResult
}

func (r *recorder) check(name string, pass bool, ok, fail string) {
	msg := fail
	if pass {
		msg = ok
	}
	r.results = append(r.results, TestResult{Name: name, Pass: pass, Message: msg})
}

// Run evaluates every rule in a fixed order
func (e *Engine) Run(m generate.Manifest, kernelConfig, script, dockerfile string) []TestResult {
	r := &recorder{}
	frag := kconfig.ParseFragment(kernelConfig)

	for _, opt := range mustNotDisable {
		disabled := frag.Disabled(opt)
		r.check("kernel_config_"+opt, !disabled,
			opt+" not disabled (defconfig default OK)",
			opt+" DISABLED, kernel may not boot")
	}

	if m.Mode == "server" {
		for _, opt := range []string{"CONFIG_DRM", "CONFIG_SND"} {
			off := frag.Disabled(opt) || !frag.Has(opt, "y")
			r.check("server_disable_"+opt, off,
				opt+" correctly disabled for server",
				opt+" should be disabled for server mode")
		}
		for _, opt := range []string{"CONFIG_NETFILTER", "CONFIG_CGROUPS"} {
			r.check("server_enable_"+opt, frag.Has(opt, "y"),
				opt+" enabled for server",
				opt+" should be enabled for server mode")
		}
	} else {
		for _, opt := range []string{"CONFIG_DRM", "CONFIG_SND"} {
			r.check("desktop_enable_"+opt, frag.Enabled(opt),
				opt+" enabled for desktop",
				opt+" should be enabled for desktop mode")
		}
	}

	r.check("kernel_localversion", frag.Mentions("CONFIG_LOCALVERSION"), "LOCALVERSION set", "LOCALVERSION missing")

	n := kconfig.ConfigLines(kernelConfig)
	sizeMsg := fmt.Sprintf("%d config lines (min %d)", n, MinConfigLines)
	r.check("kernel_config_size", n >= MinConfigLines, sizeMsg, sizeMsg)

	r.check("script_shebang", strings.HasPrefix(script, "#!/bin/bash"), "Has bash shebang", "Missing shebang")
	r.check("script_strict_mode", strings.Contains(script, "set -euo pipefail"), "Strict mode enabled", "Missing strict mode")
	r.check("script_base_image", m.BaseImage != "" && strings.Contains(script, m.BaseImage),
		"References "+m.BaseImage, "Missing base image "+m.BaseImage)
	r.check("script_kernel_build", strings.Contains(script, "make") && strings.Contains(script, "bzImage"),
		"Kernel compilation present", "Missing kernel compilation")
	r.check("script_iso_creation", containsAny(script, "grub-mkrescue", "xorriso", "mkisofs"),
		"ISO creation present", "Missing ISO creation step")
	r.check("script_checksum", strings.Contains(script, "sha256sum"), "SHA256 checksum present", "Missing checksum step")

	r.check("dockerfile_from", strings.Contains(dockerfile, "FROM "), "Has FROM directive", "Missing FROM")
	r.check("dockerfile_kernel_clone", strings.Contains(dockerfile, "git clone") && strings.Contains(dockerfile, "linux"),
		"Kernel source clone present", "Missing kernel clone")
	r.check("dockerfile_make", strings.Contains(dockerfile, "make") && containsAny(dockerfile, "bzImage", "olddefconfig"),
		"Kernel make present", "Missing make step")
	r.check("dockerfile_config_copy", strings.Contains(dockerfile, "COPY kernel.config"),
		"Kernel config COPY present", "Missing kernel config COPY")
	r.check("dockerfile_bootloader", containsAny(dockerfile, "grub", "xorriso"),
		"Bootloader/ISO step present", "Missing bootloader step")

	for _, o := range m.Overlays {
		pkgs, ok := e.catalog.Lookup(m.PackageManager, o)
		detail := "script-installed"
		if len(pkgs) > 0 {
			detail = strings.Join(pkgs, ", ")
		}
		r.check("pkg_resolve_"+o, ok, o+": "+detail, o+": unknown overlay")
	}

	r.check("distro_valid", e.catalog.ValidDistro(m.Distro),
		m.Distro+" is supported", m.Distro+" is not a supported distro")
	r.check("mode_valid", e.catalog.ValidMode(m.Mode),
		m.Mode+" is valid", m.Mode+" is not a valid mode")

	missing := m.MissingFields()
	r.check("manifest_complete", len(missing) == 0,
		"Manifest has all required fields", "Manifest missing fields: "+strings.Join(missing, ", "))

	buildFrom := "FROM " + generate.BuildImage
	r.check("cross_dockerfile_base", strings.Contains(dockerfile, buildFrom),
		"Dockerfile uses "+generate.BuildImage+" build container",
		"Dockerfile missing "+generate.BuildImage+" build base")

	return r.results
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
