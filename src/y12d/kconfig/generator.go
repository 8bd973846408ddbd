// Package kconfig produces kernel configuration fragments for y12 builds.
//
// A fragment is merged on top of the x86_64 defconfig, so it only lists the
// options that differ. Fragments come from a completion service when one is
// configured and from FallbackConfig otherwise, or when the service fails.
package kconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bitswalk/y12/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the kconfig package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// SystemPrompt instructs the completion service
const SystemPrompt = `You generate Linux kernel .config FRAGMENTS. The fragment is merged on top of the x86_64 defconfig with scripts/kconfig/merge_config.sh, so only emit options that differ from defconfig.

Output rules:
- Config lines only. No prose, no markdown, no explanations.
- Enable with CONFIG_NAME=y or CONFIG_NAME=m.
- Disable with "# CONFIG_NAME is not set".
- Always include CONFIG_LOCALVERSION="-y12-custom".
- Never disable CONFIG_NET, CONFIG_INET, CONFIG_EXT4_FS, CONFIG_PROC_FS, CONFIG_SYSFS or CONFIG_PRINTK.

Mode rules:
- server: disable CONFIG_DRM, CONFIG_SND, CONFIG_WLAN and CONFIG_BT. Enable CONFIG_NETFILTER, CONFIG_CGROUPS, CONFIG_NAMESPACES, CONFIG_NET_NS, CONFIG_VETH, CONFIG_BRIDGE, CONFIG_NF_NAT and CONFIG_OVERLAY_FS.
- desktop: enable CONFIG_DRM and CONFIG_SND, the GPU driver matching the hardware (CONFIG_DRM_I915 for Intel, CONFIG_DRM_AMDGPU for AMD, CONFIG_DRM_NOUVEAU for NVIDIA), CONFIG_SND_HDA_INTEL, CONFIG_WLAN, CONFIG_BT and CONFIG_INPUT_EVDEV.

PCI vendor hints: 8086 Intel (i915, e1000e, iwlwifi), 1002 AMD (amdgpu), 10de NVIDIA (nouveau), 14e4 Broadcom (tg3, brcmfmac), 168c Qualcomm (ath9k, ath10k), 10ec Realtek (r8169, rtw88).
Enable the CONFIG_ option for each detected module. Aim for 30 to 60 lines.`

const (
	DefaultMaxTokens = 4096
	DefaultTimeout   = 60 * time.Second
)

// Input describes the machine and build a fragment is generated for
type Input struct {
	HardwareRaw string
	Distro      string
	Mode        string
	Modules     []string
}

// Config holds generator settings
type Config struct {
	MaxTokens int
	Timeout   time.Duration
}

// Generator produces fragments, preferring the completer when present
type Generator struct {
	completer Completer
	cfg       Config
}

// NewGenerator creates a Generator. A nil completer means every call takes
// the rule based path.
func NewGenerator(c Completer, cfg Config) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Generator{completer: c, cfg: cfg}
}

// Enabled reports whether a completion service is configured
func (g *Generator) Enabled() bool {
	return g.completer != nil
}

// Completer returns the configured completer, or nil
func (g *Generator) Completer() Completer {
	return g.completer
}

// Generate never fails: a missing completer or a failed call both yield a
// Fallback result.
func (g *Generator) Generate(ctx context.Context, in Input) Result {
	if g.completer == nil {
		log.Debug("No completion service configured, using fallback kernel config", "mode", in.Mode)
		return Fallback{Content: FallbackConfig(in.Mode, in.Modules)}
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	text, err := g.completer.Complete(ctx, CompletionRequest{
		System:    SystemPrompt,
		Messages:  []Message{{Role: "user", Content: UserPrompt(in)}},
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		log.Warn("Kernel config completion failed, using fallback", "error", err, "mode", in.Mode)
		return Fallback{Reason: err.Error(), Content: FallbackConfig(in.Mode, in.Modules)}
	}

	log.Info("Kernel config generated", "model", g.completer.Model(), "lines", LineCount(text))
	return Generated{Model: g.completer.Model(), Content: text}
}

// UserPrompt renders the single user turn for in
func UserPrompt(in Input) string {
	hw := strings.TrimSpace(in.HardwareRaw)
	if hw == "" {
		hw = "No hardware info provided, use generic defaults"
	}
	modules := strings.Join(in.Modules, ", ")
	if modules == "" {
		modules = "none"
	}
	return fmt.Sprintf("Hardware info:\n%s\n\nDistro: %s\nMode: %s\nDetected modules: %s\n\nGenerate the kernel .config fragment.",
		hw, in.Distro, in.Mode, modules)
}
