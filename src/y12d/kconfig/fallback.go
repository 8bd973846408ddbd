package kconfig

import "strings"

// LocalVersion is appended to the kernel release of every y12 build
const LocalVersion = `CONFIG_LOCALVERSION="-y12-custom"`

var serverOptions = Fragment{
	{"CONFIG_DRM", "n"},
	{"CONFIG_SND", "n"},
	{"CONFIG_WLAN", "n"},
	{"CONFIG_BT", "n"},
	{"CONFIG_NETFILTER", "y"},
	{"CONFIG_CGROUPS", "y"},
	{"CONFIG_NAMESPACES", "y"},
	{"CONFIG_NET_NS", "y"},
	{"CONFIG_VETH", "y"},
	{"CONFIG_BRIDGE", "y"},
	{"CONFIG_NF_NAT", "y"},
	{"CONFIG_OVERLAY_FS", "y"},
}

var desktopOptions = Fragment{
	{"CONFIG_DRM", "y"},
	{"CONFIG_DRM_I915", "m"},
	{"CONFIG_DRM_AMDGPU", "m"},
	{"CONFIG_DRM_NOUVEAU", "m"},
	{"CONFIG_SND", "y"},
	{"CONFIG_SND_HDA_INTEL", "m"},
	{"CONFIG_WLAN", "y"},
	{"CONFIG_BT", "y"},
	{"CONFIG_INPUT_EVDEV", "y"},
}

// FallbackConfig builds a fragment from rules alone. The output depends only
// on mode and modules.
func FallbackConfig(mode string, modules []string) string {
	lines := []string{LocalVersion}

	opts := desktopOptions
	if mode == "server" {
		opts = serverOptions
	}
	for _, o := range opts {
		lines = append(lines, o.String())
	}

	for _, m := range modules {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		lines = append(lines, Option{Key: "CONFIG_" + strings.ToUpper(m), Value: "m"}.String())
	}
	return strings.Join(lines, "\n")
}
