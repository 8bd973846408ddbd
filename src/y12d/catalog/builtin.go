package catalog

// Builtin returns the catalog compiled into y12d. Each call returns a fresh
// copy so callers may modify it.
func Builtin() *Catalog {
	return &Catalog{
		DefaultPackageManager: "apt",
		DefaultBaseImage:      "debian:12-slim",
		Modes:                 []string{"desktop", "server"},
		Distros: []Distro{
			{ID: "nixos", Name: "NixOS", Tagline: "Reproducible, declarative", PackageManager: "nix", BaseImage: "nixos/nix:latest"},
			{ID: "debian", Name: "Debian", Tagline: "The universal operating system", PackageManager: "apt", BaseImage: "debian:12-slim"},
			{ID: "rocky", Name: "Rocky Linux", Tagline: "Enterprise RHEL-compatible", PackageManager: "dnf", BaseImage: "rockylinux:9"},
			{ID: "proxmox", Name: "Proxmox VE", Tagline: "Enterprise virtualization platform", PackageManager: "apt", BaseImage: "debian:12-slim"},
		},
		Packages: map[string]map[string][]string{
			// empty lists are installed by a script or an extra repository
			"apt": {
				"docker":      {"docker.io", "containerd"},
				"k3s":         {},
				"podman":      {"podman", "buildah", "skopeo"},
				"tailscale":   {},
				"caddy":       {"caddy"},
				"nginx":       {"nginx"},
				"postgres":    {"postgresql-16", "postgresql-client-16"},
				"redis":       {"redis-server"},
				"mysql":       {"mariadb-server", "mariadb-client"},
				"prometheus":  {"prometheus"},
				"grafana":     {},
				"netdata":     {},
				"neovim":      {"neovim"},
				"vscode":      {},
				"rustup":      {},
				"nodejs":      {"nodejs", "npm"},
				"golang":      {"golang-go"},
				"obs":         {"obs-studio"},
				"blender":     {"blender"},
				"openclaw":    {},
				"steam":       {},
				"lutris":      {"lutris"},
				"qemu":        {"qemu-system-x86", "qemu-utils", "ovmf"},
				"libvirt":     {"libvirt-daemon-system", "virtinst", "virt-manager"},
				"lxc":         {"lxc", "lxd-installer"},
				"tacticalrmm": {},
				"meshcentral": {"nodejs", "npm"},
				"ansible":     {"ansible"},
				"salt":        {"salt-minion"},
				"puppet":      {"puppet-agent"},
				"zabbix":      {"zabbix-agent2"},
				"kali":        {},
				"scientific":  {},
				"parrot":      {},
				"devuan":      {},
				"alma":        {},
			},
			"dnf": {
				"docker":      {"docker-ce", "docker-ce-cli", "containerd.io", "docker-compose-plugin"},
				"k3s":         {},
				"podman":      {"podman", "buildah", "skopeo"},
				"tailscale":   {},
				"caddy":       {"caddy"},
				"nginx":       {"nginx"},
				"postgres":    {"postgresql-server", "postgresql"},
				"redis":       {"redis"},
				"mysql":       {"mariadb-server", "mariadb"},
				"prometheus":  {},
				"grafana":     {},
				"netdata":     {},
				"neovim":      {"neovim"},
				"vscode":      {},
				"rustup":      {},
				"nodejs":      {"nodejs", "npm"},
				"golang":      {"golang"},
				"obs":         {},
				"blender":     {"blender"},
				"openclaw":    {},
				"steam":       {},
				"lutris":      {"lutris"},
				"qemu":        {"qemu-kvm", "qemu-img", "edk2-ovmf"},
				"libvirt":     {"libvirt", "virt-install", "virt-manager"},
				"lxc":         {"lxc", "lxc-templates"},
				"tacticalrmm": {},
				"meshcentral": {"nodejs", "npm"},
				"ansible":     {"ansible-core"},
				"salt":        {"salt-minion"},
				"puppet":      {"puppet-agent"},
				"zabbix":      {"zabbix-agent2"},
				"kali":        {},
				"scientific":  {},
				"parrot":      {},
				"devuan":      {},
				"alma":        {},
			},
			"nix": {
				"docker":      {"docker"},
				"k3s":         {"k3s"},
				"podman":      {"podman"},
				"tailscale":   {"tailscale"},
				"caddy":       {"caddy"},
				"nginx":       {"nginx"},
				"postgres":    {"postgresql_16"},
				"redis":       {"redis"},
				"mysql":       {"mariadb"},
				"prometheus":  {"prometheus"},
				"grafana":     {"grafana"},
				"netdata":     {"netdata"},
				"neovim":      {"neovim"},
				"vscode":      {"vscode"},
				"rustup":      {"rustup"},
				"nodejs":      {"nodejs_20"},
				"golang":      {"go"},
				"obs":         {"obs-studio"},
				"blender":     {"blender"},
				"openclaw":    {},
				"steam":       {"steam"},
				"lutris":      {"lutris"},
				"qemu":        {"qemu_full"},
				"libvirt":     {"libvirt", "virt-manager"},
				"lxc":         {"lxc", "lxd"},
				"tacticalrmm": {},
				"meshcentral": {"nodejs_20"},
				"ansible":     {"ansible"},
				"salt":        {"salt"},
				"puppet":      {},
				"zabbix":      {"zabbix-agent"},
				"kali":        {},
				"scientific":  {},
				"parrot":      {},
				"devuan":      {},
				"alma":        {},
			},
		},
	}
}
