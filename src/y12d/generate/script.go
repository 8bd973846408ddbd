package generate

import (
	"fmt"
	"strings"
	"time"
)

// Pinned kernel source used by every artifact
const (
	KernelRepo = "https://git.kernel.org/pub/scm/linux/kernel/git/stable/linux.git"
	KernelRef  = "v6.6"
)

// scriptOverlaySteps installs overlays that have no package mapping.
// Overlays missing here are skipped.
var scriptOverlaySteps = map[string][]string{
	"k3s": {
		`echo "[ 35%] Installing K3s..."`,
		`docker exec "$CONTAINER" bash -c "curl -sfL https://get.k3s.io | INSTALL_K3S_SKIP_START=true sh -"`,
	},
	"tailscale": {
		`echo "[ 35%] Installing Tailscale..."`,
		`docker exec "$CONTAINER" bash -c "curl -fsSL https://tailscale.com/install.sh | sh"`,
	},
	"rustup": {
		`echo "[ 35%] Installing Rust toolchain..."`,
		`docker exec "$CONTAINER" bash -c "curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y"`,
	},
	"netdata": {
		`echo "[ 35%] Installing Netdata..."`,
		`docker exec "$CONTAINER" bash -c "curl -fsSL https://get.netdata.cloud/kickstart.sh | sh -s -- --dont-wait --dont-start-it"`,
	},
	"grafana": {
		`echo "[ 35%] Adding Grafana repository..."`,
		`docker exec "$CONTAINER" bash -c "mkdir -p /etc/apt/keyrings && curl -fsSL https://apt.grafana.com/gpg.key | gpg --dearmor -o /etc/apt/keyrings/grafana.gpg && echo 'deb [signed-by=/etc/apt/keyrings/grafana.gpg] https://apt.grafana.com stable main' > /etc/apt/sources.list.d/grafana.list && apt-get update && apt-get install -y grafana" || echo "WARN: grafana install failed"`,
	},
	"tacticalrmm": {
		`echo "[ 35%] Preparing Tactical RMM agent..."`,
		`docker exec "$CONTAINER" bash -c "mkdir -p /opt/tacticalrmm && echo 'Tactical RMM agent placeholder, configure the mesh URL at first boot' > /opt/tacticalrmm/README"`,
	},
}

type lineWriter struct {
	lines []string
}

func (w *lineWriter) add(lines ...string) {
	w.lines = append(w.lines, lines...)
}

func (w *lineWriter) addf(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *lineWriter) String() string {
	return strings.Join(w.lines, "\n") + "\n"
}

// BuildScript renders build.sh. scriptOverlays lists the manifest overlays
// whose package list is empty; the caller resolves them from its catalog.
// The base image is written once, into BASE_IMAGE, and every later step
// refers to the variable.
func BuildScript(m Manifest, scriptOverlays []string) string {
	w := &lineWriter{}

	w.add("#!/bin/bash", "set -euo pipefail")
	w.add("# ==================================================================")
	w.addf("# y12 ISO build script, job %s", m.JobID)
	w.addf("# Distro: %s | Mode: %s | AI: %t", m.Distro, m.Mode, m.AIMode)
	w.addf("# Generated: %s", m.Created.UTC().Format(time.RFC3339))
	w.add("# Run: chmod +x build.sh && ./build.sh")
	w.add("# Requires Docker; Dockerfile and docker-compose.yml are alternatives")
	w.add("# ==================================================================")
	w.add("")
	w.addf(`export JOB_ID="%s"`, m.JobID)
	w.addf(`export DISTRO="%s"`, m.Distro)
	w.addf(`export MODE="%s"`, m.Mode)
	w.addf(`export BASE_IMAGE="%s"`, m.BaseImage)
	w.addf(`export ISO_NAME="%s"`, m.ISOName())
	w.addf(`CONTAINER="y12-build-%s"`, m.ShortID())
	w.add("")
	w.add(`cleanup() { docker rm -f "$CONTAINER" >/dev/null 2>&1 || true; }`, "trap cleanup EXIT", "")

	w.add("# --- Phase 1: pull base image ---")
	w.add(`echo "[  5%] Pulling $BASE_IMAGE..."`, `docker pull "$BASE_IMAGE"`, "")

	w.add("# --- Phase 2: build container ---")
	w.add(`echo "[ 10%] Creating build container..."`)
	w.add(`docker run -d --name "$CONTAINER" --privileged "$BASE_IMAGE" sleep infinity`, "")

	w.add("# --- Phase 3: build dependencies ---")
	w.add(`echo "[ 15%] Installing build dependencies..."`)
	switch m.PackageManager {
	case "dnf":
		w.add(`docker exec "$CONTAINER" bash -c "dnf install -y gcc make ncurses-devel bison flex openssl-devel \`,
			`  elfutils-libelf-devel bc git wget cpio kmod xorriso grub2-tools grub2-efi-x64 \`,
			`  mtools dosfstools squashfs-tools dracut"`)
	case "nix":
		w.add(`docker exec "$CONTAINER" bash -c "nix-env -iA nixpkgs.gcc nixpkgs.gnumake nixpkgs.ncurses nixpkgs.bison \`,
			`  nixpkgs.flex nixpkgs.openssl nixpkgs.elfutils nixpkgs.bc nixpkgs.git nixpkgs.cpio nixpkgs.kmod \`,
			`  nixpkgs.xorriso nixpkgs.grub2 nixpkgs.mtools nixpkgs.dosfstools nixpkgs.squashfsTools"`)
	default:
		w.add(`docker exec "$CONTAINER" bash -c "apt-get update -qq && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends \`,
			`  build-essential libncurses-dev bison flex libssl-dev libelf-dev bc git wget \`,
			`  cpio kmod xorriso grub-pc-bin grub-efi-amd64-bin grub-common mtools dosfstools \`,
			`  squashfs-tools ca-certificates initramfs-tools linux-base"`)
	}
	w.add("")

	if len(m.Packages) > 0 {
		w.add("# --- Phase 4: overlay packages ---")
		w.addf(`echo "[ 20%%] Installing %d overlay packages via %s..."`, len(m.Packages), m.PackageManager)
		switch m.PackageManager {
		case "dnf":
			w.addf(`docker exec "$CONTAINER" dnf install -y %s`, strings.Join(m.Packages, " "))
		case "nix":
			for _, p := range m.Packages {
				w.addf(`docker exec "$CONTAINER" nix-env -iA nixpkgs.%s`, p)
			}
		default:
			w.addf(`docker exec "$CONTAINER" bash -c "DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends %s"`, strings.Join(m.Packages, " "))
		}
		w.add("")
	}

	if len(m.CustomSoftware) > 0 {
		w.add("# --- Phase 5: custom software ---")
		for _, sw := range m.CustomSoftware {
			w.addf(`echo "[ 30%%] Installing custom: %s"`, sw)
			w.addf(`docker exec "$CONTAINER" bash -c "%s" || echo "WARN: %s not available in repos"`, customInstall(m.PackageManager, sw), sw)
		}
		w.add("")
	}

	var steps []string
	for _, o := range scriptOverlays {
		steps = append(steps, scriptOverlaySteps[o]...)
	}
	if len(steps) > 0 {
		w.add("# --- Phase 6: script-installed overlays ---")
		w.add(steps...)
		w.add("")
	}

	w.add("# --- Phase 7: kernel ---")
	w.addf(`echo "[ 40%%] Cloning Linux kernel %s..."`, KernelRef)
	w.addf(`docker exec "$CONTAINER" bash -c "cd /usr/src && git clone --depth 1 --branch %s %s linux"`, KernelRef, KernelRepo)
	w.add("")
	w.add(`echo "[ 45%] Applying kernel config fragment..."`)
	w.add(`SCRIPT_DIR="$(cd "$(dirname "$0")" && pwd)"`)
	w.add(`if [ -f "$SCRIPT_DIR/kernel.config" ]; then`)
	w.add(`  docker exec "$CONTAINER" bash -c "cd /usr/src/linux && make defconfig"`)
	w.add(`  docker cp "$SCRIPT_DIR/kernel.config" "$CONTAINER":/tmp/y12.config`)
	w.add(`  docker exec "$CONTAINER" bash -c "cd /usr/src/linux && scripts/kconfig/merge_config.sh -m .config /tmp/y12.config && make olddefconfig"`)
	w.add(`else`)
	w.add(`  echo "WARN: kernel.config not found, using defconfig"`)
	w.add(`  docker exec "$CONTAINER" bash -c "cd /usr/src/linux && make defconfig"`)
	w.add(`fi`, "")

	if m.AIMode && len(m.Modules) > 0 {
		w.addf(`echo "[ 50%%] Enabling %d hardware-detected modules..."`, len(m.Modules))
		for _, mod := range m.Modules {
			w.addf(`docker exec "$CONTAINER" bash -c "cd /usr/src/linux && scripts/config --enable %s" 2>/dev/null || true`, strings.ToUpper(mod))
		}
		if m.Mode == "server" {
			w.add(`echo "[ 52%] Disabling desktop subsystems for server mode..."`)
			w.add(`docker exec "$CONTAINER" bash -c "cd /usr/src/linux && scripts/config --disable DRM --disable SND --disable WLAN --disable BT --disable INPUT_JOYSTICK --disable MEDIA_SUPPORT"`)
		}
		w.add("")
	}

	w.add(`echo "[ 55%] Compiling kernel (this takes 10-30 minutes)..."`)
	w.add(`docker exec "$CONTAINER" bash -c "cd /usr/src/linux && make -j\$(nproc) bzImage modules 2>&1 | tail -20"`, "")
	w.add(`echo "[ 70%] Installing kernel modules..."`)
	w.add(`docker exec "$CONTAINER" bash -c "cd /usr/src/linux && make modules_install INSTALL_MOD_PATH=/rootfs"`, "")

	w.add("# --- Phase 8: root filesystem ---")
	w.add(`echo "[ 75%] Assembling root filesystem..."`)
	w.add(`docker exec "$CONTAINER" bash -c "mkdir -p /rootfs/{boot,bin,sbin,etc,proc,sys,dev,tmp,var,usr,run,lib,lib64}"`)
	w.add(`docker exec "$CONTAINER" bash -c "cp /usr/src/linux/arch/x86/boot/bzImage /rootfs/boot/vmlinuz-y12"`, "")
	w.add(`echo "[ 78%] Creating initramfs..."`)
	w.add(`docker exec "$CONTAINER" bash -c "cd /rootfs && find . -print0 | cpio --null -o -H newc 2>/dev/null | gzip -9 > /boot-initrd.gz"`, "")

	w.add("# --- Phase 9: bootable image ---")
	w.add(`echo "[ 85%] Building ISO filesystem..."`)
	w.add(`docker exec "$CONTAINER" bash -c "mkdir -p /iso/{boot/grub,live,EFI/BOOT}"`)
	w.add(`docker exec "$CONTAINER" bash -c "cp /rootfs/boot/vmlinuz-y12 /iso/boot/vmlinuz && cp /boot-initrd.gz /iso/boot/initrd.gz"`)
	w.add(`docker exec -i "$CONTAINER" bash -c 'cat > /iso/boot/grub/grub.cfg' <<GRUBEOF`)
	w.add(grubConfig(m, "rw quiet")...)
	w.add("GRUBEOF", "")
	w.add(`echo "[ 90%] Creating bootable ISO with GRUB..."`)
	w.add(`docker exec "$CONTAINER" bash -c "grub-mkrescue -o /output.iso /iso -- -volid Y12_CUSTOM || xorriso -as mkisofs -R -J -V Y12_CUSTOM -b boot/grub/i386-pc/eltorito.img -no-emul-boot -boot-load-size 4 -boot-info-table -o /output.iso /iso"`, "")

	w.add("# --- Phase 10: verify and export ---")
	w.add(`echo "[ 95%] Verifying ISO..."`)
	w.add(`docker exec "$CONTAINER" bash -c "ls -lh /output.iso && sha256sum /output.iso | tee /output.iso.sha256"`, "")
	w.add(`echo "[100%] Exporting ISO..."`)
	w.add("mkdir -p ./output")
	w.add(`docker cp "$CONTAINER":/output.iso "./output/$ISO_NAME.iso"`)
	w.add(`docker cp "$CONTAINER":/output.iso.sha256 "./output/$ISO_NAME.iso.sha256"`)
	w.add(`echo ""`)
	w.add(`echo "BUILD COMPLETE"`)
	w.add(`echo "  ISO: ./output/$ISO_NAME.iso"`)
	w.add(`echo "  SHA: ./output/$ISO_NAME.iso.sha256"`)
	w.add(`echo "  Test in a VM: qemu-system-x86_64 -cdrom ./output/$ISO_NAME.iso -m 2G -boot d"`)

	return w.String()
}

func customInstall(pkgManager, name string) string {
	switch pkgManager {
	case "dnf":
		return "dnf install -y " + name
	case "nix":
		return "nix-env -iA nixpkgs." + name
	default:
		return "DEBIAN_FRONTEND=noninteractive apt-get install -y " + name
	}
}

func grubConfig(m Manifest, kernelArgs string) []string {
	title := fmt.Sprintf("Y12 Custom Linux (%s %s)", m.Distro, m.Mode)
	return []string{
		"set timeout=5",
		"set default=0",
		"",
		fmt.Sprintf(`menuentry "%s" {`, title),
		"  linux /boot/vmlinuz root=/dev/ram0 " + kernelArgs,
		"  initrd /boot/initrd.gz",
		"}",
		"",
		fmt.Sprintf(`menuentry "%s, verbose" {`, title),
		"  linux /boot/vmlinuz root=/dev/ram0 rw loglevel=7",
		"  initrd /boot/initrd.gz",
		"}",
	}
}
