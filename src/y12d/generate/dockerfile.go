package generate

import "strings"

// BuildImage is the build environment for every target distro. The target
// only decides what goes into the root filesystem.
const BuildImage = "debian:12"

var buildDependencies = []string{
	"build-essential", "libncurses-dev", "bison", "flex", "libssl-dev", "libelf-dev",
	"bc", "git", "wget", "cpio", "kmod", "xorriso", "grub-pc-bin", "grub-efi-amd64-bin", "grub-common",
	"mtools", "dosfstools", "squashfs-tools", "ca-certificates", "debootstrap",
}

// Dockerfile renders the multi-stage image definition for m
func Dockerfile(m Manifest) string {
	w := &lineWriter{}

	w.addf("FROM %s AS builder", BuildImage)
	w.add("")
	w.add("# Build dependencies, identical for all target distros")
	w.add(`RUN apt-get update && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends \`)
	for i := 0; i < len(buildDependencies); i += 6 {
		end := i + 6
		if end > len(buildDependencies) {
			end = len(buildDependencies)
		}
		w.addf(`    %s \`, strings.Join(buildDependencies[i:end], " "))
	}
	w.add("    && rm -rf /var/lib/apt/lists/*", "")

	w.addf("# Kernel source %s, retried for transient mirror failures", KernelRef)
	w.addf("RUN for i in 1 2 3; do git clone --depth 1 --branch %s %s /usr/src/linux && break || sleep 10; done", KernelRef, KernelRepo)
	w.add("")
	w.add("# x86_64 defconfig first, then the y12 fragment on top")
	w.add("RUN cd /usr/src/linux && make defconfig")
	w.add("COPY kernel.config /tmp/y12.config")
	w.add("RUN cd /usr/src/linux && scripts/kconfig/merge_config.sh .config /tmp/y12.config")
	w.add("")
	w.add("RUN cd /usr/src/linux && make -j$(nproc) bzImage modules 2>&1 | tail -5")
	w.add("")
	w.add("RUN mkdir -p /rootfs/boot /rootfs/lib/modules")
	w.add("RUN cp /usr/src/linux/arch/x86/boot/bzImage /rootfs/boot/vmlinuz-y12")
	w.add("RUN cd /usr/src/linux && make modules_install INSTALL_MOD_PATH=/rootfs")
	w.add("")

	all := append(append([]string{}, m.Packages...), m.CustomSoftware...)
	if len(all) > 0 {
		w.add("# Overlay and custom packages, best effort per package")
		w.addf(`RUN apt-get update && for p in %s; do DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends "$p" || echo "WARN: $p not installed"; done`, strings.Join(all, " "))
		w.add("RUN rm -rf /var/lib/apt/lists/*", "")
	}

	w.add("RUN mkdir -p /iso/boot/grub /iso/live")
	w.add("RUN cp /rootfs/boot/vmlinuz-y12 /iso/boot/vmlinuz")
	w.add("RUN cd /rootfs && find . | cpio -o -H newc | gzip > /iso/boot/initrd.gz")
	w.add("")
	w.add("# GRUB config for BIOS and EFI boot")
	w.addf(`RUN printf '%s\n' > /iso/boot/grub/grub.cfg`, strings.Join(grubConfig(m, "console=tty0 console=ttyS0,115200"), `\n`))
	w.add("")
	w.add("RUN grub-mkrescue -o /output.iso /iso 2>/dev/null || xorriso -as mkisofs -R -J -b boot/grub/i386-pc/eltorito.img -no-emul-boot -boot-load-size 4 -boot-info-table -o /output.iso /iso")
	w.add("RUN sha256sum /output.iso > /output.iso.sha256")
	w.add("")
	w.add(`CMD ["cat", "/output.iso"]`)

	return w.String()
}
