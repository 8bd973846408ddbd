package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/kconfig"
	"github.com/bitswalk/y12/src/y12d/storage"
	"github.com/bitswalk/y12/src/y12d/validate"
)

// SelfTestReport is the outcome of SelfTest
type SelfTestReport struct {
	Passed int                   `json:"passed"`
	Failed int                   `json:"failed"`
	Total  int                   `json:"total"`
	Tests  []validate.TestResult `json:"tests"`
}

const selfTestTimeout = 30 * time.Second

// SelfTest exercises every backend and generator the daemon depends on. The
// completion check is skipped when no completer is configured.
func (m *Manager) SelfTest(ctx context.Context) SelfTestReport {
	ctx, cancel := context.WithTimeout(ctx, selfTestTimeout)
	defer cancel()

	var tests []validate.TestResult
	add := func(name string, pass bool, msg string) {
		tests = append(tests, validate.TestResult{Name: name, Pass: pass, Message: msg})
	}

	if c := m.generator.Completer(); c != nil {
		reply, err := c.Complete(ctx, kconfig.CompletionRequest{
			System:    "Respond with exactly: OK",
			Messages:  []kconfig.Message{{Role: "user", Content: "Say OK"}},
			MaxTokens: 10,
		})
		if err != nil {
			add("ai_completer", false, err.Error())
		} else {
			add("ai_completer", strings.Contains(reply, "OK"), fmt.Sprintf("%s: %s", c.Model(), truncate(reply, 50)))
		}
	}

	_, err := m.jobs.Get(ctx, "self-test-"+uuid.New().String())
	add("job_store", errors.Is(err, db.ErrJobNotFound), errString(err, db.ErrJobNotFound))

	ok, msg := m.storageRoundTrip(ctx)
	add("artifact_store", ok, msg)

	for _, mgr := range m.catalog.Managers() {
		pkgs, ok := m.catalog.Lookup(mgr, "docker")
		add("pkg_"+mgr+"_docker", ok, fmt.Sprintf("docker -> [%s]", strings.Join(pkgs, ", ")))
	}

	server := kconfig.ParseFragment(kconfig.FallbackConfig("server", []string{"e1000e", "nvme"}))
	localver := server.Mentions("CONFIG_LOCALVERSION")
	noDRM := server.Disabled("CONFIG_DRM")
	netfilter := server.Enabled("CONFIG_NETFILTER")
	add("fallback_config_server", localver && noDRM && netfilter,
		fmt.Sprintf("%d options, localver=%t, no_drm=%t, netfilter=%t", len(server), localver, noDRM, netfilter))

	desktop := kconfig.ParseFragment(kconfig.FallbackConfig("desktop", []string{"i915"}))
	i915 := desktop.Has("CONFIG_DRM_I915", "m")
	snd := desktop.Has("CONFIG_SND_HDA_INTEL", "m")
	add("fallback_config_desktop", i915 && snd,
		fmt.Sprintf("%d options, i915=%t, snd=%t", len(desktop), i915, snd))

	manifest := m.sampleManifest()
	script := generate.BuildScript(manifest, nil)
	shebang := strings.HasPrefix(script, "#!/bin/bash")
	iso := strings.Contains(script, "grub-mkrescue") || strings.Contains(script, "xorriso")
	add("build_script_gen", shebang && iso,
		fmt.Sprintf("%d lines, shebang=%t, iso=%t", kconfig.LineCount(script), shebang, iso))

	dockerfile := generate.Dockerfile(manifest)
	from := strings.Contains(dockerfile, "FROM "+generate.BuildImage)
	clone := strings.Contains(dockerfile, "git clone") && strings.Contains(dockerfile, "linux")
	grub := strings.Contains(dockerfile, "grub")
	add("dockerfile_gen", from && clone && grub,
		fmt.Sprintf("%d lines, from=%t, kernel=%t, grub=%t", kconfig.LineCount(dockerfile), from, clone, grub))

	config := kconfig.FallbackConfig(manifest.Mode, manifest.Modules)
	summary := validate.Summarize(m.validator.Run(manifest, config, script, dockerfile))
	add("validation_suite", summary.Passed >= 15, fmt.Sprintf("%s validations passed", summary))

	hash := generate.SHA256Hex([]byte("test"))
	add("sha256", len(hash) == 64, fmt.Sprintf("hash length: %d", len(hash)))

	report := SelfTestReport{Total: len(tests), Tests: tests}
	for _, t := range tests {
		if t.Pass {
			report.Passed++
		}
	}
	report.Failed = report.Total - report.Passed
	return report
}

// storageRoundTrip writes, reads back and removes a small object
func (m *Manager) storageRoundTrip(ctx context.Context) (bool, string) {
	backend := m.artifacts.Backend()
	key := "_selftest/" + uuid.New().String() + ".txt"
	payload := []byte("ok")

	if err := backend.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.UploadOptions{ContentType: "text/plain"}); err != nil {
		return false, err.Error()
	}
	defer func() {
		if err := backend.Delete(context.WithoutCancel(ctx), key); err != nil {
			log.Warn("Failed to remove self-test object", "key", key, "error", err)
		}
	}()

	rc, _, err := backend.Download(ctx, key)
	if err != nil {
		return false, err.Error()
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		return false, err.Error()
	}
	return bytes.Equal(got, payload), fmt.Sprintf("%s: %s", backend.Type(), got)
}

func (m *Manager) sampleManifest() generate.Manifest {
	mgr, base := m.catalog.Target("debian")
	return generate.Manifest{
		JobID:          "test-0000",
		Distro:         "debian",
		Mode:           "server",
		BaseImage:      base,
		PackageManager: mgr,
		Packages:       m.catalog.Resolve(mgr, []string{"docker"}),
		CustomSoftware: []string{},
		Overlays:       []string{"docker"},
		Modules:        []string{"e1000e"},
		AIModel:        "fallback",
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func errString(err, expected error) string {
	switch {
	case err == nil:
		return "unexpected success"
	case errors.Is(err, expected):
		return "ok"
	}
	return err.Error()
}
