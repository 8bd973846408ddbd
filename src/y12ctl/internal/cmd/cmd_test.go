package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitswalk/y12/src/y12ctl/internal/client"
	"github.com/bitswalk/y12/src/y12ctl/internal/output"
)

// setupTestClient starts a mock server and injects a client pointing to it.
// Everything printed is captured in the returned buffer.
func setupTestClient(t *testing.T, mux *http.ServeMux) *bytes.Buffer {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	apiClient = client.NewWithOptions(srv.URL, client.Options{RetryMax: 0})
	outputFormat = ""

	var buf bytes.Buffer
	old := output.Stdout
	output.Stdout = &buf
	t.Cleanup(func() {
		output.Stdout = old
		apiClient = nil
		outputFormat = ""
	})
	return &buf
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	commands := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		commands[c.Name()] = true
	}
	for _, name := range []string{"version", "health", "distros", "overlays", "build", "selftest"} {
		if !commands[name] {
			t.Errorf("expected subcommand %q not found on root", name)
		}
	}
}

func TestBuildCommand_HasSubcommands(t *testing.T) {
	commands := make(map[string]bool)
	for _, c := range buildCmd.Commands() {
		commands[c.Name()] = true
	}
	for _, name := range []string{"submit", "get", "watch", "artifacts", "download", "upload-iso", "progress"} {
		if !commands[name] {
			t.Errorf("expected build subcommand %q not found", name)
		}
	}
}

func TestBuildSubmit_JSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build", func(w http.ResponseWriter, r *http.Request) {
		var req client.BuildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if req.Distro != "arch" || strings.Join(req.Overlays, ",") != "docker,tailscale" {
			t.Errorf("unexpected request %+v", req)
		}
		writeJSON(w, http.StatusCreated, client.CreateBuildResponse{ID: "job-1", Status: "complete", KernelConfigLines: 12})
	})
	buf := setupTestClient(t, mux)

	if err := execute("build", "submit", "--distro", "arch", "--overlay", "docker,tailscale", "-o", "json"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	var resp client.CreateBuildResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
	if resp.ID != "job-1" || resp.KernelConfigLines != 12 {
		t.Errorf("unexpected output %+v", resp)
	}
}

func TestBuildDownload_AllArtifacts(t *testing.T) {
	files := map[string]string{
		"build.sh":   "#!/bin/bash\n",
		"Dockerfile": "FROM debian:12-slim\n",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/download", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, client.ArtifactsResponse{
			ID:     "job-1",
			Status: "complete",
			Artifacts: []client.ArtifactLink{
				{Name: "build.sh", URL: "/api/build/job-1/file/build.sh"},
				{Name: "Dockerfile", URL: "/api/build/job-1/file/Dockerfile"},
			},
		})
	})
	for name, content := range files {
		content := content
		mux.HandleFunc("/api/build/job-1/file/"+name, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, content)
		})
	}
	setupTestClient(t, mux)
	dir := t.TempDir()

	if err := execute("build", "download", "job-1", "-C", dir, "-o", "table"); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestBuildWatch_FailedBuild(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-2/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: status\ndata: {\"status\":\"building_iso\",\"progress\":95}\n\n")
		fmt.Fprint(w, "event: log\ndata: {\"id\":1,\"message\":\"runner started\"}\n\n")
		fmt.Fprint(w, "event: status\ndata: {\"status\":\"failed\",\"progress\":95,\"error\":\"disk full\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"status\":\"failed\"}\n\n")
	})
	buf := setupTestClient(t, mux)

	err := execute("build", "watch", "job-2", "-o", "table")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failed build error, got %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[ 95%] building_iso", "runner started", "failed: disk full"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestCreateOutput_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"", "../evil", "a/b", ".hidden"} {
		if _, _, err := createOutput(dir, name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}

	f, path, err := createOutput(dir, "build.sh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Close()
	if path != filepath.Join(dir, "build.sh") {
		t.Errorf("unexpected path %q", path)
	}
}

func TestReadHardware(t *testing.T) {
	if hw, err := readHardware(""); err != nil || hw != "" {
		t.Errorf("expected empty inventory, got %q, %v", hw, err)
	}

	path := filepath.Join(t.TempDir(), "lspci.txt")
	if err := os.WriteFile(path, []byte("00:02.0 VGA compatible controller: Intel"), 0o644); err != nil {
		t.Fatal(err)
	}
	hw, err := readHardware(path)
	if err != nil || !strings.Contains(hw, "Intel") {
		t.Errorf("unexpected inventory %q, %v", hw, err)
	}

	if _, err := readHardware(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
