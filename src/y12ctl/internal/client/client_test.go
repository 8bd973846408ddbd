package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewWithOptions(srv.URL, Options{RetryMax: 0})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAPIError_Hints(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{"unauthorized", &APIError{StatusCode: 401, Reason: "auth.unauthorized", Message: "x"}, "build_secret"},
		{"not found", &APIError{StatusCode: 404, Message: "x"}, "expire"},
		{"rate limited", &APIError{StatusCode: 429, Message: "x"}, "rate limited"},
		{"not complete", &APIError{StatusCode: 400, Reason: "job.not_complete", Message: "x"}, "build watch"},
		{"plain", &APIError{StatusCode: 500, Message: "boom"}, "HTTP 500: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s := tt.err.Error(); !strings.Contains(s, tt.want) {
				t.Errorf("expected %q in %q", tt.want, s)
			}
		})
	}
}

func TestCreateBuild(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		var req BuildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if req.Distro != "debian" || req.Mode != "server" || len(req.Overlays) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		writeJSON(w, http.StatusCreated, CreateBuildResponse{ID: "job-1", Status: "complete", KernelConfigLines: 15, Packages: 2})
	})
	c := newTestClient(t, mux)

	resp, err := c.CreateBuild(context.Background(), &BuildRequest{Distro: "debian", Mode: "server", Overlays: []string{"docker"}})
	if err != nil {
		t.Fatalf("CreateBuild error: %v", err)
	}
	if resp.ID != "job-1" || resp.KernelConfigLines != 15 || resp.Packages != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGetBuild_DecodesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not Found", Code: 404, Message: "Build not found", Reason: "job.not_found"})
	})
	c := newTestClient(t, mux)

	_, err := c.GetBuild(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Reason != "job.not_found" || apiErr.Message != "Build not found" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestRateLimitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "Too Many Requests", Code: 429, Message: "Too many requests", Reason: "auth.rate_limited"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := NewWithOptions(srv.URL, Options{RetryMax: 3})

	_, err := c.CreateBuild(context.Background(), &BuildRequest{Distro: "debian", Mode: "server"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 APIError, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single attempt, got %d", n)
	}
}

func TestHealth_DegradedBodyIsDecoded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"service": "y12d",
			"storage": map[string]any{"ok": false, "error": "unreachable"},
		})
	})
	c := newTestClient(t, mux)

	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health error: %v", err)
	}
	if resp.Status != "degraded" || resp.Storage.OK || resp.Storage.Error != "unreachable" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestUploadImage(t *testing.T) {
	content := []byte("fake iso image contents")
	sum := sha256.Sum256(content)
	wantSHA := hex.EncodeToString(sum[:])

	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/upload-iso", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("X-ISO-SHA256"); got != wantSHA {
			t.Errorf("unexpected checksum header %q", got)
		}
		if got := r.Header.Get("X-ISO-Size"); got != fmt.Sprint(len(content)) {
			t.Errorf("unexpected size header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, content) {
			t.Errorf("unexpected body %q", body)
		}
		writeJSON(w, http.StatusOK, UploadResponse{OK: true, R2Key: "builds/job-1/output.iso", Size: int64(len(body)), SHA256: wantSHA})
	})
	c := newTestClient(t, mux)
	c.Secret = "s3cret"

	path := filepath.Join(t.TempDir(), "out.iso")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	resp, err := c.UploadImage(context.Background(), "job-1", f)
	if err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	if !resp.OK || resp.SHA256 != wantSHA || resp.Size != int64(len(content)) {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestDownloadImage_VerifiesChecksum(t *testing.T) {
	content := []byte("iso bytes")
	sum := sha256.Sum256(content)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"matching", hex.EncodeToString(sum[:]), false},
		{"absent", "", false},
		{"mismatch", strings.Repeat("0", 64), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/build/job-1/iso", func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("X-ISO-SHA256", tt.header)
				}
				_, _ = w.Write(content)
			})
			c := newTestClient(t, mux)

			var buf bytes.Buffer
			n, _, err := c.DownloadImage(context.Background(), "job-1", &buf)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected checksum error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DownloadImage error: %v", err)
			}
			if n != int64(len(content)) || !bytes.Equal(buf.Bytes(), content) {
				t.Errorf("unexpected download %q", buf.Bytes())
			}
		})
	}
}

func TestDownloadFile_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/file/secret.txt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not Found", Code: 404, Message: "File not found"})
	})
	c := newTestClient(t, mux)

	var buf bytes.Buffer
	_, err := c.DownloadFile(context.Background(), "job-1", "secret.txt", &buf)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written, got %q", buf.String())
	}
}

func TestStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: status\ndata: {\"status\":\"building_iso\",\"progress\":95}\n\n")
		fmt.Fprint(w, "event: log\ndata: {\"id\":1,\"message\":\"line one\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"status\":\"complete\"}\n\n")
		fmt.Fprint(w, "event: log\ndata: ignored\n\n")
	})
	c := newTestClient(t, mux)

	var names []string
	var last []byte
	err := c.Stream(context.Background(), "job-1", func(ev Event) error {
		names = append(names, ev.Name)
		last = ev.Data
		return nil
	})
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if got := strings.Join(names, ","); got != "status,log,done" {
		t.Errorf("unexpected events %q", got)
	}
	if string(last) != `{"status":"complete"}` {
		t.Errorf("unexpected done data %q", last)
	}
}

func TestStream_ClosedEarly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: status\ndata: {}\n\n")
	})
	c := newTestClient(t, mux)

	err := c.Stream(context.Background(), "job-1", func(Event) error { return nil })
	if !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
}

func TestStream_CallbackErrorStops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/build/job-1/stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: log\ndata: a\n\nevent: log\ndata: b\n\n")
	})
	c := newTestClient(t, mux)

	stop := errors.New("stop")
	calls := 0
	err := c.Stream(context.Background(), "job-1", func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("expected one call and stop error, got %d calls and %v", calls, err)
	}
}

func TestJob_Terminal(t *testing.T) {
	for status, want := range map[string]bool{
		"building":               false,
		"building_iso":           false,
		"complete":               true,
		"complete_with_warnings": true,
		"failed":                 true,
	} {
		j := Job{Status: status}
		if j.Terminal() != want {
			t.Errorf("Terminal(%s) = %v, want %v", status, !want, want)
		}
	}
}
