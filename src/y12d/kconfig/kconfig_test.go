package kconfig

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fragment parsing
// =============================================================================

func TestParseFragment(t *testing.T) {
	text := "CONFIG_LOCALVERSION=\"-y12-custom\"\n# CONFIG_DRM is not set\r\n  CONFIG_NETFILTER=y\nrandom prose\nCONFIG_E1000E=m\n"
	f := ParseFragment(text)

	require.Len(t, f, 4)
	assert.Equal(t, Option{"CONFIG_LOCALVERSION", `"-y12-custom"`}, f[0])
	assert.True(t, f.Disabled("CONFIG_DRM"))
	assert.True(t, f.Enabled("CONFIG_NETFILTER"))
	assert.True(t, f.Enabled("CONFIG_E1000E"))
	assert.False(t, f.Mentions("CONFIG_SND"))
	assert.Equal(t, "CONFIG_LOCALVERSION=\"-y12-custom\"\n# CONFIG_DRM is not set\nCONFIG_NETFILTER=y\nCONFIG_E1000E=m", f.String())
}

func TestAnalyze(t *testing.T) {
	s := Analyze(FallbackConfig("server", []string{"nvme"}))
	assert.Equal(t, Stats{Enabled: 9, Disabled: 4, Total: 14}, s)
}

// =============================================================================
// Fallback
// =============================================================================

func TestFallbackServer(t *testing.T) {
	text := FallbackConfig("server", []string{"i915", "nvme"})
	f := ParseFragment(text)

	assert.True(t, strings.HasPrefix(text, LocalVersion))
	for _, k := range []string{"CONFIG_DRM", "CONFIG_SND", "CONFIG_WLAN", "CONFIG_BT"} {
		assert.True(t, f.Disabled(k), k)
	}
	for _, k := range []string{"CONFIG_NETFILTER", "CONFIG_CGROUPS", "CONFIG_NAMESPACES", "CONFIG_NET_NS",
		"CONFIG_VETH", "CONFIG_BRIDGE", "CONFIG_NF_NAT", "CONFIG_OVERLAY_FS"} {
		assert.True(t, f.Has(k, "y"), k)
	}
	assert.True(t, f.Has("CONFIG_I915", "m"))
	assert.True(t, f.Has("CONFIG_NVME", "m"))
}

func TestFallbackDesktop(t *testing.T) {
	for _, mode := range []string{"desktop", "kiosk", ""} {
		t.Run(mode, func(t *testing.T) {
			text := FallbackConfig(mode, nil)
			f := ParseFragment(text)

			assert.Contains(t, text, LocalVersion)
			for _, k := range []string{"CONFIG_DRM", "CONFIG_SND", "CONFIG_WLAN", "CONFIG_BT", "CONFIG_INPUT_EVDEV"} {
				assert.True(t, f.Enabled(k), k)
			}
			assert.False(t, f.Disabled("CONFIG_DRM"))
			assert.GreaterOrEqual(t, ConfigLines(text), 10)
		})
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	a := FallbackConfig("server", []string{"igc", "nvme"})
	b := FallbackConfig("server", []string{"igc", "nvme"})
	assert.Equal(t, a, b)
}

// =============================================================================
// Result labels
// =============================================================================

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "claude-x", Generated{Model: "claude-x"}.Label())
	assert.Equal(t, "fallback", Fallback{}.Label())
	assert.Equal(t, "fallback-error: boom", Fallback{Reason: "boom"}.Label())
}

// =============================================================================
// Generator
// =============================================================================

type fakeCompleter struct {
	text  string
	err   error
	got   CompletionRequest
	delay time.Duration
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.got = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", &CompletionError{Kind: KindTimeout, Message: "deadline", Err: ctx.Err()}
		}
	}
	return f.text, f.err
}

func TestGenerateWithoutCompleter(t *testing.T) {
	g := NewGenerator(nil, Config{})
	res := g.Generate(context.Background(), Input{Mode: "server", Modules: []string{"nvme"}})

	fb, ok := res.(Fallback)
	require.True(t, ok, "expected Fallback, got %T", res)
	assert.Empty(t, fb.Reason)
	assert.Equal(t, "fallback", res.Label())
	assert.Equal(t, FallbackConfig("server", []string{"nvme"}), res.Text())
}

func TestGenerateUsesCompleterVerbatim(t *testing.T) {
	fc := &fakeCompleter{text: "CONFIG_LOCALVERSION=\"-y12-custom\"\nCONFIG_NETFILTER=y"}
	g := NewGenerator(fc, Config{})

	res := g.Generate(context.Background(), Input{HardwareRaw: "00:02.0 VGA Intel", Distro: "debian", Mode: "desktop", Modules: []string{"i915"}})

	gen, ok := res.(Generated)
	require.True(t, ok)
	assert.Equal(t, fc.text, gen.Content)
	assert.Equal(t, "fake-model", res.Label())
	assert.Equal(t, DefaultMaxTokens, fc.got.MaxTokens)
	require.Len(t, fc.got.Messages, 1)
	assert.Contains(t, fc.got.Messages[0].Content, "Detected modules: i915")
	assert.Contains(t, fc.got.Messages[0].Content, "Mode: desktop")
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	fc := &fakeCompleter{err: &CompletionError{Kind: KindStatus, StatusCode: 529, Message: "overloaded"}}
	res := NewGenerator(fc, Config{}).Generate(context.Background(), Input{Mode: "server"})

	fb, ok := res.(Fallback)
	require.True(t, ok)
	assert.Equal(t, "fallback-error: status (HTTP 529): overloaded", res.Label())
	assert.Equal(t, FallbackConfig("server", nil), fb.Content)
}

func TestGenerateTimeout(t *testing.T) {
	fc := &fakeCompleter{text: "late", delay: time.Second}
	res := NewGenerator(fc, Config{Timeout: 20 * time.Millisecond}).Generate(context.Background(), Input{Mode: "desktop"})

	_, ok := res.(Fallback)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(res.Label(), "fallback-error: timeout"))
}

func TestUserPromptDefaults(t *testing.T) {
	p := UserPrompt(Input{Distro: "rocky", Mode: "server"})
	assert.Contains(t, p, "No hardware info provided")
	assert.Contains(t, p, "Detected modules: none")
}

// =============================================================================
// Anthropic client
// =============================================================================

func TestAnthropicComplete(t *testing.T) {
	var gotHeaders http.Header
	var gotBody messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"CONFIG_X=y"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "sk-test", Endpoint: srv.URL})
	text, err := c.Complete(context.Background(), CompletionRequest{
		System: "sys", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, "CONFIG_X=y", text)
	assert.Equal(t, "sk-test", gotHeaders.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, DefaultAnthropicModel, gotBody.Model)
	assert.Equal(t, 10, gotBody.MaxTokens)
	assert.Equal(t, "sys", gotBody.System)
}

func TestAnthropicErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"api error", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, KindStatus},
		{"not json", http.StatusOK, `<html>`, KindMalformed},
		{"no text", http.StatusOK, `{"content":[]}`, KindMalformed},
		{"error in 200", http.StatusOK, `{"error":{"message":"nope"}}`, KindStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAnthropicClient(AnthropicConfig{APIKey: "k", Endpoint: srv.URL})
			_, err := c.Complete(context.Background(), CompletionRequest{MaxTokens: 1})

			var ce *CompletionError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.kind, ce.Kind)
		})
	}
}

func TestAnthropicTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewAnthropicClient(AnthropicConfig{APIKey: "k", Endpoint: srv.URL})
	_, err := c.Complete(ctx, CompletionRequest{MaxTokens: 1})

	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindTimeout, ce.Kind)
}
