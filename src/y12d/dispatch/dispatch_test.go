package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// GitHubDispatcher
// =============================================================================

func TestTrigger_NotConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewGitHubDispatcher(GitHubConfig{APIURL: srv.URL, Repo: "bitswalk/y12-builder"}, nil)
	ok, err := d.Trigger(context.Background(), "job-1")
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestTrigger_Success(t *testing.T) {
	issuer := NewTokenIssuer("s3cret", time.Hour)
	var got dispatchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/bitswalk/y12-builder/actions/workflows/build-iso.yml/dispatches", r.URL.Path)
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "y12d/v0.0.0-test", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewGitHubDispatcher(GitHubConfig{
		Token:       "ghp_test",
		Repo:        "bitswalk/y12-builder",
		APIURL:      srv.URL,
		CallbackURL: "https://y12.example/api",
		UserAgent:   "y12d/v0.0.0-test",
	}, issuer)

	ok, err := d.Trigger(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "main", got.Ref)
	assert.Equal(t, "job-1", got.Inputs["job_id"])
	assert.Equal(t, "https://y12.example/api", got.Inputs["api_url"])
	assert.NoError(t, issuer.Verify(got.Inputs["callback_token"], "job-1"))
}

func TestTrigger_RejectedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	d := NewGitHubDispatcher(GitHubConfig{Token: "t", Repo: "o/r", APIURL: srv.URL}, nil)
	ok, err := d.Trigger(context.Background(), "job-1")
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTrigger_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := NewGitHubDispatcher(GitHubConfig{Token: "t", Repo: "o/r", APIURL: url}, nil)
	ok, err := d.Trigger(context.Background(), "job-1")
	assert.False(t, ok)
	assert.Error(t, err)
}

// =============================================================================
// Callback tokens
// =============================================================================

func TestTokenIssuer(t *testing.T) {
	assert.Nil(t, NewTokenIssuer("", time.Hour))

	issuer := NewTokenIssuer("s3cret", time.Hour)
	token, err := issuer.Mint("job-1")
	require.NoError(t, err)

	assert.NoError(t, issuer.Verify(token, "job-1"))
	assert.ErrorIs(t, issuer.Verify(token, "job-2"), ErrInvalidToken)
	assert.ErrorIs(t, NewTokenIssuer("other", time.Hour).Verify(token, "job-1"), ErrInvalidToken)
	assert.ErrorIs(t, issuer.Verify("garbage", "job-1"), ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, issuer.Verify(token, "job-1"), ErrInvalidToken)
}

// =============================================================================
// Secret verification
// =============================================================================

func TestSecretVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("runner-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name      string
		secret    string
		presented string
		want      bool
	}{
		{"plain match", "runner-secret", "runner-secret", true},
		{"plain mismatch", "runner-secret", "nope", false},
		{"empty secret rejects", "", "", false},
		{"empty secret rejects anything", "", "runner-secret", false},
		{"empty presented", "runner-secret", "", false},
		{"bcrypt match", string(hash), "runner-secret", true},
		{"bcrypt mismatch", string(hash), "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSecretVerifier(tt.secret).Verify(tt.presented))
		})
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
