package policy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulwark/pkg/domain"
)

func testPrincipal() domain.Principal {
	return domain.Principal{
		UserID: "user-1",
		Tenant: "acme",
		Role:   "developer",
		Tier:   domain.TierPremium,
	}
}

func TestEvaluateAllow(t *testing.T) {
	var gotPath string
	var gotInput map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	allowed := c.Evaluate(context.Background(), testPrincipal(), "chat:create", map[string]any{"model": "gpt-4"})

	assert.True(t, allowed)
	assert.Equal(t, "/v1/data/llm/authz/allow", gotPath)

	input, ok := gotInput["input"].(map[string]any)
	require.True(t, ok)
	user, ok := input["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-1", user["user_id"])
	assert.Equal(t, "chat:create", input["action"])
}

func TestEvaluateDeny(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "admin:reset", nil))
}

func TestEvaluateFailsClosedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestEvaluateFailsClosedOnUnreachableOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, time.Second)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestEvaluateFailsClosedOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"result": true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 20*time.Millisecond)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestEvaluateFailsClosedOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestEvaluateFailOpenAllowsOnUnreachableOracle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, time.Second, WithFailOpen(true))
	assert.True(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestEvaluateMissingResultFieldDenies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	assert.False(t, c.Evaluate(context.Background(), testPrincipal(), "chat:create", nil))
}

func TestPermissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/data/llm/authz/permissions", r.URL.Path)
		w.Write([]byte(`{"result": {"models": ["gpt-4"], "max_tokens": 4096}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	perms := c.Permissions(context.Background(), testPrincipal())

	require.Contains(t, perms, "models")
	assert.Equal(t, float64(4096), perms["max_tokens"])
}

func TestPermissionsEmptyOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	perms := c.Permissions(context.Background(), testPrincipal())

	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}
