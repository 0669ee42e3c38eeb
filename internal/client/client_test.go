package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIdentityClient_GetMinorsByEntrance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/minors", r.URL.Path)
		assert.Equal(t, "8", r.URL.Query().Get("building"))
		assert.Equal(t, "2", r.URL.Query().Get("entrance"))
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"user_id":"u-1","room":"201"},{"user_id":"u-2","room":"205"}]}`))
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "svc-token", time.Second, zap.NewNop())
	got, err := c.GetMinorsByEntrance(context.Background(), "8", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u-1", got[0].UserID)
	assert.Equal(t, "205", got[1].Room)
}

func TestIdentityClient_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "", time.Second, zap.NewNop())
	_, err := c.GetMinorsByEntrance(context.Background(), "8", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestIdentityClient_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL, "", 20*time.Millisecond, zap.NewNop())
	_, err := c.GetMinorsByEntrance(context.Background(), "8", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLeaveClient_GetApprovedLeaves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/applications/approved-leaves", r.URL.Path)
		assert.Equal(t, "2026-03-01", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"user_id":"u-2","reason":"Family visit"}]}`))
	}))
	defer srv.Close()

	c := NewLeaveClient(srv.URL, "", time.Second, zap.NewNop())
	got, err := c.GetApprovedLeaves(context.Background(), "2026-03-01", "8", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Family visit", got[0].Reason)
}

func TestLeaveClient_BadGatewayIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewLeaveClient(srv.URL, "", time.Second, zap.NewNop())
	_, err := c.GetApprovedLeaves(context.Background(), "2026-03-01", "8", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStubsCoverFixtureEntrance(t *testing.T) {
	minors, err := IdentityStub{}.GetMinorsByEntrance(context.Background(), "8", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, minors)

	leaves, err := LeaveStub{}.GetApprovedLeaves(context.Background(), "2026-03-01", "8", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, leaves)

	none, err := IdentityStub{}.GetMinorsByEntrance(context.Background(), "9", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}
