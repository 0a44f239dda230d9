package api

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/service"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

// setupSyncTestServer extends the test server with a real syncer. Sync runs
// use the git binary, so these tests skip when it is unavailable.
func setupSyncTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := setupTestServer(t)

	logger := slog.New(slog.DiscardHandler)
	git, err := gitsource.NewClient(logger)
	if err != nil {
		t.Skipf("git unavailable: %v", err)
	}

	sy := syncer.New(ts.store, git, ts.index, config.SyncConfig{
		DataDir:          t.TempDir(),
		MinCheckInterval: 0,
		Workers:          1,
		FetchTimeout:     30 * time.Second,
		ScheduleInterval: time.Hour,
	}, logger)

	ts.services.Sync = service.NewSyncService(ts.store, sy, logger)
	return ts
}

func TestSyncStatusEndpoint(t *testing.T) {
	ts := setupSyncTestServer(t)
	seedRepository(t, ts.store, "repo-1", "github:example/tags", "", 0)

	resp := ts.api.Get("/api/v1/repositories/repo-1/sync")
	require.Equal(t, 200, resp.Code)

	var status SyncStatusResponse
	decodeBody(t, resp.Body.Bytes(), &status)
	assert.Equal(t, "repo-1", status.RepositoryID)
	assert.Equal(t, "idle", status.State)
	assert.Nil(t, status.LastReport)

	resp = ts.api.Get("/api/v1/repositories/missing/sync")
	assert.Equal(t, 404, resp.Code)
}

func TestTriggerSyncEndpointUnreachableRemote(t *testing.T) {
	ts := setupSyncTestServer(t)

	ident, err := domain.ParseIdentifier("github:example/nowhere")
	require.NoError(t, err)
	require.NoError(t, ts.store.CreateRepository(context.Background(), &domain.Repository{
		ID:         "repo-1",
		URL:        "file:///nonexistent/nowhere.git",
		Identifier: ident,
		Directory:  "tags",
	}))

	resp := ts.api.Post("/api/v1/repositories/repo-1/sync")
	require.Equal(t, 502, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "SOURCE_UNAVAILABLE", apiErr.Code)

	// The failure is visible in the status.
	resp = ts.api.Get("/api/v1/repositories/repo-1/sync")
	require.Equal(t, 200, resp.Code)

	var status SyncStatusResponse
	decodeBody(t, resp.Body.Bytes(), &status)
	assert.Equal(t, "failed", status.State)
	assert.NotEmpty(t, status.LastError)
}

func TestTriggerSyncEndpointUnknownRepository(t *testing.T) {
	ts := setupSyncTestServer(t)

	resp := ts.api.Post("/api/v1/repositories/missing/sync")
	assert.Equal(t, 404, resp.Code)
}
