package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, 200, resp.Code)

	var body HealthResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Components["database"].Status)
	assert.Equal(t, "healthy", body.Components["search"].Status)
}

func TestHealthCheckDegradedWithoutSearch(t *testing.T) {
	ts := setupTestServer(t)
	ts.Server.index = nil

	resp := ts.api.Get("/health")
	require.Equal(t, 200, resp.Code)

	var body HealthResponse
	decodeBody(t, resp.Body.Bytes(), &body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded", body.Components["search"].Status)
}
