package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

// decodeBody unmarshals a recorded response body into out.
func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, out))
}

// repositoryMeta builds metadata that is publicly listable when public is set.
func repositoryMeta(public bool) domain.RepositoryMeta {
	return domain.RepositoryMeta{
		Name:        "Example Tags",
		Description: "A shared tag collection",
		Public:      public,
		Language:    "en",
	}
}
