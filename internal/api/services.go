package api

import (
	"github.com/tagvaultapp/tagvault-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Tag        *service.TagService
	Repository *service.RepositoryService
	Sync       *service.SyncService
}
