package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/tagvaultapp/tagvault-server/internal/syncer"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "triggerSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/repositories/{id}/sync",
		Summary:     "Trigger sync",
		Description: "Runs a sync of one repository and returns the report",
		Tags:        []string{"Sync"},
	}, s.handleTriggerSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/repositories/{id}/sync",
		Summary:     "Get sync status",
		Description: "Returns the sync state and last report for a repository",
		Tags:        []string{"Sync"},
	}, s.handleGetSyncStatus)
}

// === DTOs ===

// TriggerSyncInput contains parameters for triggering a sync.
type TriggerSyncInput struct {
	ID    string `path:"id" doc:"Repository ID"`
	Force bool   `query:"force" doc:"Resync every document instead of the changed set"`
}

// SkippedPathResponse is one file the sync could not turn into a tag.
type SkippedPathResponse struct {
	Path   string `json:"path" doc:"Repository-relative path"`
	Reason string `json:"reason" doc:"Why the file was skipped"`
}

// SkippedDocumentResponse is one document rejected during reconciliation.
type SkippedDocumentResponse struct {
	DocumentID string `json:"document_id" doc:"Front-matter document id"`
	Name       string `json:"name" doc:"Claimed tag name"`
	Reason     string `json:"reason" doc:"Why the document was rejected"`
}

// SyncReportResponse summarizes one sync run.
type SyncReportResponse struct {
	RepositoryID     string                    `json:"repository_id" doc:"Repository ID"`
	StartedAt        time.Time                 `json:"started_at" doc:"Run start"`
	FinishedAt       time.Time                 `json:"finished_at" doc:"Run end"`
	UpToDate         bool                      `json:"up_to_date" doc:"Remote had nothing new"`
	FromRevision     string                    `json:"from_revision,omitempty" doc:"Revision before the run"`
	ToRevision       string                    `json:"to_revision,omitempty" doc:"Revision after the run"`
	Created          int                       `json:"created" doc:"Tags created"`
	Updated          int                       `json:"updated" doc:"Tags updated"`
	Removed          int                       `json:"removed" doc:"Tags removed"`
	SkippedPaths     []SkippedPathResponse     `json:"skipped_paths,omitempty" doc:"Files rejected before reconciliation"`
	SkippedDocuments []SkippedDocumentResponse `json:"skipped_documents,omitempty" doc:"Documents rejected during reconciliation"`
}

// SyncReportOutput wraps the sync report for Huma.
type SyncReportOutput struct {
	Body SyncReportResponse
}

// SyncStatusResponse is a point-in-time view of a repository's sync state.
type SyncStatusResponse struct {
	RepositoryID string              `json:"repository_id" doc:"Repository ID"`
	State        string              `json:"state" doc:"idle, checking, syncing, or failed"`
	LastReport   *SyncReportResponse `json:"last_report,omitempty" doc:"Report of the last completed run"`
	LastError    string              `json:"last_error,omitempty" doc:"Error of the last failed run"`
}

// SyncStatusOutput wraps the sync status for Huma.
type SyncStatusOutput struct {
	Body SyncStatusResponse
}

// === Handlers ===

func (s *Server) handleTriggerSync(ctx context.Context, input *TriggerSyncInput) (*SyncReportOutput, error) {
	report, err := s.services.Sync.Sync(ctx, input.ID, input.Force)
	if err != nil {
		return nil, err
	}
	return &SyncReportOutput{Body: *syncReportResponse(report)}, nil
}

func (s *Server) handleGetSyncStatus(ctx context.Context, input *GetRepositoryInput) (*SyncStatusOutput, error) {
	status, err := s.services.Sync.Status(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &SyncStatusOutput{
		Body: SyncStatusResponse{
			RepositoryID: status.RepositoryID,
			State:        string(status.State),
			LastReport:   syncReportResponse(status.LastReport),
			LastError:    status.LastError,
		},
	}, nil
}

func syncReportResponse(report *syncer.Report) *SyncReportResponse {
	if report == nil {
		return nil
	}

	paths := make([]SkippedPathResponse, len(report.SkippedPaths))
	for i, p := range report.SkippedPaths {
		paths[i] = SkippedPathResponse{Path: p.Path, Reason: p.Reason}
	}
	docs := make([]SkippedDocumentResponse, len(report.SkippedDocuments))
	for i, d := range report.SkippedDocuments {
		docs[i] = SkippedDocumentResponse{DocumentID: d.DocumentID, Name: d.Name, Reason: d.Reason}
	}

	return &SyncReportResponse{
		RepositoryID:     report.RepositoryID,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
		UpToDate:         report.UpToDate,
		FromRevision:     report.FromRevision,
		ToRevision:       report.ToRevision,
		Created:          report.Created,
		Updated:          report.Updated,
		Removed:          report.Removed,
		SkippedPaths:     paths,
		SkippedDocuments: docs,
	}
}
