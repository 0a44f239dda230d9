package syncer

import (
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/store"
)

// State is the lifecycle position of one repository's sync machinery.
// Transitions: Idle -> Checking -> Syncing -> Idle, or Checking -> Idle
// when the remote is unchanged. A failure parks the repository in Failed
// until the next attempt moves it back through Checking.
type State string

const (
	StateIdle     State = "idle"
	StateChecking State = "checking"
	StateSyncing  State = "syncing"
	StateFailed   State = "failed"
)

// SkippedPath records a file the sync could not turn into a tag.
type SkippedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report summarizes one sync run of a repository.
type Report struct {
	RepositoryID string    `json:"repository_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	// UpToDate is set when the remote had nothing new and the run stopped
	// after the revision check.
	UpToDate     bool   `json:"up_to_date"`
	FromRevision string `json:"from_revision,omitempty"`
	ToRevision   string `json:"to_revision,omitempty"`

	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`

	// SkippedPaths are files rejected before reconciliation, typically
	// malformed documents.
	SkippedPaths []SkippedPath `json:"skipped_paths,omitempty"`
	// SkippedDocuments are documents rejected inside reconciliation,
	// typically duplicate tag names.
	SkippedDocuments []store.SkippedDocument `json:"skipped_documents,omitempty"`
}

// Status is a point-in-time view of one repository's sync state.
type Status struct {
	RepositoryID string  `json:"repository_id"`
	State        State   `json:"state"`
	LastReport   *Report `json:"last_report,omitempty"`
	LastError    string  `json:"last_error,omitempty"`
}
