// Package syncer drives repository synchronization: fetching remotes,
// diffing revisions, parsing changed tag documents, and reconciling the
// result into the store and the search index. Syncs of one repository are
// serialized; different repositories sync concurrently up to a worker bound.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/errors"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store"
	"github.com/tagvaultapp/tagvault-server/internal/tagparse"
)

// Syncer synchronizes tag repositories.
type Syncer struct {
	store  store.Store
	git    *gitsource.Client
	index  *search.Index
	cfg    config.SyncConfig
	logger *slog.Logger

	mu    sync.Mutex
	repos map[string]*repoState
}

// repoState carries the per-repository serialization lock and status.
type repoState struct {
	syncMu sync.Mutex

	state      State
	lastReport *Report
	lastError  string
}

// New creates a syncer. The search index may be nil; indexing is then
// skipped.
func New(st store.Store, git *gitsource.Client, index *search.Index, cfg config.SyncConfig, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:  st,
		git:    git,
		index:  index,
		cfg:    cfg,
		logger: logger,
		repos:  make(map[string]*repoState),
	}
}

// Options configures one sync run.
type Options struct {
	// Force resyncs every document instead of only the ones changed since
	// the last synced revision. The minimum check interval still applies.
	Force bool
}

// Sync runs one synchronization of the repository. Concurrent calls for the
// same repository are serialized; the second caller waits, then runs into
// the check-interval gate.
func (s *Syncer) Sync(ctx context.Context, repositoryID string, opts Options) (*Report, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	st := s.repoState(repo.ID)
	st.syncMu.Lock()
	defer st.syncMu.Unlock()

	report, err := s.sync(ctx, repo, st, opts)
	if errors.Is(err, errors.ErrRateLimited) {
		// A too-soon request is rejected, not a failed sync: the
		// repository's observable state is untouched.
		return nil, err
	}
	if err != nil {
		s.setState(st, StateFailed, nil, err)
		return nil, err
	}
	s.setState(st, StateIdle, report, nil)
	return report, nil
}

func (s *Syncer) sync(ctx context.Context, repo *domain.Repository, st *repoState, opts Options) (*Report, error) {
	data, err := s.store.GetRepositoryData(ctx, repo.ID)
	if err != nil {
		return nil, err
	}

	// The interval gate applies before any remote traffic, forced or not.
	if wait := s.cfg.MinCheckInterval - time.Since(data.Checked); !data.Checked.IsZero() && wait > 0 {
		return nil, errors.RateLimited(fmt.Sprintf("repository was checked recently, next check in %s", wait.Round(time.Second)))
	}

	s.setState(st, StateChecking, nil, nil)

	report := &Report{
		RepositoryID: repo.ID,
		StartedAt:    time.Now(),
		FromRevision: data.Revision,
	}

	if err := s.store.MarkRepositoryChecked(ctx, repo.ID, report.StartedAt); err != nil {
		return nil, err
	}

	gitRepo, head, err := s.fetchHead(ctx, repo)
	if err != nil {
		return nil, err
	}
	report.ToRevision = head

	if head == data.Revision && !opts.Force {
		report.UpToDate = true
		report.FinishedAt = time.Now()
		s.logger.Debug("repository up to date", "repository", repo.ID, "revision", head)
		return report, nil
	}

	s.setState(st, StateSyncing, nil, nil)

	from := data.Revision
	if opts.Force {
		from = ""
	}

	if err := gitRepo.Checkout(ctx, head); err != nil {
		return nil, err
	}

	changes, err := gitRepo.Diff(ctx, from, head, repo.Directory)
	if err != nil {
		return nil, err
	}

	batch, err := s.buildBatch(ctx, gitRepo, head, from, changes, report)
	if err != nil {
		return nil, err
	}
	// A forced diff starts from the empty revision and sees only additions,
	// so documents deleted upstream are swept by document-id instead.
	batch.ReplaceAll = opts.Force

	result, err := s.store.Reconcile(ctx, repo.ID, batch)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", repo.ID, err)
	}

	report.Created = result.Created
	report.Updated = result.Updated
	report.Removed = result.Removed
	report.SkippedDocuments = result.Skipped

	if err := s.updateMeta(ctx, gitRepo, repo.ID, head); err != nil {
		return nil, err
	}

	if err := s.updateSearchIndex(batch, result); err != nil {
		// The store is already consistent; a stale index is recoverable
		// by a rebuild, so log and carry on.
		s.logger.Error("failed to update search index", "repository", repo.ID, "error", err)
	}

	report.FinishedAt = time.Now()
	if err := s.store.MarkRepositorySynced(ctx, repo.ID, head, report.FinishedAt); err != nil {
		return nil, err
	}

	s.logger.Info("repository synced",
		"repository", repo.ID,
		"revision", head,
		"created", report.Created,
		"updated", report.Updated,
		"removed", report.Removed,
		"skipped", len(report.SkippedPaths)+len(report.SkippedDocuments),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return report, nil
}

// fetchHead opens the working copy and fetches the remote. A corrupt copy is
// wiped and cloned fresh once.
func (s *Syncer) fetchHead(ctx context.Context, repo *domain.Repository) (*gitsource.Repo, string, error) {
	dir := filepath.Join(s.cfg.DataDir, repo.ID)

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	gitRepo, err := s.git.Open(fetchCtx, repo.URL, dir)
	if errors.Is(err, errors.ErrRepositoryCorrupt) {
		s.logger.Warn("working copy corrupt, recloning", "repository", repo.ID, "error", err)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, "", fmt.Errorf("remove corrupt working copy: %w", rmErr)
		}
		gitRepo, err = s.git.Open(fetchCtx, repo.URL, dir)
	}
	if err != nil {
		return nil, "", err
	}

	if err := gitRepo.Fetch(fetchCtx); err != nil {
		return nil, "", err
	}

	head, err := gitRepo.HeadRevision(ctx)
	if err != nil {
		return nil, "", err
	}
	return gitRepo, head, nil
}

// buildBatch turns changed paths into a reconcile batch. Malformed documents
// are recorded on the report and skipped, never fatal.
func (s *Syncer) buildBatch(ctx context.Context, gitRepo *gitsource.Repo, head, from string, changes gitsource.Changes, report *Report) (store.ReconcileBatch, error) {
	var batch store.ReconcileBatch

	fallback, err := gitRepo.CommitInfo(ctx, head)
	if err != nil {
		return batch, err
	}

	for _, path := range append(changes.Added, changes.Modified...) {
		if !isTagDocument(path) {
			continue
		}
		doc, err := s.parseDocument(ctx, gitRepo, head, path, fallback)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			report.SkippedPaths = append(report.SkippedPaths, SkippedPath{Path: path, Reason: err.Error()})
			continue
		}
		batch.Documents = append(batch.Documents, *doc)
	}

	// A removed file's document id is only recoverable from its content at
	// the last synced revision.
	for _, path := range changes.Removed {
		if !isTagDocument(path) {
			continue
		}
		content, err := gitRepo.ReadFile(ctx, from, path)
		if err != nil {
			report.SkippedPaths = append(report.SkippedPaths, SkippedPath{
				Path:   path,
				Reason: fmt.Sprintf("cannot resolve removed document: %v", err),
			})
			continue
		}
		parsed, err := tagparse.Parse(content)
		if err != nil {
			// Was never a valid document, so it never became a tag.
			continue
		}
		batch.RemovedDocumentIDs = append(batch.RemovedDocumentIDs, parsed.Meta.ID)
	}

	return batch, nil
}

func (s *Syncer) parseDocument(ctx context.Context, gitRepo *gitsource.Repo, head, path string, fallback gitsource.Commit) (*domain.TagDocument, error) {
	content, err := gitRepo.ReadFile(ctx, head, path)
	if err != nil {
		return nil, err
	}

	parsed, err := tagparse.Parse(content)
	if err != nil {
		return nil, err
	}

	commits, err := gitRepo.History(ctx, path)
	if err != nil {
		return nil, err
	}
	history := make([]domain.CommitMeta, len(commits))
	for i, c := range commits {
		history[i] = c.Meta()
	}

	return &domain.TagDocument{
		DocumentID: parsed.Meta.ID,
		Name:       parsed.Meta.Tag,
		Aliases:    parsed.Meta.Alias,
		Categories: parsed.Meta.Category,
		Image:      parsed.Meta.Image,
		Content:    parsed.Content,
		Meta:       tagparse.ResolveFileMeta(history, fallback.Meta()),
	}, nil
}

// updateMeta applies the repository descriptor file when present.
func (s *Syncer) updateMeta(ctx context.Context, gitRepo *gitsource.Repo, repositoryID, head string) error {
	content, err := gitRepo.ReadFile(ctx, head, infoFileName)
	if errors.Is(err, errors.ErrFileMissing) {
		return nil
	}
	if err != nil {
		return err
	}

	meta, err := parseInfoFile(content)
	if err != nil {
		s.logger.Warn("ignoring malformed repository descriptor", "repository", repositoryID, "error", err)
		return nil
	}
	return s.store.UpdateRepositoryMeta(ctx, repositoryID, meta)
}

func (s *Syncer) updateSearchIndex(batch store.ReconcileBatch, result *store.ReconcileResult) error {
	if s.index == nil {
		return nil
	}

	byDocument := make(map[string]domain.TagDocument, len(batch.Documents))
	for _, doc := range batch.Documents {
		byDocument[doc.DocumentID] = doc
	}

	docs := make([]*search.TagDocument, 0, len(result.Tags))
	for _, tag := range result.Tags {
		doc := byDocument[tag.DocumentID]
		docs = append(docs, search.NewTagDocument(tag, doc.Aliases, doc.Categories))
	}

	if len(docs) > 0 {
		if err := s.index.IndexTags(docs); err != nil {
			return err
		}
	}
	if len(result.RemovedTagIDs) > 0 {
		return s.index.DeleteTags(result.RemovedTagIDs)
	}
	return nil
}

// Status returns the current sync status of one repository.
func (s *Syncer) Status(repositoryID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.repos[repositoryID]
	if !ok {
		return Status{RepositoryID: repositoryID, State: StateIdle}
	}
	return Status{
		RepositoryID: repositoryID,
		State:        st.state,
		LastReport:   st.lastReport,
		LastError:    st.lastError,
	}
}

// RemoveWorkingCopy deletes the local clone of a repository, used after the
// repository itself was deleted from the store.
func (s *Syncer) RemoveWorkingCopy(repositoryID string) error {
	if repositoryID == "" || strings.ContainsAny(repositoryID, "/\\") {
		return errors.Validation(fmt.Sprintf("invalid repository id %q", repositoryID))
	}

	s.mu.Lock()
	delete(s.repos, repositoryID)
	s.mu.Unlock()

	return os.RemoveAll(filepath.Join(s.cfg.DataDir, repositoryID))
}

func (s *Syncer) repoState(repositoryID string) *repoState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.repos[repositoryID]
	if !ok {
		st = &repoState{state: StateIdle}
		s.repos[repositoryID] = st
	}
	return st
}

func (s *Syncer) setState(st *repoState, state State, report *Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.state = state
	if report != nil {
		st.lastReport = report
		st.lastError = ""
	}
	if err != nil {
		st.lastError = err.Error()
	}
}

func isTagDocument(path string) bool {
	return strings.HasSuffix(path, ".md")
}
