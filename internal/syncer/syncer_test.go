package syncer

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/config"
	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/errors"
	"github.com/tagvaultapp/tagvault-server/internal/gitsource"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// gitCmd runs a raw git command in dir, failing the test on error.
func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Lilly",
		"GIT_AUTHOR_EMAIL=lilly@example.com",
		"GIT_COMMITTER_NAME=Lilly",
		"GIT_COMMITTER_EMAIL=lilly@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

func writeCommit(t *testing.T, dir, path, content, message string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", message)
}

// newUpstream creates a local upstream repository with two tag documents.
func newUpstream(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	dir := t.TempDir()
	gitCmd(t, dir, "init", "-b", "main")
	writeCommit(t, dir, "tags/greeting.md",
		"---\nid: greeting\ntag: hello\nalias: [hi]\ncategory: [Social]\n---\nHello there!\n",
		"add greeting")
	writeCommit(t, dir, "tags/farewell.md",
		"---\nid: farewell\ntag: bye\n---\nGoodbye.\n",
		"add farewell")
	return dir
}

type testEnv struct {
	syncer *Syncer
	store  *sqlite.Store
	index  *search.Index
	repo   *domain.Repository
}

func newTestEnv(t *testing.T, upstream string) *testEnv {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewIndex(search.Options{DataPath: t.TempDir()})
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	git, err := gitsource.NewClient(testLogger())
	if err != nil {
		t.Fatalf("new git client: %v", err)
	}

	repo := &domain.Repository{
		ID:         "repo-test",
		URL:        upstream,
		Identifier: domain.Identifier{Platform: "github", User: "example", Repo: "tags"},
		Directory:  "tags",
	}
	if err := st.CreateRepository(context.Background(), repo); err != nil {
		t.Fatalf("create repository: %v", err)
	}

	cfg := config.SyncConfig{
		DataDir:          t.TempDir(),
		MinCheckInterval: 0,
		Workers:          2,
		FetchTimeout:     30 * time.Second,
		ScheduleInterval: time.Hour,
	}

	return &testEnv{
		syncer: New(st, git, index, cfg, testLogger()),
		store:  st,
		index:  index,
		repo:   repo,
	}
}

func TestSyncFirstRun(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	report, err := env.syncer.Sync(ctx, env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Created != 2 || report.Updated != 0 || report.Removed != 0 {
		t.Fatalf("report: %+v", report)
	}
	if report.UpToDate {
		t.Error("first run must not report up to date")
	}
	if report.FromRevision != "" || report.ToRevision == "" {
		t.Errorf("revisions: from %q to %q", report.FromRevision, report.ToRevision)
	}

	tags, err := env.store.ListRepositoryTags(ctx, env.repo.ID)
	if err != nil {
		t.Fatalf("ListRepositoryTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected two tags, got %d", len(tags))
	}

	detail, err := env.store.GetTagDetail(ctx, tags[1].ID)
	if err != nil {
		t.Fatalf("GetTagDetail: %v", err)
	}
	if detail.Tag.Name != "hello" || len(detail.Aliases) != 1 || detail.Aliases[0] != "hi" {
		t.Errorf("detail: %+v", detail)
	}
	if len(detail.Authors) != 1 || detail.Authors[0].Name != "Lilly" {
		t.Errorf("authors from git history: %+v", detail.Authors)
	}
	if detail.Meta.CreatedAt.IsZero() || detail.Meta.CreatedBy.Mail != "lilly@example.com" {
		t.Errorf("meta from git history: %+v", detail.Meta)
	}

	count, err := env.index.DocumentCount()
	if err != nil {
		t.Fatalf("DocumentCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected indexed tags, got %d", count)
	}

	data, err := env.store.GetRepositoryData(ctx, env.repo.ID)
	if err != nil {
		t.Fatalf("GetRepositoryData: %v", err)
	}
	if data.Revision != report.ToRevision {
		t.Errorf("stored revision %q, want %q", data.Revision, report.ToRevision)
	}
}

func TestSyncUpToDateAndIncremental(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	report, err := env.syncer.Sync(ctx, env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if !report.UpToDate {
		t.Fatalf("expected up to date, got %+v", report)
	}

	// Upstream changes: greeting reworded, farewell removed.
	if err := os.WriteFile(filepath.Join(upstream, "tags/greeting.md"),
		[]byte("---\nid: greeting\ntag: hello\n---\nHello again!\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gitCmd(t, upstream, "rm", "--quiet", "tags/farewell.md")
	gitCmd(t, upstream, "add", ".")
	gitCmd(t, upstream, "commit", "-m", "rework greeting, drop farewell")

	report, err = env.syncer.Sync(ctx, env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("incremental Sync: %v", err)
	}
	if report.Created != 0 || report.Updated != 1 || report.Removed != 1 {
		t.Fatalf("incremental report: %+v", report)
	}

	tags, err := env.store.ListRepositoryTags(ctx, env.repo.ID)
	if err != nil {
		t.Fatalf("ListRepositoryTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Content != "Hello again!" {
		t.Fatalf("tags after incremental sync: %+v", tags)
	}

	count, err := env.index.DocumentCount()
	if err != nil {
		t.Fatalf("DocumentCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected removed tag dropped from index, got %d", count)
	}
}

func TestSyncCheckIntervalGate(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	env.syncer.cfg.MinCheckInterval = 10 * time.Minute
	ctx := context.Background()

	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	// Too soon, no matter whether the sync is forced.
	_, err := env.syncer.Sync(ctx, env.repo.ID, Options{Force: true})
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	// A rejected request is not a failed sync.
	status := env.syncer.Status(env.repo.ID)
	if status.State != StateIdle || status.LastError != "" {
		t.Errorf("status after rejected request: %+v", status)
	}
	if status.LastReport == nil {
		t.Error("last successful report must survive a rejected request")
	}
}

func TestSyncForcedRemovesDeletedDocuments(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	gitCmd(t, upstream, "rm", "--quiet", "tags/farewell.md")
	gitCmd(t, upstream, "commit", "-m", "drop farewell")

	// A forced diff sees only additions, so the deletion must be swept
	// from the full document set instead.
	report, err := env.syncer.Sync(ctx, env.repo.ID, Options{Force: true})
	if err != nil {
		t.Fatalf("forced Sync: %v", err)
	}
	if report.Removed != 1 || report.Updated != 1 {
		t.Fatalf("forced report: %+v", report)
	}

	tags, err := env.store.ListRepositoryTags(ctx, env.repo.ID)
	if err != nil {
		t.Fatalf("ListRepositoryTags: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "hello" {
		t.Fatalf("tags after forced sync: %+v", tags)
	}

	count, err := env.index.DocumentCount()
	if err != nil {
		t.Fatalf("DocumentCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected removed tag dropped from index, got %d", count)
	}

	// The revision advanced past the deletion, so the follow-up run has
	// nothing left to remove.
	report, err = env.syncer.Sync(ctx, env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("follow-up Sync: %v", err)
	}
	if !report.UpToDate {
		t.Errorf("follow-up report: %+v", report)
	}
}

func TestSyncMalformedDocumentSkipped(t *testing.T) {
	upstream := newUpstream(t)
	writeCommit(t, upstream, "tags/broken.md", "no front matter here\n", "add broken")
	env := newTestEnv(t, upstream)

	report, err := env.syncer.Sync(context.Background(), env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("created: got %d, want 2", report.Created)
	}
	if len(report.SkippedPaths) != 1 || report.SkippedPaths[0].Path != "tags/broken.md" {
		t.Fatalf("skipped paths: %+v", report.SkippedPaths)
	}
}

func TestSyncDuplicateNameReported(t *testing.T) {
	upstream := newUpstream(t)
	writeCommit(t, upstream, "tags/second-hello.md",
		"---\nid: second-hello\ntag: hello\n---\nAnother hello.\n",
		"add duplicate name")
	env := newTestEnv(t, upstream)

	report, err := env.syncer.Sync(context.Background(), env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("created: got %d, want 2", report.Created)
	}
	if len(report.SkippedDocuments) != 1 || report.SkippedDocuments[0].Name != "hello" {
		t.Fatalf("skipped documents: %+v", report.SkippedDocuments)
	}
}

func TestSyncDescriptorFile(t *testing.T) {
	upstream := newUpstream(t)
	writeCommit(t, upstream, ".tagvault.yml",
		"name: Example Tags\ndescription: Test collection\npublic: true\nlanguage: en\ncategory: [General]\n",
		"add descriptor")
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	meta, err := env.store.GetRepositoryMeta(ctx, env.repo.ID)
	if err != nil {
		t.Fatalf("GetRepositoryMeta: %v", err)
	}
	if meta.Name != "Example Tags" || !meta.Public || meta.Language != "en" {
		t.Errorf("meta: %+v", meta)
	}
	if len(meta.Categories) != 1 || meta.Categories[0] != "General" {
		t.Errorf("categories: %v", meta.Categories)
	}
	if !meta.PublicListable() {
		t.Error("expected repository to be publicly listable")
	}
}

func TestSyncOnlyDirectoryFiles(t *testing.T) {
	upstream := newUpstream(t)
	writeCommit(t, upstream, "README.md",
		"---\nid: readme\ntag: readme\n---\nNot a tag document location.\n",
		"add readme")
	env := newTestEnv(t, upstream)

	report, err := env.syncer.Sync(context.Background(), env.repo.ID, Options{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Created != 2 {
		t.Errorf("expected files outside the tag directory ignored, got %d created", report.Created)
	}
}

func TestSyncUnreachableRemote(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	bad := &domain.Repository{
		ID:         "repo-unreachable",
		URL:        filepath.Join(t.TempDir(), "nowhere"),
		Identifier: domain.Identifier{Platform: "github", User: "example", Repo: "nowhere"},
		Directory:  "tags",
	}
	if err := env.store.CreateRepository(ctx, bad); err != nil {
		t.Fatalf("create repository: %v", err)
	}

	_, err := env.syncer.Sync(ctx, bad.ID, Options{})
	if !errors.Is(err, errors.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
	if status := env.syncer.Status(bad.ID); status.State != StateFailed || status.LastError == "" {
		t.Errorf("status: %+v", status)
	}

	// A failed repository recovers on the next successful attempt.
	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if status := env.syncer.Status(env.repo.ID); status.State != StateIdle || status.LastReport == nil {
		t.Errorf("status: %+v", status)
	}
}

func TestSyncAll(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	second := &domain.Repository{
		ID:         "repo-second",
		URL:        upstream,
		Identifier: domain.Identifier{Platform: "github", User: "example", Repo: "second"},
		Directory:  "tags",
	}
	if err := env.store.CreateRepository(ctx, second); err != nil {
		t.Fatalf("create repository: %v", err)
	}

	env.syncer.SyncAll(ctx)

	for _, id := range []string{env.repo.ID, second.ID} {
		tags, err := env.store.ListRepositoryTags(ctx, id)
		if err != nil {
			t.Fatalf("ListRepositoryTags %s: %v", id, err)
		}
		if len(tags) != 2 {
			t.Errorf("repository %s: got %d tags, want 2", id, len(tags))
		}
	}
}

func TestRemoveWorkingCopy(t *testing.T) {
	upstream := newUpstream(t)
	env := newTestEnv(t, upstream)
	ctx := context.Background()

	if _, err := env.syncer.Sync(ctx, env.repo.ID, Options{}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	dir := filepath.Join(env.syncer.cfg.DataDir, env.repo.ID)
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("working copy missing before removal: %v", err)
	}
	if err := env.syncer.RemoveWorkingCopy(env.repo.ID); err != nil {
		t.Fatalf("RemoveWorkingCopy: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("working copy still present: %v", err)
	}

	if err := env.syncer.RemoveWorkingCopy("../escape"); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error for traversal id, got %v", err)
	}
}
