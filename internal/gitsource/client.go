// Package gitsource wraps the git binary to provide read access to remote
// tag repositories: clone, fetch, revision diffing, file content at a
// revision, and per-path commit history.
package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/errors"
)

// unit separator, safe against every byte git allows in author names.
const fieldSep = "\x1f"

// Commit is one history entry for a path, oldest first when returned
// from History.
type Commit struct {
	Revision string
	Author   domain.Author
	When     time.Time
}

// Meta converts the commit into document commit metadata.
func (c Commit) Meta() domain.CommitMeta {
	return domain.CommitMeta{Author: c.Author, When: c.When}
}

// Changes are the disjoint path sets between two revisions.
type Changes struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Client creates repository handles. It locates the git binary once.
type Client struct {
	gitPath string
	logger  *slog.Logger
}

// NewClient creates a git client.
func NewClient(logger *slog.Logger) (*Client, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git binary not found: %w", err)
	}
	return &Client{gitPath: gitPath, logger: logger}, nil
}

// Repo is a handle to one local working copy tracking a remote.
// All methods are read-only with respect to the remote; local mutation is
// confined to Fetch and Checkout.
type Repo struct {
	client *Client
	url    string
	dir    string
}

// Dir returns the local working copy path.
func (r *Repo) Dir() string { return r.dir }

// Open clones the remote into dir if no working copy exists there, otherwise
// validates the existing copy. A failed clone reports SourceUnavailable; an
// unreadable or mismatched existing copy reports RepositoryCorrupt so the
// caller can wipe and re-clone.
func (c *Client) Open(ctx context.Context, url, dir string) (*Repo, error) {
	repo := &Repo{client: c, url: url, dir: dir}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return nil, fmt.Errorf("create clone parent: %w", err)
		}
		c.logger.Info("cloning repository", "url", url, "dir", dir)
		if out, err := c.run(ctx, "", "clone", "--quiet", url, dir); err != nil {
			return nil, errors.SourceUnavailable(fmt.Sprintf("clone %s failed", url), fmt.Errorf("%w: %s", err, out))
		}
		return repo, nil
	}

	if out, err := c.run(ctx, dir, "rev-parse", "--git-dir"); err != nil {
		return nil, errors.RepositoryCorrupt("working copy is not a git repository", fmt.Errorf("%w: %s", err, out))
	}
	remote, err := c.run(ctx, dir, "remote", "get-url", "origin")
	if err != nil {
		return nil, errors.RepositoryCorrupt("working copy has no origin remote", err)
	}
	if strings.TrimSpace(remote) != url {
		return nil, errors.RepositoryCorrupt(
			fmt.Sprintf("working copy tracks %s, want %s", strings.TrimSpace(remote), url), nil)
	}
	return repo, nil
}

// Fetch updates remote-tracking state. Network, auth, and timeout failures
// all surface as SourceUnavailable.
func (r *Repo) Fetch(ctx context.Context) error {
	if out, err := r.git(ctx, "fetch", "--quiet", "--prune", "origin"); err != nil {
		if ctx.Err() != nil {
			return errors.SourceUnavailable("fetch timed out", ctx.Err())
		}
		return errors.SourceUnavailable("fetch failed", fmt.Errorf("%w: %s", err, out))
	}
	return nil
}

// HeadRevision returns the revision fetched from the remote default branch.
func (r *Repo) HeadRevision(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "FETCH_HEAD")
	if err != nil {
		// No FETCH_HEAD yet right after a fresh clone.
		out, err = r.git(ctx, "rev-parse", "HEAD")
		if err != nil {
			return "", errors.RepositoryCorrupt("cannot resolve head revision", fmt.Errorf("%w: %s", err, out))
		}
	}
	return strings.TrimSpace(out), nil
}

// Checkout moves the working copy to the given revision.
func (r *Repo) Checkout(ctx context.Context, revision string) error {
	if out, err := r.git(ctx, "checkout", "--force", "--detach", "--quiet", revision); err != nil {
		return errors.RepositoryCorrupt(fmt.Sprintf("checkout %s failed", shortRev(revision)), fmt.Errorf("%w: %s", err, out))
	}
	return nil
}

// Diff returns the added, modified, and removed paths between two revisions,
// restricted to subPath. An empty from revision treats every file at to as
// added (first sync).
func (r *Repo) Diff(ctx context.Context, from, to, subPath string) (Changes, error) {
	var changes Changes

	if from == "" {
		out, err := r.git(ctx, "ls-tree", "-r", "--name-only", to, "--", subPath)
		if err != nil {
			return changes, fmt.Errorf("ls-tree %s: %w: %s", shortRev(to), err, out)
		}
		changes.Added = splitLines(out)
		return changes, nil
	}

	out, err := r.git(ctx, "diff", "--name-status", "--no-renames", from, to, "--", subPath)
	if err != nil {
		return changes, fmt.Errorf("diff %s..%s: %w: %s", shortRev(from), shortRev(to), err, out)
	}

	for _, line := range splitLines(out) {
		status, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		switch status[0] {
		case 'A':
			changes.Added = append(changes.Added, path)
		case 'M', 'T':
			changes.Modified = append(changes.Modified, path)
		case 'D':
			changes.Removed = append(changes.Removed, path)
		default:
			r.client.logger.Warn("unhandled diff status", "status", status, "path", path)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Removed)
	return changes, nil
}

// ReadFile returns the content of path at the given revision.
func (r *Repo) ReadFile(ctx context.Context, revision, path string) (string, error) {
	out, err := r.git(ctx, "show", revision+":"+path)
	if err != nil {
		if strings.Contains(out, "does not exist") || strings.Contains(out, "exists on disk, but not in") {
			return "", errors.FileMissing(path)
		}
		return "", fmt.Errorf("show %s:%s: %w: %s", shortRev(revision), path, err, out)
	}
	return out, nil
}

// History returns the commits touching path, oldest first. A path with no
// committed history yields an empty slice and no error.
func (r *Repo) History(ctx context.Context, path string) ([]Commit, error) {
	format := "%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%aI"
	out, err := r.git(ctx, "log", "--follow", "--format="+format, "--", path)
	if err != nil {
		return nil, fmt.Errorf("log %s: %w: %s", path, err, out)
	}

	lines := splitLines(out)
	commits := make([]Commit, 0, len(lines))
	// git log walks newest to oldest; reverse while parsing.
	for i := len(lines) - 1; i >= 0; i-- {
		c, err := parseCommitLine(lines[i])
		if err != nil {
			return nil, fmt.Errorf("log %s: %w", path, err)
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// CommitInfo returns the author and timestamp of a single revision. Used as
// the history fallback for files added in the revision being processed.
func (r *Repo) CommitInfo(ctx context.Context, revision string) (Commit, error) {
	format := "%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%aI"
	out, err := r.git(ctx, "show", "--no-patch", "--format="+format, revision)
	if err != nil {
		return Commit{}, fmt.Errorf("show %s: %w: %s", shortRev(revision), err, out)
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return Commit{}, fmt.Errorf("show %s: empty output", shortRev(revision))
	}
	return parseCommitLine(lines[0])
}

// git runs a git command inside the working copy.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.client.run(ctx, r.dir, args...)
}

// run executes git with the given args and returns the combined output.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never fall through to interactive credential prompts.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func parseCommitLine(line string) (Commit, error) {
	parts := strings.Split(line, fieldSep)
	if len(parts) != 4 {
		return Commit{}, fmt.Errorf("malformed log line %q", line)
	}
	when, err := time.Parse(time.RFC3339, parts[3])
	if err != nil {
		return Commit{}, fmt.Errorf("parse commit time %q: %w", parts[3], err)
	}
	return Commit{
		Revision: parts[0],
		Author:   domain.Author{Name: parts[1], Mail: parts[2]},
		When:     when,
	}, nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func shortRev(rev string) string {
	if len(rev) > 10 {
		return rev[:10]
	}
	return rev
}
