package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/store"
)

// repositoryColumns is the ordered list of columns selected in repository
// queries. Must match the scan order in scanRepository.
const repositoryColumns = `id, url, identifier, directory`

// scanRepository scans a row into a domain.Repository.
func scanRepository(scanner interface{ Scan(dest ...any) error }) (*domain.Repository, error) {
	var (
		r          domain.Repository
		identifier string
	)

	if err := scanner.Scan(&r.ID, &r.URL, &identifier, &r.Directory); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseIdentifier(identifier)
	if err != nil {
		return nil, fmt.Errorf("stored identifier %q: %w", identifier, err)
	}
	r.Identifier = parsed
	return &r, nil
}

// CreateRepository inserts a repository together with its empty meta and
// data rows. Returns store.ErrAlreadyExists on a duplicate identifier.
func (s *Store) CreateRepository(ctx context.Context, repo *domain.Repository) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO repository (id, url, identifier, directory)
		VALUES (?, ?, ?, ?)`,
		repo.ID, repo.URL, repo.Identifier.String(), repo.Directory,
	)
	if err != nil {
		if isUniqueViolation(err, "repository.identifier") {
			return store.ErrAlreadyExists
		}
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repository_meta (repository_id) VALUES (?)`, repo.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repository_data (repository_id) VALUES (?)`, repo.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetRepository retrieves a repository by its ID.
func (s *Store) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repository WHERE id = ?`, id)

	r, err := scanRepository(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRepositoryByIdentifier retrieves a repository by its canonical identifier.
func (s *Store) GetRepositoryByIdentifier(ctx context.Context, identifier string) (*domain.Repository, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repository WHERE identifier = ?`, identifier)

	r, err := scanRepository(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRepositories returns all repositories ordered by identifier.
func (s *Store) ListRepositories(ctx context.Context) ([]*domain.Repository, error) {
	return s.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repository ORDER BY identifier ASC`)
}

// ListPublicRepositories returns repositories eligible for public discovery:
// flagged public with a non-empty description and language.
func (s *Store) ListPublicRepositories(ctx context.Context) ([]*domain.Repository, error) {
	return s.queryRepositories(ctx, `
		SELECT `+repositoryColumns+`
		FROM repository r
		JOIN repository_meta m ON m.repository_id = r.id
		WHERE m.public = 1 AND m.description != '' AND m.language != ''
		ORDER BY identifier ASC`)
}

func (s *Store) queryRepositories(ctx context.Context, query string, args ...any) ([]*domain.Repository, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []*domain.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository. Foreign key cascades remove its
// tags, their aliases, meta, join rows, stats, and any subscriptions.
func (s *Store) DeleteRepository(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repository WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRepositoryData returns the sync bookkeeping row for a repository.
func (s *Store) GetRepositoryData(ctx context.Context, id string) (*domain.RepositoryData, error) {
	var (
		db               domain.RepositoryData
		updated, checked string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT updated, checked, revision FROM repository_data WHERE repository_id = ?`, id)
	if err := row.Scan(&updated, &checked, &db.Revision); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var err error
	if db.Updated, err = parseTime(updated); err != nil {
		return nil, err
	}
	if db.Checked, err = parseTime(checked); err != nil {
		return nil, err
	}
	return &db, nil
}

// GetRepositoryMeta returns the descriptive metadata row plus the
// repository-level categories.
func (s *Store) GetRepositoryMeta(ctx context.Context, id string) (*domain.RepositoryMeta, error) {
	var m domain.RepositoryMeta
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, public, language FROM repository_meta WHERE repository_id = ?`, id)
	if err := row.Scan(&m.Name, &m.Description, &m.Public, &m.Language); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name
		FROM repository_category rc
		JOIN category c ON c.id = rc.category_id
		WHERE rc.repository_id = ?
		ORDER BY c.name ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		m.Categories = append(m.Categories, name)
	}
	return &m, rows.Err()
}

// UpdateRepositoryMeta replaces the descriptive metadata and the
// repository-level category set.
func (s *Store) UpdateRepositoryMeta(ctx context.Context, id string, meta domain.RepositoryMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE repository_meta
		SET name = ?, description = ?, public = ?, language = ?
		WHERE repository_id = ?`,
		meta.Name, meta.Description, meta.Public, meta.Language, id,
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM repository_category WHERE repository_id = ?`, id); err != nil {
		return err
	}
	for _, name := range meta.Categories {
		categoryID, err := upsertCategory(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO repository_category (repository_id, category_id)
			VALUES (?, ?)
			ON CONFLICT (repository_id, category_id) DO NOTHING`, id, categoryID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkRepositoryChecked updates only the checked timestamp. Called on every
// sync attempt, successful or not, so rate limiting keeps applying.
func (s *Store) MarkRepositoryChecked(ctx context.Context, id string, checked time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repository_data SET checked = ? WHERE repository_id = ?`,
		formatTime(checked), id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkRepositorySynced advances the synced revision and both timestamps
// after a successful reconciliation.
func (s *Store) MarkRepositorySynced(ctx context.Context, id, revision string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repository_data SET updated = ?, checked = ?, revision = ? WHERE repository_id = ?`,
		formatTime(at), formatTime(at), revision, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
