package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/store"
)

// Reconcile applies one sync batch for a repository inside a single
// transaction. Documents are upserted by their front-matter id, removals
// are resolved by the same id, and linked authors and categories are
// deduplicated globally. A document whose name collides with another tag
// of the same repository is skipped and recorded, not fatal.
func (s *Store) Reconcile(ctx context.Context, repositoryID string, batch store.ReconcileBatch) (*store.ReconcileResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	result := &store.ReconcileResult{}

	for _, doc := range batch.Documents {
		if err := s.applyDocument(ctx, tx, repositoryID, doc, result); err != nil {
			return nil, err
		}
	}

	for _, documentID := range batch.RemovedDocumentIDs {
		removed, err := s.removeDocument(ctx, tx, repositoryID, documentID, result)
		if err != nil {
			return nil, err
		}
		if removed {
			result.Removed++
		}
	}

	if batch.ReplaceAll {
		if err := s.sweepAbsentDocuments(ctx, tx, repositoryID, batch, result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile: %w", err)
	}
	return result, nil
}

func (s *Store) applyDocument(ctx context.Context, tx *sql.Tx, repositoryID string, doc domain.TagDocument, result *store.ReconcileResult) error {
	var (
		tagID    int64
		existing bool
	)
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM tag WHERE repository_id = ? AND document_id = ?`,
		repositoryID, doc.DocumentID).Scan(&tagID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return err
	default:
		existing = true
	}

	if existing {
		_, err = tx.ExecContext(ctx,
			`UPDATE tag SET name = ?, content = ? WHERE id = ?`,
			doc.Name, doc.Content, tagID)
	} else {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO tag (repository_id, document_id, name, content)
			 VALUES (?, ?, ?, ?)
			 RETURNING id`,
			repositoryID, doc.DocumentID, doc.Name, doc.Content).Scan(&tagID)
	}
	if isUniqueViolation(err, "tag.repository_id, tag.name") {
		result.Skipped = append(result.Skipped, store.SkippedDocument{
			DocumentID: doc.DocumentID,
			Name:       doc.Name,
			Reason:     fmt.Sprintf("tag name %q already taken by another document in this repository", doc.Name),
		})
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.replaceAliases(ctx, tx, tagID, doc.Aliases); err != nil {
		return err
	}
	if err := s.replaceTagCategories(ctx, tx, tagID, doc.Categories); err != nil {
		return err
	}
	if err := s.replaceTagAuthors(ctx, tx, tagID, doc.Meta.Contributors); err != nil {
		return err
	}
	if err := s.upsertTagMeta(ctx, tx, tagID, doc); err != nil {
		return err
	}

	if existing {
		result.Updated++
	} else {
		result.Created++
	}
	result.Tags = append(result.Tags, domain.Tag{
		ID:           tagID,
		RepositoryID: repositoryID,
		DocumentID:   doc.DocumentID,
		Name:         doc.Name,
		Content:      doc.Content,
	})
	return nil
}

func (s *Store) removeDocument(ctx context.Context, tx *sql.Tx, repositoryID, documentID string, result *store.ReconcileResult) (bool, error) {
	var tagID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM tag WHERE repository_id = ? AND document_id = ?`,
		repositoryID, documentID).Scan(&tagID)
	if err == sql.ErrNoRows {
		// Never synced, nothing to remove.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Aliases, meta, stats, and link rows cascade with the tag row.
	// Authors and categories stay: other tags may still reference them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag WHERE id = ?`, tagID); err != nil {
		return false, err
	}
	result.RemovedTagIDs = append(result.RemovedTagIDs, tagID)
	return true, nil
}

// sweepAbsentDocuments deletes the repository's tags whose documents are
// absent from a full-set batch. Documents the batch skipped still exist
// upstream and keep their rows.
func (s *Store) sweepAbsentDocuments(ctx context.Context, tx *sql.Tx, repositoryID string, batch store.ReconcileBatch, result *store.ReconcileResult) error {
	present := make(map[string]bool, len(batch.Documents))
	for _, doc := range batch.Documents {
		present[doc.DocumentID] = true
	}
	for _, documentID := range batch.RemovedDocumentIDs {
		present[documentID] = true
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT document_id FROM tag WHERE repository_id = ?`, repositoryID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var absent []string
	for rows.Next() {
		var documentID string
		if err := rows.Scan(&documentID); err != nil {
			return err
		}
		if !present[documentID] {
			absent = append(absent, documentID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, documentID := range absent {
		removed, err := s.removeDocument(ctx, tx, repositoryID, documentID, result)
		if err != nil {
			return err
		}
		if removed {
			result.Removed++
		}
	}
	return nil
}

func (s *Store) replaceAliases(ctx context.Context, tx *sql.Tx, tagID int64, aliases []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_alias WHERE tag_id = ?`, tagID); err != nil {
		return err
	}
	for _, alias := range aliases {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tag_alias (tag_id, alias) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			tagID, alias)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) replaceTagCategories(ctx context.Context, tx *sql.Tx, tagID int64, categories []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_category WHERE tag_id = ?`, tagID); err != nil {
		return err
	}
	for _, name := range categories {
		categoryID, err := upsertCategory(ctx, tx, name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tag_category (tag_id, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			tagID, categoryID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) replaceTagAuthors(ctx context.Context, tx *sql.Tx, tagID int64, authors []domain.Author) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tag_author WHERE tag_id = ?`, tagID); err != nil {
		return err
	}
	for _, author := range authors {
		authorID, err := upsertAuthor(ctx, tx, author)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tag_author (tag_id, author_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			tagID, authorID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertTagMeta(ctx context.Context, tx *sql.Tx, tagID int64, doc domain.TagDocument) error {
	createdBy, err := upsertAuthor(ctx, tx, doc.Meta.Created.Author)
	if err != nil {
		return err
	}
	modifiedBy, err := upsertAuthor(ctx, tx, doc.Meta.Modified.Author)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tag_meta (tag_id, image, created, created_by, modified, modified_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tag_id) DO UPDATE SET image       = excluded.image,
		                                   created     = excluded.created,
		                                   created_by  = excluded.created_by,
		                                   modified    = excluded.modified,
		                                   modified_by = excluded.modified_by`,
		tagID, doc.Image,
		formatTime(doc.Meta.Created.When), createdBy,
		formatTime(doc.Meta.Modified.When), modifiedBy)
	return err
}

// upsertAuthor resolves an author row id by its exact (name, mail) pair,
// inserting it on first sight. Existing rows are never updated.
func upsertAuthor(ctx context.Context, tx *sql.Tx, author domain.Author) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM author WHERE name = ? AND mail = ?`,
		author.Name, author.Mail).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO author (name, mail) VALUES (?, ?) RETURNING id`,
		author.Name, author.Mail).Scan(&id)
	return id, err
}

// upsertCategory resolves a category row id case-insensitively, inserting
// the name on first sight. The first-seen spelling is kept.
func upsertCategory(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM category WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO category (name) VALUES (?) RETURNING id`, name).Scan(&id)
	return id, err
}
