package sqlite

import (
	"context"
	"database/sql"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/store"
)

// tagColumns is the ordered list of columns selected in tag queries.
// Must match the scan order in scanTag.
const tagColumns = `t.id, t.repository_id, t.document_id, t.name, t.content`

// scanTag scans a sql.Row (or sql.Rows via its Scan method) into a domain.Tag.
func scanTag(scanner interface{ Scan(dest ...any) error }) (*domain.Tag, error) {
	var t domain.Tag
	err := scanner.Scan(&t.ID, &t.RepositoryID, &t.DocumentID, &t.Name, &t.Content)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveTagByID retrieves a tag by its persisted id, provided the guild
// subscribes to the owning repository. Ranking does not apply to id lookups.
func (s *Store) ResolveTagByID(ctx context.Context, guildID string, tagID int64) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tagColumns+`
		FROM tag t
		JOIN guild_repository gr ON gr.repository_id = t.repository_id
		WHERE t.id = ? AND gr.guild_id = ?`, tagID, guildID)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveTagByName resolves an exact tag name for a guild across its
// subscribed repositories. Primary names and aliases both match; ordering is
// subscription priority first, then primary over alias, then subscription
// insertion order. The top-ranked row wins.
func (s *Store) ResolveTagByName(ctx context.Context, guildID, name string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH names AS (SELECT t.id AS tag_id, t.repository_id, t.name AS name, 1 AS global_rank
		               FROM tag t
		               UNION ALL
		               SELECT a.tag_id, t.repository_id, a.alias AS name, 2 AS global_rank
		               FROM tag_alias a
		                        JOIN tag t ON t.id = a.tag_id),
		     ranked AS (SELECT n.tag_id,
		                       row_number() OVER (ORDER BY gr.priority DESC, n.global_rank ASC, gr.rowid ASC) AS rank
		                FROM guild_repository gr
		                         JOIN names n ON n.repository_id = gr.repository_id
		                WHERE gr.guild_id = ?
		                  AND n.name = ?)
		SELECT `+tagColumns+`
		FROM ranked r
		         JOIN tag t ON t.id = r.tag_id
		WHERE r.rank = 1`, guildID, name)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CompleteTags returns up to 25 case-insensitive substring matches over the
// primary tag names visible to the guild. When several repositories export
// the same name, only the top-ranked holder keeps the bare name; the rest
// are qualified as "name (repository-identifier)".
func (s *Store) CompleteTags(ctx context.Context, guildID, value string) ([]domain.CompletedTag, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH ranked AS (SELECT t.id,
		                       t.name,
		                       r.identifier,
		                       row_number() OVER (PARTITION BY t.name ORDER BY gr.priority DESC, gr.rowid ASC) AS rank
		                FROM guild_repository gr
		                         JOIN tag t ON t.repository_id = gr.repository_id
		                         JOIN repository r ON r.id = gr.repository_id
		                WHERE gr.guild_id = ?
		                  AND instr(lower(t.name), lower(?)) > 0)
		SELECT id, CASE WHEN rank = 1 THEN name ELSE name || ' (' || identifier || ')' END AS name
		FROM ranked
		ORDER BY ranked.name ASC, rank ASC
		LIMIT 25`, guildID, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completed []domain.CompletedTag
	for rows.Next() {
		var c domain.CompletedTag
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		completed = append(completed, c)
	}
	return completed, rows.Err()
}

// RankingPage returns one page of the guild's tags ranked by usage count.
// Equal view counts share a rank; duplicate names across repositories are
// qualified the same way CompleteTags qualifies them.
func (s *Store) RankingPage(ctx context.Context, guildID string, page, size int) ([]domain.RankedTag, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH ranked AS (SELECT row_number() OVER (PARTITION BY t.name ORDER BY gr.priority DESC, gr.rowid ASC) AS duplicate,
		                       dense_rank() OVER (ORDER BY coalesce(s.views, 0) DESC)                          AS rank,
		                       gr.priority,
		                       t.name,
		                       r.identifier,
		                       coalesce(s.views, 0)                                                            AS views
		                FROM guild_repository gr
		                         JOIN tag t ON t.repository_id = gr.repository_id
		                         JOIN repository r ON r.id = gr.repository_id
		                         LEFT JOIN tag_stat s ON s.tag_id = t.id AND s.guild_id = gr.guild_id
		                WHERE gr.guild_id = ?)
		SELECT rank, CASE WHEN duplicate = 1 THEN name ELSE name || ' (' || identifier || ')' END AS name, views
		FROM ranked
		ORDER BY views DESC, priority DESC, name ASC
		LIMIT ? OFFSET ?`, guildID, size, size*page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranking []domain.RankedTag
	for rows.Next() {
		var r domain.RankedTag
		if err := rows.Scan(&r.Rank, &r.Name, &r.Views); err != nil {
			return nil, err
		}
		ranking = append(ranking, r)
	}
	return ranking, rows.Err()
}

// RandomTag returns a uniformly random tag among those visible to the guild.
func (s *Store) RandomTag(ctx context.Context, guildID string) (*domain.Tag, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tagColumns+`
		FROM guild_repository gr
		         JOIN tag t ON t.repository_id = gr.repository_id
		WHERE gr.guild_id = ?
		ORDER BY random()
		LIMIT 1`, guildID)

	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CountTags counts the tags visible to a guild.
func (s *Store) CountTags(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(t.id)
		FROM guild_repository gr
		         JOIN tag t ON t.repository_id = gr.repository_id
		WHERE gr.guild_id = ?`, guildID).Scan(&count)
	return count, err
}

// TagUsed atomically increments the per-(guild, tag) usage counter,
// inserting it at 1 on first use. Safe under concurrent callers: the
// increment happens inside the database, so no update is lost.
func (s *Store) TagUsed(ctx context.Context, guildID string, tagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tag_stat (guild_id, tag_id, views)
		VALUES (?, ?, 1)
		ON CONFLICT (guild_id, tag_id) DO UPDATE SET views = views + 1`,
		guildID, tagID)
	return err
}

// GetTagDetail returns a tag with its aliases, categories, authors, and meta.
func (s *Store) GetTagDetail(ctx context.Context, tagID int64) (*store.TagDetail, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tag t WHERE t.id = ?`, tagID)
	t, err := scanTag(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &store.TagDetail{Tag: *t}

	repo, err := s.GetRepository(ctx, t.RepositoryID)
	if err != nil {
		return nil, err
	}
	detail.Repository = *repo

	if detail.Aliases, err = s.tagAliases(ctx, tagID); err != nil {
		return nil, err
	}
	if detail.Categories, err = s.tagCategories(ctx, tagID); err != nil {
		return nil, err
	}
	if detail.Authors, err = s.tagAuthors(ctx, tagID); err != nil {
		return nil, err
	}
	if err = s.tagMeta(ctx, tagID, &detail.Meta); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListRepositoryTags returns all tags of one repository ordered by name.
func (s *Store) ListRepositoryTags(ctx context.Context, repositoryID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tag t WHERE t.repository_id = ? ORDER BY t.name ASC`, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Store) tagAliases(ctx context.Context, tagID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias FROM tag_alias WHERE tag_id = ? ORDER BY rowid ASC`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func (s *Store) tagCategories(ctx context.Context, tagID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name
		FROM tag_category tc
		JOIN category c ON c.id = tc.category_id
		WHERE tc.tag_id = ?
		ORDER BY c.name ASC`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		categories = append(categories, name)
	}
	return categories, rows.Err()
}

func (s *Store) tagAuthors(ctx context.Context, tagID int64) ([]domain.Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.mail
		FROM tag_author ta
		JOIN author a ON a.id = ta.author_id
		WHERE ta.tag_id = ?
		ORDER BY a.name ASC, a.mail ASC`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		var a domain.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.Mail); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

func (s *Store) tagMeta(ctx context.Context, tagID int64, meta *domain.TagMeta) error {
	var created, modified string
	err := s.db.QueryRowContext(ctx, `
		SELECT m.image, m.created, m.modified,
		       ca.id, ca.name, ca.mail,
		       ma.id, ma.name, ma.mail
		FROM tag_meta m
		JOIN author ca ON ca.id = m.created_by
		JOIN author ma ON ma.id = m.modified_by
		WHERE m.tag_id = ?`, tagID).Scan(
		&meta.Image, &created, &modified,
		&meta.CreatedBy.ID, &meta.CreatedBy.Name, &meta.CreatedBy.Mail,
		&meta.ModifiedBy.ID, &meta.ModifiedBy.Name, &meta.ModifiedBy.Mail,
	)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	if meta.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	meta.ModifiedAt, err = parseTime(modified)
	return err
}
