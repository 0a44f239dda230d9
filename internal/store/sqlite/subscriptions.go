package sqlite

import (
	"context"
	"strings"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
	"github.com/tagvaultapp/tagvault-server/internal/store"
)

// Subscribe links a guild to a repository with a priority. Subscribing to an
// already-subscribed repository updates the priority in place; the original
// subscription keeps its insertion order for ranking tie-breaks.
func (s *Store) Subscribe(ctx context.Context, guildID, repositoryID string, priority int) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_repository (guild_id, repository_id, priority)
		VALUES (?, ?, ?)
		ON CONFLICT (guild_id, repository_id) DO UPDATE SET priority = excluded.priority`,
		guildID, repositoryID, priority,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound
		}
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Unsubscribe removes a guild's subscription. The repository and its tags
// are untouched; only the link and the guild's usage stats become invisible.
func (s *Store) Unsubscribe(ctx context.Context, guildID, repositoryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM guild_repository WHERE guild_id = ? AND repository_id = ?`,
		guildID, repositoryID)
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

// ListSubscriptions returns a guild's subscribed repositories with their
// priorities, highest priority first.
func (s *Store) ListSubscriptions(ctx context.Context, guildID string) ([]store.SubscribedRepository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.url, r.identifier, r.directory, gr.priority
		FROM guild_repository gr
		JOIN repository r ON r.id = gr.repository_id
		WHERE gr.guild_id = ?
		ORDER BY gr.priority DESC, gr.rowid ASC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []store.SubscribedRepository
	for rows.Next() {
		var (
			sub        store.SubscribedRepository
			identifier string
		)
		err := rows.Scan(&sub.Repository.ID, &sub.Repository.URL, &identifier, &sub.Repository.Directory, &sub.Priority)
		if err != nil {
			return nil, err
		}
		if sub.Repository.Identifier, err = domain.ParseIdentifier(identifier); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
