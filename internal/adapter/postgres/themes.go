package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/jamscore/internal/domain"
)

type themeRepo struct{ t *tx }

const themeColumns = `id, event_id, submitter_id, title, slug, status, score, notes,
	rating_elimination, rating_shortlist, normalized_score, ranking, created_at`

func scanTheme(row pgx.Row) (*domain.ThemeIdea, error) {
	var t domain.ThemeIdea
	err := row.Scan(&t.ID, &t.EventID, &t.SubmitterID, &t.Title, &t.Slug, &t.Status, &t.Score, &t.Notes,
		&t.RatingElimination, &t.RatingShortlist, &t.NormalizedScore, &t.Ranking, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r themeRepo) get(ctx context.Context, id int64, suffix string) (*domain.ThemeIdea, error) {
	t, err := scanTheme(r.t.q.QueryRow(ctx, "SELECT "+themeColumns+" FROM theme_ideas WHERE id = $1"+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrThemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme %d: %w", id, err)
	}
	return t, nil
}

func (r themeRepo) list(ctx context.Context, where string, args ...any) ([]*domain.ThemeIdea, error) {
	return r.query(ctx, where, "", args...)
}

func (r themeRepo) query(ctx context.Context, where, suffix string, args ...any) ([]*domain.ThemeIdea, error) {
	rows, err := r.t.q.Query(ctx, "SELECT "+themeColumns+" FROM theme_ideas WHERE "+where+" ORDER BY id"+suffix, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ThemeIdea, error) { return scanTheme(row) })
}

func (r themeRepo) GetByID(ctx context.Context, id int64) (*domain.ThemeIdea, error) {
	return r.get(ctx, id, "")
}

func (r themeRepo) GetForUpdate(ctx context.Context, id int64) (*domain.ThemeIdea, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r themeRepo) ListByUser(ctx context.Context, eventID, userID int64) ([]*domain.ThemeIdea, error) {
	return r.list(ctx, "event_id = $1 AND submitter_id = $2", eventID, userID)
}

// ListByStatus lists every theme of the event when no status is given.
func (r themeRepo) ListByStatus(ctx context.Context, eventID int64, statuses ...domain.ThemeStatus) ([]*domain.ThemeIdea, error) {
	return r.byStatus(ctx, eventID, "", statuses)
}

func (r themeRepo) ListByStatusForUpdate(ctx context.Context, eventID int64, statuses ...domain.ThemeStatus) ([]*domain.ThemeIdea, error) {
	return r.byStatus(ctx, eventID, " FOR UPDATE", statuses)
}

func (r themeRepo) byStatus(ctx context.Context, eventID int64, suffix string, statuses []domain.ThemeStatus) ([]*domain.ThemeIdea, error) {
	if len(statuses) == 0 {
		return r.query(ctx, "event_id = $1", suffix, eventID)
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return r.query(ctx, "event_id = $1 AND status = ANY($2)", suffix, eventID, names)
}

func (r themeRepo) ExistsSlug(ctx context.Context, eventID int64, slug string) (bool, error) {
	var exists bool
	err := r.t.q.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM theme_ideas WHERE event_id = $1 AND slug = $2)", eventID, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check theme slug: %w", err)
	}
	return exists, nil
}

func (r themeRepo) Create(ctx context.Context, t *domain.ThemeIdea) error {
	t.CreatedAt = r.t.now(t.CreatedAt)
	err := r.t.q.QueryRow(ctx, `
		INSERT INTO theme_ideas (event_id, submitter_id, title, slug, status, score, notes,
			rating_elimination, rating_shortlist, normalized_score, ranking, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		t.EventID, t.SubmitterID, t.Title, t.Slug, t.Status, t.Score, t.Notes,
		t.RatingElimination, t.RatingShortlist, t.NormalizedScore, t.Ranking, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to insert theme: %w", err)
	}
	return nil
}

func (r themeRepo) Update(ctx context.Context, t *domain.ThemeIdea) error {
	err := r.t.execOne(ctx, domain.ErrThemeNotFound, `
		UPDATE theme_ideas SET title = $2, slug = $3, status = $4, score = $5, notes = $6,
			rating_elimination = $7, rating_shortlist = $8, normalized_score = $9, ranking = $10
		WHERE id = $1`,
		t.ID, t.Title, t.Slug, t.Status, t.Score, t.Notes,
		t.RatingElimination, t.RatingShortlist, t.NormalizedScore, t.Ranking)
	if err != nil && !errors.Is(err, domain.ErrThemeNotFound) {
		return fmt.Errorf("failed to update theme %d: %w", t.ID, err)
	}
	return err
}

// Delete removes the theme; its votes go with it through the foreign key.
func (r themeRepo) Delete(ctx context.Context, id int64) error {
	err := r.t.execOne(ctx, domain.ErrThemeNotFound, "DELETE FROM theme_ideas WHERE id = $1", id)
	if err != nil && !errors.Is(err, domain.ErrThemeNotFound) {
		return fmt.Errorf("failed to delete theme %d: %w", id, err)
	}
	return err
}

func (r themeRepo) CountByStatus(ctx context.Context, eventID int64) (map[domain.ThemeStatus]int, error) {
	rows, err := r.t.q.Query(ctx,
		"SELECT status, COUNT(*) FROM theme_ideas WHERE event_id = $1 GROUP BY status", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count themes of event %d: %w", eventID, err)
	}
	defer rows.Close()

	counts := make(map[domain.ThemeStatus]int)
	for rows.Next() {
		var status domain.ThemeStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan theme count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r themeRepo) GetVote(ctx context.Context, userID, themeID int64) (*domain.ThemeVote, error) {
	var v domain.ThemeVote
	err := r.t.q.QueryRow(ctx,
		"SELECT user_id, theme_id, event_id, score, updated_at FROM theme_votes WHERE user_id = $1 AND theme_id = $2",
		userID, themeID).Scan(&v.UserID, &v.ThemeID, &v.EventID, &v.Score, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load theme vote: %w", err)
	}
	return &v, nil
}

func (r themeRepo) UpsertVote(ctx context.Context, v domain.ThemeVote) error {
	_, err := r.t.q.Exec(ctx, `
		INSERT INTO theme_votes (user_id, theme_id, event_id, score, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, theme_id) DO UPDATE
		SET event_id = EXCLUDED.event_id, score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`,
		v.UserID, v.ThemeID, v.EventID, v.Score, r.t.now(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to store theme vote: %w", err)
	}
	return nil
}

func (r themeRepo) DeleteVotes(ctx context.Context, themeID int64) error {
	if _, err := r.t.q.Exec(ctx, "DELETE FROM theme_votes WHERE theme_id = $1", themeID); err != nil {
		return fmt.Errorf("failed to delete votes of theme %d: %w", themeID, err)
	}
	return nil
}

func (r themeRepo) AppendVoteHistory(ctx context.Context, rec domain.ThemeVoteRecord) error {
	_, err := r.t.q.Exec(ctx,
		"INSERT INTO theme_vote_history (user_id, theme_id, event_id, score, cast_at) VALUES ($1, $2, $3, $4, $5)",
		rec.UserID, rec.ThemeID, rec.EventID, rec.Score, r.t.now(rec.CastAt))
	if err != nil {
		return fmt.Errorf("failed to append vote history: %w", err)
	}
	return nil
}

func (r themeRepo) ListVoteHistory(ctx context.Context, eventID, userID int64) ([]domain.ThemeVoteRecord, error) {
	rows, err := r.t.q.Query(ctx, `
		SELECT user_id, theme_id, event_id, score, cast_at FROM theme_vote_history
		WHERE event_id = $1 AND user_id = $2 ORDER BY id`, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vote history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ThemeVoteRecord, error) {
		var rec domain.ThemeVoteRecord
		err := row.Scan(&rec.UserID, &rec.ThemeID, &rec.EventID, &rec.Score, &rec.CastAt)
		return rec, err
	})
}

func (r themeRepo) VoteTotals(ctx context.Context, eventID int64) (int, int, error) {
	var votes, voters int
	err := r.t.q.QueryRow(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT user_id) FROM theme_vote_history WHERE event_id = $1",
		eventID).Scan(&votes, &voters)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count votes of event %d: %w", eventID, err)
	}
	return votes, voters, nil
}
