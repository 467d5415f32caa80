package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/jamscore/internal/domain"
)

type highScoreRepo struct{ t *tx }

const highScoreColumns = "id, entry_id, user_id, score, ranking, active, submitted_at"

func scanHighScore(row pgx.Row) (*domain.HighScore, error) {
	var hs domain.HighScore
	if err := row.Scan(&hs.ID, &hs.EntryID, &hs.UserID, &hs.Score, &hs.Ranking, &hs.Active, &hs.SubmittedAt); err != nil {
		return nil, err
	}
	return &hs, nil
}

func (r highScoreRepo) list(ctx context.Context, where string, args ...any) ([]*domain.HighScore, error) {
	rows, err := r.t.q.Query(ctx, "SELECT "+highScoreColumns+" FROM high_scores WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list high scores: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.HighScore, error) { return scanHighScore(row) })
}

func (r highScoreRepo) GetByID(ctx context.Context, id int64) (*domain.HighScore, error) {
	hs, err := scanHighScore(r.t.q.QueryRow(ctx, "SELECT "+highScoreColumns+" FROM high_scores WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrHighScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load high score %d: %w", id, err)
	}
	return hs, nil
}

func (r highScoreRepo) GetByUser(ctx context.Context, entryID, userID int64) (*domain.HighScore, error) {
	hs, err := scanHighScore(r.t.q.QueryRow(ctx,
		"SELECT "+highScoreColumns+" FROM high_scores WHERE entry_id = $1 AND user_id = $2", entryID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load high score of user %d: %w", userID, err)
	}
	return hs, nil
}

func (r highScoreRepo) ListByEntry(ctx context.Context, entryID int64) ([]*domain.HighScore, error) {
	return r.list(ctx, "entry_id = $1", entryID)
}

func (r highScoreRepo) ListActiveByUser(ctx context.Context, entryIDs []int64, userID int64) ([]*domain.HighScore, error) {
	return r.list(ctx, "entry_id = ANY($1) AND user_id = $2 AND active", nonNil(entryIDs), userID)
}

func (r highScoreRepo) ListUserIDs(ctx context.Context, entryIDs []int64) ([]int64, error) {
	rows, err := r.t.q.Query(ctx,
		"SELECT DISTINCT user_id FROM high_scores WHERE entry_id = ANY($1) ORDER BY user_id", nonNil(entryIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list high score users: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// Save inserts hs when it has no ID yet and updates it otherwise.
func (r highScoreRepo) Save(ctx context.Context, hs *domain.HighScore) error {
	hs.SubmittedAt = r.t.now(hs.SubmittedAt)
	if hs.ID == 0 {
		err := r.t.q.QueryRow(ctx, `
			INSERT INTO high_scores (entry_id, user_id, score, ranking, active, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			hs.EntryID, hs.UserID, hs.Score, hs.Ranking, hs.Active, hs.SubmittedAt,
		).Scan(&hs.ID)
		if err != nil {
			return fmt.Errorf("failed to insert high score: %w", err)
		}
		return nil
	}

	err := r.t.execOne(ctx, domain.ErrHighScoreNotFound, `
		UPDATE high_scores SET score = $2, ranking = $3, active = $4, submitted_at = $5
		WHERE id = $1`, hs.ID, hs.Score, hs.Ranking, hs.Active, hs.SubmittedAt)
	if err != nil && !errors.Is(err, domain.ErrHighScoreNotFound) {
		return fmt.Errorf("failed to update high score %d: %w", hs.ID, err)
	}
	return err
}

func (r highScoreRepo) SetRanking(ctx context.Context, id int64, ranking *int) error {
	err := r.t.execOne(ctx, domain.ErrHighScoreNotFound, "UPDATE high_scores SET ranking = $2 WHERE id = $1", id, ranking)
	if err != nil && !errors.Is(err, domain.ErrHighScoreNotFound) {
		return fmt.Errorf("failed to rank high score %d: %w", id, err)
	}
	return err
}

func (r highScoreRepo) Delete(ctx context.Context, id int64) error {
	err := r.t.execOne(ctx, domain.ErrHighScoreNotFound, "DELETE FROM high_scores WHERE id = $1", id)
	if err != nil && !errors.Is(err, domain.ErrHighScoreNotFound) {
		return fmt.Errorf("failed to delete high score %d: %w", id, err)
	}
	return err
}
