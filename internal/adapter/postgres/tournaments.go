package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/jamscore/internal/domain"
)

type tournamentRepo struct{ t *tx }

func (r tournamentRepo) ListEntries(ctx context.Context, eventID int64) ([]domain.TournamentEntry, error) {
	rows, err := r.t.q.Query(ctx, `
		SELECT event_id, entry_id, ordering FROM tournament_entries
		WHERE event_id = $1 ORDER BY ordering, entry_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament entries of event %d: %w", eventID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TournamentEntry, error) {
		var te domain.TournamentEntry
		err := row.Scan(&te.EventID, &te.EntryID, &te.Ordering)
		return te, err
	})
}

func (r tournamentRepo) ListEventIDsByEntry(ctx context.Context, entryID int64) ([]int64, error) {
	rows, err := r.t.q.Query(ctx,
		"SELECT event_id FROM tournament_entries WHERE entry_id = $1 ORDER BY event_id", entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments of entry %d: %w", entryID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r tournamentRepo) SaveEntry(ctx context.Context, te domain.TournamentEntry) error {
	_, err := r.t.q.Exec(ctx, `
		INSERT INTO tournament_entries (event_id, entry_id, ordering) VALUES ($1, $2, $3)
		ON CONFLICT (event_id, entry_id) DO UPDATE SET ordering = EXCLUDED.ordering`,
		te.EventID, te.EntryID, te.Ordering)
	if err != nil {
		return fmt.Errorf("failed to store tournament entry: %w", err)
	}
	return nil
}

func (r tournamentRepo) DeleteEntry(ctx context.Context, eventID, entryID int64) error {
	err := r.t.execOne(ctx, domain.ErrTournamentEntryNotFound,
		"DELETE FROM tournament_entries WHERE event_id = $1 AND entry_id = $2", eventID, entryID)
	if err != nil && !errors.Is(err, domain.ErrTournamentEntryNotFound) {
		return fmt.Errorf("failed to delete tournament entry: %w", err)
	}
	return err
}

const scoreColumns = "event_id, user_id, score, entry_scores, ranking, updated_at"

func scanScore(row pgx.Row) (*domain.TournamentScore, error) {
	var s domain.TournamentScore
	var entryScores []byte
	if err := row.Scan(&s.EventID, &s.UserID, &s.Score, &entryScores, &s.Ranking, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entryScores, &s.EntryScores); err != nil {
		return nil, fmt.Errorf("failed to decode entry scores of user %d: %w", s.UserID, err)
	}
	return &s, nil
}

func (r tournamentRepo) GetScore(ctx context.Context, eventID, userID int64) (*domain.TournamentScore, error) {
	s, err := scanScore(r.t.q.QueryRow(ctx,
		"SELECT "+scoreColumns+" FROM tournament_scores WHERE event_id = $1 AND user_id = $2", eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tournament score: %w", err)
	}
	return s, nil
}

func (r tournamentRepo) ListScores(ctx context.Context, eventID int64, nonZeroOnly bool) ([]*domain.TournamentScore, error) {
	rows, err := r.t.q.Query(ctx, "SELECT "+scoreColumns+`
		FROM tournament_scores WHERE event_id = $1 AND (NOT $2 OR score <> 0)
		ORDER BY user_id`, eventID, nonZeroOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournament scores of event %d: %w", eventID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.TournamentScore, error) { return scanScore(row) })
}

func (r tournamentRepo) SaveScore(ctx context.Context, s *domain.TournamentScore) error {
	entryScores, err := json.Marshal(s.EntryScores)
	if err != nil {
		return fmt.Errorf("failed to encode entry scores: %w", err)
	}
	if s.EntryScores == nil {
		entryScores = []byte("{}")
	}
	s.UpdatedAt = r.t.now(s.UpdatedAt)

	_, err = r.t.q.Exec(ctx, `
		INSERT INTO tournament_scores (event_id, user_id, score, entry_scores, ranking, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET score = EXCLUDED.score, entry_scores = EXCLUDED.entry_scores,
			ranking = EXCLUDED.ranking, updated_at = EXCLUDED.updated_at`,
		s.EventID, s.UserID, s.Score, entryScores, s.Ranking, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store tournament score of user %d: %w", s.UserID, err)
	}
	return nil
}
