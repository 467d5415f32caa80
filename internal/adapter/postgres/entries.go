package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/jamscore/internal/domain"
)

type entryRepo struct{ t *tx }

const entryColumns = `id, event_id, title, division, team_user_ids, opt_outs, has_links,
	high_score_type, ratings, rankings, karma, rating_count`

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var e domain.Entry
	var ratings, rankings []byte
	err := row.Scan(&e.ID, &e.EventID, &e.Title, &e.Division, &e.TeamUserIDs, &e.OptOuts, &e.HasLinks,
		&e.HighScoreType, &ratings, &rankings, &e.Karma, &e.RatingCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ratings, &e.Ratings); err != nil {
		return nil, fmt.Errorf("failed to decode ratings of entry %d: %w", e.ID, err)
	}
	if err := json.Unmarshal(rankings, &e.Rankings); err != nil {
		return nil, fmt.Errorf("failed to decode rankings of entry %d: %w", e.ID, err)
	}
	return &e, nil
}

func encodeScores(e *domain.Entry) (ratings, rankings []byte, err error) {
	if ratings, err = json.Marshal(nonNil(e.Ratings)); err != nil {
		return
	}
	rankings, err = json.Marshal(nonNil(e.Rankings))
	return
}

func (r entryRepo) get(ctx context.Context, id int64, suffix string) (*domain.Entry, error) {
	e, err := scanEntry(r.t.q.QueryRow(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = $1"+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", id, err)
	}
	return e, nil
}

func (r entryRepo) Create(ctx context.Context, e *domain.Entry) error {
	ratings, rankings, err := encodeScores(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry scores: %w", err)
	}
	err = r.t.q.QueryRow(ctx, `
		INSERT INTO entries (event_id, title, division, team_user_ids, opt_outs, has_links,
			high_score_type, ratings, rankings, karma, rating_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.EventID, e.Title, e.Division, nonNil(e.TeamUserIDs), nonNil(e.OptOuts), e.HasLinks,
		e.HighScoreType, ratings, rankings, e.Karma, e.RatingCount,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r entryRepo) GetByID(ctx context.Context, id int64) (*domain.Entry, error) {
	return r.get(ctx, id, "")
}

func (r entryRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Entry, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r entryRepo) FindByUser(ctx context.Context, eventID, userID int64) (*domain.Entry, error) {
	e, err := scanEntry(r.t.q.QueryRow(ctx, "SELECT "+entryColumns+`
		FROM entries WHERE event_id = $1 AND $2 = ANY(team_user_ids)
		ORDER BY id LIMIT 1`, eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry of user %d: %w", userID, err)
	}
	return e, nil
}

func (r entryRepo) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Entry, error) {
	return r.listByEvent(ctx, eventID, "")
}

func (r entryRepo) ListByEventForUpdate(ctx context.Context, eventID int64) ([]*domain.Entry, error) {
	return r.listByEvent(ctx, eventID, " FOR UPDATE")
}

func (r entryRepo) listByEvent(ctx context.Context, eventID int64, suffix string) ([]*domain.Entry, error) {
	rows, err := r.t.q.Query(ctx, "SELECT "+entryColumns+" FROM entries WHERE event_id = $1 ORDER BY id"+suffix, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries of event %d: %w", eventID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Entry, error) { return scanEntry(row) })
}

func (r entryRepo) Update(ctx context.Context, e *domain.Entry) error {
	ratings, rankings, err := encodeScores(e)
	if err != nil {
		return fmt.Errorf("failed to encode scores of entry %d: %w", e.ID, err)
	}
	err = r.t.execOne(ctx, domain.ErrEntryNotFound, `
		UPDATE entries SET title = $2, division = $3, team_user_ids = $4, opt_outs = $5, has_links = $6,
			high_score_type = $7, ratings = $8, rankings = $9, karma = $10, rating_count = $11
		WHERE id = $1`,
		e.ID, e.Title, e.Division, nonNil(e.TeamUserIDs), nonNil(e.OptOuts), e.HasLinks,
		e.HighScoreType, ratings, rankings, e.Karma, e.RatingCount)
	if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
		return fmt.Errorf("failed to update entry %d: %w", e.ID, err)
	}
	return err
}

const entryVoteColumns = "user_id, entry_id, event_id, votes, updated_at"

func scanEntryVote(row pgx.Row) (domain.EntryVote, error) {
	var v domain.EntryVote
	var votes []byte
	if err := row.Scan(&v.UserID, &v.EntryID, &v.EventID, &votes, &v.UpdatedAt); err != nil {
		return v, err
	}
	if err := json.Unmarshal(votes, &v.Votes); err != nil {
		return v, fmt.Errorf("failed to decode vote of user %d on entry %d: %w", v.UserID, v.EntryID, err)
	}
	return v, nil
}

func (r entryRepo) listVotes(ctx context.Context, where string, args ...any) ([]domain.EntryVote, error) {
	rows, err := r.t.q.Query(ctx,
		"SELECT "+entryVoteColumns+" FROM entry_votes WHERE "+where+" ORDER BY entry_id, user_id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry votes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EntryVote, error) { return scanEntryVote(row) })
}

func (r entryRepo) GetVote(ctx context.Context, userID, entryID int64) (*domain.EntryVote, error) {
	v, err := scanEntryVote(r.t.q.QueryRow(ctx,
		"SELECT "+entryVoteColumns+" FROM entry_votes WHERE user_id = $1 AND entry_id = $2", userID, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entry vote: %w", err)
	}
	return &v, nil
}

func (r entryRepo) UpsertVote(ctx context.Context, v domain.EntryVote) error {
	votes, err := json.Marshal(nonNil(v.Votes))
	if err != nil {
		return fmt.Errorf("failed to encode entry vote: %w", err)
	}
	_, err = r.t.q.Exec(ctx, `
		INSERT INTO entry_votes (user_id, entry_id, event_id, votes, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, entry_id) DO UPDATE
		SET event_id = EXCLUDED.event_id, votes = EXCLUDED.votes, updated_at = EXCLUDED.updated_at`,
		v.UserID, v.EntryID, v.EventID, votes, r.t.now(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to store entry vote: %w", err)
	}
	return nil
}

func (r entryRepo) DeleteVote(ctx context.Context, userID, entryID int64) error {
	if _, err := r.t.q.Exec(ctx, "DELETE FROM entry_votes WHERE user_id = $1 AND entry_id = $2", userID, entryID); err != nil {
		return fmt.Errorf("failed to delete entry vote: %w", err)
	}
	return nil
}

func (r entryRepo) ListVotesForEntry(ctx context.Context, entryID int64) ([]domain.EntryVote, error) {
	return r.listVotes(ctx, "entry_id = $1", entryID)
}

func (r entryRepo) ListVotesByUsers(ctx context.Context, eventID int64, userIDs []int64) ([]domain.EntryVote, error) {
	return r.listVotes(ctx, "event_id = $1 AND user_id = ANY($2)", eventID, nonNil(userIDs))
}

type commentRepo struct{ t *tx }

func (r commentRepo) Save(ctx context.Context, c domain.Comment) error {
	_, err := r.t.q.Exec(ctx,
		"INSERT INTO comments (user_id, entry_id, event_id, karma) VALUES ($1, $2, $3, $4)",
		c.UserID, c.EntryID, c.EventID, c.Karma)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (r commentRepo) list(ctx context.Context, where string, args ...any) ([]domain.Comment, error) {
	rows, err := r.t.q.Query(ctx,
		"SELECT user_id, entry_id, event_id, karma FROM comments WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Comment, error) {
		var c domain.Comment
		err := row.Scan(&c.UserID, &c.EntryID, &c.EventID, &c.Karma)
		return c, err
	})
}

func (r commentRepo) ListForEntry(ctx context.Context, entryID int64) ([]domain.Comment, error) {
	return r.list(ctx, "entry_id = $1", entryID)
}

func (r commentRepo) ListByUsers(ctx context.Context, eventID int64, userIDs []int64) ([]domain.Comment, error) {
	return r.list(ctx, "event_id = $1 AND user_id = ANY($2)", eventID, nonNil(userIDs))
}
