package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/jamscore/internal/domain"
)

type eventRepo struct{ t *tx }

const eventColumns = `id, name, theme_phase, entry_phase, tournament_phase, categories,
	karma_farming_penalty, streamer_only_tournament, shortlist_elimination, theme_stats, created_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	var categories, elimination, stats []byte
	err := row.Scan(&ev.ID, &ev.Name, &ev.ThemePhase, &ev.EntryPhase, &ev.TournamentPhase, &categories,
		&ev.KarmaFarmingPenalty, &ev.StreamerOnlyTournament, &elimination, &stats, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &ev.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories of event %d: %w", ev.ID, err)
	}
	if err := json.Unmarshal(elimination, &ev.ShortlistElimination); err != nil {
		return nil, fmt.Errorf("failed to decode shortlist elimination of event %d: %w", ev.ID, err)
	}
	if err := json.Unmarshal(stats, &ev.ThemeStats); err != nil {
		return nil, fmt.Errorf("failed to decode theme stats of event %d: %w", ev.ID, err)
	}
	return &ev, nil
}

func encodeEvent(ev *domain.Event) (categories, elimination, stats []byte, err error) {
	if categories, err = json.Marshal(nonNil(ev.Categories)); err != nil {
		return
	}
	if elimination, err = json.Marshal(ev.ShortlistElimination); err != nil {
		return
	}
	stats, err = json.Marshal(ev.ThemeStats)
	return
}

func (r eventRepo) get(ctx context.Context, id int64, suffix string) (*domain.Event, error) {
	ev, err := scanEvent(r.t.q.QueryRow(ctx, "SELECT "+eventColumns+" FROM events WHERE id = $1"+suffix, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", id, err)
	}
	return ev, nil
}

func (r eventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	return r.get(ctx, id, "")
}

func (r eventRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Event, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r eventRepo) Create(ctx context.Context, ev *domain.Event) error {
	categories, elimination, stats, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	ev.CreatedAt = r.t.now(ev.CreatedAt)

	err = r.t.q.QueryRow(ctx, `
		INSERT INTO events (name, theme_phase, entry_phase, tournament_phase, categories,
			karma_farming_penalty, streamer_only_tournament, shortlist_elimination, theme_stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		ev.Name, ev.ThemePhase, ev.EntryPhase, ev.TournamentPhase, categories,
		ev.KarmaFarmingPenalty, ev.StreamerOnlyTournament, elimination, stats, ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if _, err := r.t.q.Exec(ctx, "INSERT INTO event_counters (event_id) VALUES ($1)", ev.ID); err != nil {
		return fmt.Errorf("failed to insert counters of event %d: %w", ev.ID, err)
	}
	return nil
}

func (r eventRepo) Save(ctx context.Context, ev *domain.Event) error {
	categories, elimination, stats, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %d: %w", ev.ID, err)
	}

	err = r.t.execOne(ctx, domain.ErrEventNotFound, `
		UPDATE events SET name = $2, theme_phase = $3, entry_phase = $4, tournament_phase = $5,
			categories = $6, karma_farming_penalty = $7, streamer_only_tournament = $8,
			shortlist_elimination = $9, theme_stats = $10
		WHERE id = $1`,
		ev.ID, ev.Name, ev.ThemePhase, ev.EntryPhase, ev.TournamentPhase,
		categories, ev.KarmaFarmingPenalty, ev.StreamerOnlyTournament, elimination, stats)
	if err != nil && !errors.Is(err, domain.ErrEventNotFound) {
		return fmt.Errorf("failed to update event %d: %w", ev.ID, err)
	}
	return err
}

func (r eventRepo) IncrementThemeVotes(ctx context.Context, eventID int64) (int64, error) {
	var n int64
	err := r.t.q.QueryRow(ctx,
		"UPDATE event_counters SET theme_votes = theme_votes + 1 WHERE event_id = $1 RETURNING theme_votes",
		eventID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment vote counter of event %d: %w", eventID, err)
	}
	return n, nil
}

func (r eventRepo) SaveThemeStats(ctx context.Context, eventID int64, stats domain.ThemeStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode theme stats: %w", err)
	}
	err = r.t.execOne(ctx, domain.ErrEventNotFound, "UPDATE events SET theme_stats = $2 WHERE id = $1", eventID, raw)
	if err != nil {
		return fmt.Errorf("save theme stats: %w", err)
	}
	return nil
}

func (r eventRepo) ListStreamerIDs(ctx context.Context, eventID int64) ([]int64, error) {
	rows, err := r.t.q.Query(ctx, "SELECT user_id FROM event_streamers WHERE event_id = $1 ORDER BY user_id", eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streamers of event %d: %w", eventID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r eventRepo) SetStreamerIDs(ctx context.Context, eventID int64, userIDs []int64) error {
	if _, err := r.t.q.Exec(ctx, "DELETE FROM event_streamers WHERE event_id = $1", eventID); err != nil {
		return fmt.Errorf("failed to clear streamers of event %d: %w", eventID, err)
	}
	_, err := r.t.q.Exec(ctx, `
		INSERT INTO event_streamers (event_id, user_id)
		SELECT $1, u FROM unnest($2::bigint[]) AS u
		ON CONFLICT DO NOTHING`, eventID, nonNil(userIDs))
	if err != nil {
		return fmt.Errorf("failed to store streamers of event %d: %w", eventID, err)
	}
	return nil
}

func (r eventRepo) ListByThemePhase(ctx context.Context, phase domain.ThemePhase) ([]*domain.Event, error) {
	rows, err := r.t.q.Query(ctx, "SELECT "+eventColumns+" FROM events WHERE theme_phase = $1 ORDER BY id", phase)
	if err != nil {
		return nil, fmt.Errorf("failed to list events in theme phase %s: %w", phase, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Event, error) { return scanEvent(row) })
}
