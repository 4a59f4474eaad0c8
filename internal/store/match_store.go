package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	insertMatchQuery = `
		INSERT INTO matches (round, slot, participant_1, participant_2, state, winner, loser, created_at, resolved_at)
		VALUES (:round, :slot, :participant_1, :participant_2, :state, :winner, :loser, :created_at, :resolved_at)
		ON CONFLICT (round, slot) DO NOTHING
	`
	getMatchQuery        = "SELECT * FROM matches WHERE round = ? AND slot = ?"
	listRoundQuery       = "SELECT * FROM matches WHERE round = ? ORDER BY slot ASC"
	listMatchesQuery     = "SELECT * FROM matches ORDER BY round ASC, slot ASC"
	findMatchByTagQuery  = "SELECT * FROM matches WHERE round = ? AND (participant_1 = ? OR participant_2 = ?)"
	deleteMatchesQuery   = "DELETE FROM matches"
	countOpenMatchQuery  = "SELECT COUNT(*) FROM matches WHERE round = ? AND state IN ('pending', 'awaiting_submission')"
	countRoundMatchQuery = "SELECT COUNT(*) FROM matches WHERE round = ?"
	resolveMatchQuery    = `
		UPDATE matches SET
		state = 'resolved',
		winner = ?,
		loser = ?,
		resolved_at = ?
		WHERE round = ? AND slot = ?
		AND state IN ('pending', 'awaiting_submission')
		AND ((participant_1 = ? AND participant_2 = ?) OR (participant_1 = ? AND participant_2 = ?))
	`
	markAwaitingQuery = `
		UPDATE matches SET state = 'awaiting_submission'
		WHERE round = ? AND slot = ? AND state = 'pending'
	`
	forfeitMatchQuery = `
		UPDATE matches SET
		state = 'forfeited',
		resolved_at = ?
		WHERE round = ? AND slot = ? AND state IN ('pending', 'awaiting_submission')
	`
)

// InsertMatches creates a round's topology. Any (round, slot) that already
// exists means another caller built the round first.
func (s *TournamentStore) InsertMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error {
	for i := range matches {
		res, err := sqlx.NamedExecContext(ctx, q, insertMatchQuery, &matches[i])
		if err != nil {
			return unavailable(err, "insert match")
		}
		if n, err := res.RowsAffected(); err != nil {
			return unavailable(err, "insert match")
		} else if n == 0 {
			return errors.Wrapf(bracket.ErrConcurrentModification, "match %d/%d already exists", matches[i].Round, matches[i].Slot)
		}
	}
	return nil
}

func (s *TournamentStore) GetMatch(ctx context.Context, q sqlx.ExtContext, round, slot int) (*bracket.Match, error) {
	var m bracket.Match
	if err := sqlx.GetContext(ctx, q, &m, q.Rebind(getMatchQuery), round, slot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(bracket.ErrNotFound, "round %d slot %d", round, slot)
		}
		return nil, unavailable(err, "get match")
	}
	return &m, nil
}

func (s *TournamentStore) ListRound(ctx context.Context, q sqlx.ExtContext, round int) ([]bracket.Match, error) {
	var matches []bracket.Match
	if err := sqlx.SelectContext(ctx, q, &matches, q.Rebind(listRoundQuery), round); err != nil {
		return nil, unavailable(err, "list round")
	}
	return matches, nil
}

func (s *TournamentStore) ListMatches(ctx context.Context, q sqlx.ExtContext) ([]bracket.Match, error) {
	var matches []bracket.Match
	if err := sqlx.SelectContext(ctx, q, &matches, listMatchesQuery); err != nil {
		return nil, unavailable(err, "list matches")
	}
	return matches, nil
}

func (s *TournamentStore) FindMatchByTag(ctx context.Context, q sqlx.ExtContext, round int, tag string) (*bracket.Match, error) {
	var m bracket.Match
	if err := sqlx.GetContext(ctx, q, &m, q.Rebind(findMatchByTagQuery), round, tag, tag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(bracket.ErrNotFound, "no round %d match for %s", round, tag)
		}
		return nil, unavailable(err, "find match")
	}
	return &m, nil
}

// RoundComplete is true when the round has matches and none are open.
func (s *TournamentStore) RoundComplete(ctx context.Context, q sqlx.ExtContext, round int) (bool, error) {
	var total, open int
	if err := sqlx.GetContext(ctx, q, &total, q.Rebind(countRoundMatchQuery), round); err != nil {
		return false, unavailable(err, "count round")
	}
	if total == 0 {
		return false, nil
	}
	if err := sqlx.GetContext(ctx, q, &open, q.Rebind(countOpenMatchQuery), round); err != nil {
		return false, unavailable(err, "count open matches")
	}
	return open == 0, nil
}

// ResolveMatch is the compare-and-update behind record_result: it only
// succeeds while the match is open and {winner, loser} are its participants.
func (s *TournamentStore) ResolveMatch(ctx context.Context, q sqlx.ExtContext, round, slot int, winner, loser string) error {
	res, err := q.ExecContext(ctx, q.Rebind(resolveMatchQuery),
		winner, loser, time.Now().UTC(),
		round, slot,
		winner, loser, loser, winner,
	)
	if err != nil {
		return unavailable(err, "resolve match")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "resolve match")
	} else if n == 0 {
		return errors.Wrapf(bracket.ErrAlreadyResolved, "round %d slot %d", round, slot)
	}
	return nil
}

// MarkAwaiting moves a pending match to awaiting submission. It reports
// whether the state changed.
func (s *TournamentStore) MarkAwaiting(ctx context.Context, q sqlx.ExtContext, round, slot int) (bool, error) {
	res, err := q.ExecContext(ctx, q.Rebind(markAwaitingQuery), round, slot)
	if err != nil {
		return false, unavailable(err, "mark awaiting")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err, "mark awaiting")
	}
	return n == 1, nil
}

func (s *TournamentStore) ForfeitMatch(ctx context.Context, q sqlx.ExtContext, round, slot int) error {
	res, err := q.ExecContext(ctx, q.Rebind(forfeitMatchQuery), time.Now().UTC(), round, slot)
	if err != nil {
		return unavailable(err, "forfeit match")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "forfeit match")
	} else if n == 0 {
		return errors.Wrapf(bracket.ErrConcurrentModification, "match %d/%d is no longer open", round, slot)
	}
	return nil
}

func (s *TournamentStore) DeleteAllMatches(ctx context.Context, q sqlx.ExtContext) error {
	if _, err := q.ExecContext(ctx, deleteMatchesQuery); err != nil {
		return unavailable(err, "delete matches")
	}
	return nil
}
