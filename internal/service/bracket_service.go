package service

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var bracketLogger = logging.GetZeroLogger("service::bracket", nil)

// BracketService is the only writer of round topology and match results.
type BracketService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	notify live.Notifier
}

func NewBracketService(db *sqlx.DB, store *store.TournamentStore, notify live.Notifier) *BracketService {
	if notify == nil {
		notify = live.Discard
	}
	return &BracketService{db: db, store: store, notify: notify}
}

// BuildRound pairs seats into the matches of round. Every seated tag must be
// a registered, non-eliminated participant. A round can only be built once;
// a second caller gets ErrConcurrentModification.
func (s *BracketService) BuildRound(ctx context.Context, q sqlx.ExtContext, round int, seats []*string) ([]bracket.Match, error) {
	if round < 1 {
		return nil, errors.Wrapf(bracket.ErrRoundOutOfRange, "round %d", round)
	}

	seen := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat == nil {
			continue
		}
		if seen[*seat] {
			return nil, errors.Wrapf(bracket.ErrInvalidState, "%s seated twice in round %d", *seat, round)
		}
		seen[*seat] = true

		p, err := s.store.GetParticipant(ctx, q, *seat)
		if err != nil {
			return nil, err
		}
		if p.Eliminated {
			return nil, errors.Wrapf(bracket.ErrInvalidState, "%s is eliminated", p.Tag)
		}
	}

	matches := bracket.PairRound(round, seats)
	if err := s.store.InsertMatches(ctx, q, matches); err != nil {
		if errors.Is(err, bracket.ErrConcurrentModification) {
			metrics.Metrics.Conflict()
		}
		return nil, err
	}

	bracketLogger.Info().Int(logging.RoundKey, round).Int("matches", len(matches)).Int("seated", bracket.CountSeated(seats)).Msg("Round built.")
	return matches, nil
}

func (s *BracketService) GetMatch(ctx context.Context, round, slot int) (*bracket.Match, error) {
	return s.store.GetMatch(ctx, s.db, round, slot)
}

func (s *BracketService) ListRound(ctx context.Context, round int) ([]bracket.Match, error) {
	return s.store.ListRound(ctx, s.db, round)
}

// RecordResult resolves an open match and eliminates the loser in one
// transaction. Of two concurrent calls for the same match exactly one
// succeeds; the other observes ErrAlreadyResolved.
func (s *BracketService) RecordResult(ctx context.Context, round, slot int, winner, loser string, source string) (*bracket.Match, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	m, err := s.store.GetMatch(ctx, tx, round, slot)
	if err != nil {
		return nil, err
	}
	if !m.Open() {
		return nil, errors.Wrapf(bracket.ErrAlreadyResolved, "round %d slot %d is %s", round, slot, m.State)
	}
	if !m.Pairs(winner, loser) {
		return nil, errors.Wrapf(bracket.ErrParticipantMismatch, "%s and %s do not play round %d slot %d", winner, loser, round, slot)
	}
	for _, tag := range []string{winner, loser} {
		p, err := s.store.GetParticipant(ctx, tx, tag)
		if err != nil {
			return nil, err
		}
		if p.Eliminated {
			return nil, errors.Wrapf(bracket.ErrInvalidState, "%s is already eliminated", tag)
		}
	}

	if err := s.store.ResolveMatch(ctx, tx, round, slot, winner, loser); err != nil {
		metrics.Metrics.Conflict()
		return nil, err
	}
	if err := s.store.EliminateParticipant(ctx, tx, loser, round); err != nil {
		metrics.Metrics.Conflict()
		return nil, err
	}
	m, err = s.store.GetMatch(ctx, tx, round, slot)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}

	metrics.Metrics.ResultRecorded(source)
	bracketLogger.Info().
		Int(logging.RoundKey, round).
		Int(logging.SlotKey, slot).
		Str("winner", winner).
		Str("loser", loser).
		Str("source", source).
		Msg("Result recorded.")
	s.notify.Publish(live.Event{Type: live.ResultRecorded, Payload: m})
	return m, nil
}

func (s *BracketService) RoundComplete(ctx context.Context, q sqlx.ExtContext, round int) (bool, error) {
	return s.store.RoundComplete(ctx, q, round)
}

// Survivors returns one entry per match of round in slot order: the winner,
// the bye advancer, or nil for a forfeited cell.
func (s *BracketService) Survivors(ctx context.Context, q sqlx.ExtContext, round int) ([]*string, error) {
	matches, err := s.store.ListRound(ctx, q, round)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Wrapf(bracket.ErrNotFound, "round %d has no matches", round)
	}

	survivors := make([]*string, 0, len(matches))
	for i := range matches {
		if matches[i].Open() {
			return nil, errors.Wrapf(bracket.ErrRoundIncomplete, "round %d slot %d is %s", round, matches[i].Slot, matches[i].State)
		}
		survivors = append(survivors, matches[i].Survivor())
	}
	return survivors, nil
}

// ForfeitOpen closes every open match of round as a double forfeit and
// eliminates both participants. It returns the forfeited slots.
func (s *BracketService) ForfeitOpen(ctx context.Context, q sqlx.ExtContext, round int) ([]int, error) {
	matches, err := s.store.ListRound(ctx, q, round)
	if err != nil {
		return nil, err
	}

	var slots []int
	for _, m := range matches {
		if !m.Open() {
			continue
		}
		if err := s.store.ForfeitMatch(ctx, q, m.Round, m.Slot); err != nil {
			return nil, err
		}
		for _, tag := range []*string{m.Participant1, m.Participant2} {
			if tag == nil {
				continue
			}
			if err := s.store.EliminateParticipant(ctx, q, *tag, round); err != nil {
				return nil, err
			}
		}
		slots = append(slots, m.Slot)
	}
	return slots, nil
}

// FindOpponent returns the current round match holding tag and the opponent,
// nil on a bye.
func (s *BracketService) FindOpponent(ctx context.Context, rawTag string) (*bracket.Match, *string, error) {
	tag, err := bracket.NormalizeTag(rawTag)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.store.GetConfig(ctx, s.db)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Started {
		return nil, nil, bracket.ErrNotStarted
	}
	if _, err := s.store.GetParticipant(ctx, s.db, tag); err != nil {
		return nil, nil, err
	}

	m, err := s.store.FindMatchByTag(ctx, s.db, cfg.CurrentRound, tag)
	if err != nil {
		return nil, nil, err
	}
	return m, m.Opponent(tag), nil
}
