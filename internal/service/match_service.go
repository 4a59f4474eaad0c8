package service

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/feed"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/resolution"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var matchLogger = logging.GetZeroLogger("service::match", nil)

// MatchService resolves matches from the history feed or from an operator.
type MatchService struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	bracket *BracketService
	feed    feed.Feed
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, bracket *BracketService, feed feed.Feed) *MatchService {
	return &MatchService{db: db, store: store, bracket: bracket, feed: feed}
}

// SubmitResult looks the match up in the first participant's history and
// records the outcome. When no qualifying record exists, or the latest one is
// a draw, the match moves to awaiting submission and the error wraps
// bracket.ErrNoMatchingRecord. Feed failures surface as
// bracket.ErrFeedUnavailable.
func (s *MatchService) SubmitResult(ctx context.Context, round, slot int, requestingTag string) (*bracket.Match, error) {
	tag, err := bracket.NormalizeTag(requestingTag)
	if err != nil {
		return nil, err
	}

	cfg, err := s.store.GetConfig(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if !cfg.Started {
		return nil, bracket.ErrNotStarted
	}
	if cfg.Finished {
		return nil, bracket.ErrTournamentFinished
	}
	mode := bracket.DefaultMode
	if cfg.Mode != nil {
		mode = *cfg.Mode
	}

	m, err := s.store.GetMatch(ctx, s.db, round, slot)
	if err != nil {
		return nil, err
	}
	if !m.Open() {
		return nil, errors.Wrapf(bracket.ErrAlreadyResolved, "round %d slot %d is %s", round, slot, m.State)
	}
	if !m.Has(tag) {
		return nil, errors.Wrapf(bracket.ErrParticipantMismatch, "%s does not play round %d slot %d", tag, round, slot)
	}
	p1, p2 := *m.Participant1, *m.Participant2

	entries, err := s.feed.FetchRecentHistory(ctx, p1)
	if err != nil {
		metrics.Metrics.ResolutionAttempt(metrics.OutcomeFeedError)
		return nil, err
	}

	decision, err := resolution.Resolve(entries, mode, p1, p2)
	if err != nil {
		if !errors.Is(err, bracket.ErrNoMatchingRecord) {
			return nil, err
		}
		return nil, s.awaitSubmission(ctx, m, decision, err)
	}

	m, err = s.bracket.RecordResult(ctx, round, slot, decision.Winner, decision.Loser, metrics.SourceFeed)
	if err != nil {
		return nil, err
	}
	metrics.Metrics.ResolutionAttempt(metrics.OutcomeResolved)
	return m, nil
}

func (s *MatchService) awaitSubmission(ctx context.Context, m *bracket.Match, decision resolution.Decision, cause error) error {
	if _, err := s.store.MarkAwaiting(ctx, s.db, m.Round, m.Slot); err != nil {
		return err
	}
	if inv, ok := s.feed.(feed.Invalidator); ok {
		inv.Invalidate(ctx, *m.Participant1)
	}

	if decision.Draw {
		metrics.Metrics.ResolutionAttempt(metrics.OutcomeDraw)
		matchLogger.Warn().
			Int(logging.RoundKey, m.Round).
			Int(logging.SlotKey, m.Slot).
			Str("participant_1", *m.Participant1).
			Str("participant_2", *m.Participant2).
			Time("played_at", decision.Entry.Timestamp).
			Msg("Latest meeting was a draw, needs manual adjudication.")
	} else {
		metrics.Metrics.ResolutionAttempt(metrics.OutcomeNoRecord)
		matchLogger.Debug().
			Int(logging.RoundKey, m.Round).
			Int(logging.SlotKey, m.Slot).
			Msg("No qualifying record yet.")
	}
	return cause
}

// Adjudicate records winner for an open match on an operator's word.
func (s *MatchService) Adjudicate(ctx context.Context, round, slot int, rawWinner string) (*bracket.Match, error) {
	winner, err := bracket.NormalizeTag(rawWinner)
	if err != nil {
		return nil, err
	}

	m, err := s.store.GetMatch(ctx, s.db, round, slot)
	if err != nil {
		return nil, err
	}
	if !m.Open() {
		return nil, errors.Wrapf(bracket.ErrAlreadyResolved, "round %d slot %d is %s", round, slot, m.State)
	}
	loser := m.Opponent(winner)
	if loser == nil {
		return nil, errors.Wrapf(bracket.ErrParticipantMismatch, "%s does not play round %d slot %d", winner, round, slot)
	}

	matchLogger.Info().Int(logging.RoundKey, round).Int(logging.SlotKey, slot).Str("winner", winner).Msg("Adjudicating match.")
	return s.bracket.RecordResult(ctx, round, slot, winner, *loser, metrics.SourceOperator)
}

// History returns the recent history of any tag, registered or not.
func (s *MatchService) History(ctx context.Context, rawTag string) ([]bracket.HistoryEntry, error) {
	tag, err := bracket.NormalizeTag(rawTag)
	if err != nil {
		return nil, err
	}
	return s.feed.FetchRecentHistory(ctx, tag)
}
