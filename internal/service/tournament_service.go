package service

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/AdamBeresnev/dbc-bracket/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var tournamentLogger = logging.GetZeroLogger("service::tournament", nil)

// TournamentService owns the tournament config record.
type TournamentService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	notify live.Notifier
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, notify live.Notifier) *TournamentService {
	if notify == nil {
		notify = live.Discard
	}
	return &TournamentService{db: db, store: store, notify: notify}
}

// Initialize creates the config with defaults. It fails with
// ErrAlreadyInitialized when the record exists.
func (s *TournamentService) Initialize(ctx context.Context) error {
	cfg := bracket.DefaultConfig()
	if err := s.store.InsertConfig(ctx, s.db, &cfg); err != nil {
		return err
	}
	tournamentLogger.Info().Msg("Tournament config initialized.")
	return nil
}

func (s *TournamentService) GetConfig(ctx context.Context) (*bracket.TournamentConfig, error) {
	return s.store.GetConfig(ctx, s.db)
}

// Start moves cfg out of registration inside the caller's transaction. The
// write is conditioned on cfg.Version.
func (s *TournamentService) Start(ctx context.Context, tx *sqlx.Tx, cfg *bracket.TournamentConfig, totalRounds int, mode bracket.Mode, mapName string) error {
	if !cfg.RegistrationOpen || cfg.Started {
		return errors.Wrap(bracket.ErrInvalidState, "start requires open registration and no running tournament")
	}
	if !mode.Valid() {
		return errors.Wrapf(bracket.ErrUnknownMode, "mode %q", mode)
	}

	cfg.Started = true
	cfg.RegistrationOpen = false
	cfg.CurrentRound = 1
	cfg.TotalRounds = totalRounds
	cfg.Mode = &mode
	cfg.Map = utils.StringOrNil(mapName)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.store.UpdateConfig(ctx, tx, cfg)
}

// AdvanceRound sets the current round to explicit, or increments it when
// explicit is nil.
func (s *TournamentService) AdvanceRound(ctx context.Context, explicit *int) (*bracket.TournamentConfig, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := s.store.LockConfig(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	if err := s.advanceRound(ctx, tx, cfg, explicit); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}

	metrics.Metrics.SetCurrentRound(cfg.CurrentRound)
	tournamentLogger.Info().Int(logging.RoundKey, cfg.CurrentRound).Msg("Current round set.")
	return cfg, nil
}

func (s *TournamentService) advanceRound(ctx context.Context, q sqlx.ExtContext, cfg *bracket.TournamentConfig, explicit *int) error {
	if !cfg.Started {
		return bracket.ErrNotStarted
	}
	if cfg.Finished {
		return bracket.ErrTournamentFinished
	}
	target := cfg.CurrentRound + 1
	if explicit != nil {
		target = *explicit
	}
	if target < 1 || target > cfg.TotalRounds {
		return errors.Wrapf(bracket.ErrRoundOutOfRange, "round %d not in 1..%d", target, cfg.TotalRounds)
	}
	cfg.CurrentRound = target
	return s.store.UpdateConfig(ctx, q, cfg)
}

// SetRegistration opens or closes registration before the tournament starts.
func (s *TournamentService) SetRegistration(ctx context.Context, open bool) (*bracket.TournamentConfig, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := s.store.LockConfig(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	if cfg.Started {
		return nil, bracket.ErrTournamentStarted
	}
	if cfg.RegistrationOpen == open {
		return cfg, nil
	}
	cfg.RegistrationOpen = open
	if err := s.store.UpdateConfig(ctx, tx, cfg); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}

	tournamentLogger.Info().Bool("open", open).Msg("Registration toggled.")
	return cfg, nil
}

// Reset returns the config to defaults and clears every participant and
// match. It is always allowed.
func (s *TournamentService) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	if err := s.store.DeleteAllMatches(ctx, tx); err != nil {
		return err
	}
	if err := s.store.DeleteAllParticipants(ctx, tx); err != nil {
		return err
	}
	err = s.store.ResetConfig(ctx, tx)
	if errors.Is(err, bracket.ErrConfigMissing) {
		cfg := bracket.DefaultConfig()
		err = s.store.InsertConfig(ctx, tx, &cfg)
	}
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}

	metrics.Metrics.SetCurrentRound(0)
	tournamentLogger.Warn().Msg("Tournament reset.")
	s.notify.Publish(live.Event{Type: live.TournamentReset})
	return nil
}

func unavailable(err error) error {
	return errors.Wrapf(bracket.ErrStoreUnavailable, "%v", err)
}
