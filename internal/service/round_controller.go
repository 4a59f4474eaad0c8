package service

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

var controllerLogger = logging.GetZeroLogger("service::controller", nil)

const (
	eventStart    = "start"
	eventComplete = "complete"
	eventAdvance  = "advance"
	eventFinish   = "finish"
	eventReset    = "reset"
)

// newPhaseMachine rebuilds the controller state machine at the persisted
// phase. Each operation checks its transition against it before writing.
func newPhaseMachine(from bracket.Phase) *fsm.FSM {
	return fsm.NewFSM(
		string(from),
		fsm.Events{
			{
				Name: eventStart,
				Src:  []string{string(bracket.PhaseRegistration)},
				Dst:  string(bracket.PhaseRoundInProgress),
			},
			{
				Name: eventComplete,
				Src:  []string{string(bracket.PhaseRoundInProgress)},
				Dst:  string(bracket.PhaseRoundComplete),
			},
			{
				Name: eventAdvance,
				Src:  []string{string(bracket.PhaseRoundComplete)},
				Dst:  string(bracket.PhaseRoundInProgress),
			},
			{
				Name: eventFinish,
				Src:  []string{string(bracket.PhaseRoundComplete)},
				Dst:  string(bracket.PhaseFinished),
			},
			{
				Name: eventReset,
				Src: []string{
					string(bracket.PhaseRoundInProgress),
					string(bracket.PhaseRoundComplete),
					string(bracket.PhaseFinished),
				},
				Dst: string(bracket.PhaseRegistration),
			},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				ev := controllerLogger.Info()
				if len(e.Args) > 0 {
					if round, ok := e.Args[0].(int); ok {
						ev = ev.Int(logging.RoundKey, round)
					}
				}
				ev.Msgf("[%s] ===> [%s]", e.Src, e.Dst)
			},
		},
	)
}

func transition(sm *fsm.FSM, event string, round int) error {
	if err := sm.Event(event, round); err != nil {
		return errors.Wrapf(bracket.ErrInvalidState, "%s from %s: %v", event, sm.Current(), err)
	}
	return nil
}

// RoundController drives the tournament through registration, rounds and
// the final.
type RoundController struct {
	db           *sqlx.DB
	store        *store.TournamentStore
	tournament   *TournamentService
	registration *RegistrationService
	bracket      *BracketService
	notify       live.Notifier
}

func NewRoundController(
	db *sqlx.DB,
	store *store.TournamentStore,
	tournament *TournamentService,
	registration *RegistrationService,
	bracket *BracketService,
	notify live.Notifier,
) *RoundController {
	if notify == nil {
		notify = live.Discard
	}
	return &RoundController{
		db:           db,
		store:        store,
		tournament:   tournament,
		registration: registration,
		bracket:      bracket,
		notify:       notify,
	}
}

// StartTournament closes registration, fixes mode and map and builds round
// one from the registration order. totalRounds 0 means as many rounds as the
// field needs.
func (c *RoundController) StartTournament(ctx context.Context, totalRounds int, mode bracket.Mode, mapName string) (*bracket.TournamentConfig, []bracket.Match, error) {
	if mode == "" {
		mode = bracket.DefaultMode
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := c.store.LockConfig(ctx, tx, true)
	if err != nil {
		return nil, nil, err
	}
	sm := newPhaseMachine(cfg.Phase(false))
	if !sm.Can(eventStart) {
		return nil, nil, errors.Wrapf(bracket.ErrInvalidState, "cannot start from %s", sm.Current())
	}

	participants, err := c.registration.SeedRoundOne(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	if len(participants) < 2 {
		return nil, nil, errors.Wrapf(bracket.ErrInsufficientParticipants, "%d registered", len(participants))
	}

	needed := bracket.RoundsNeeded(len(participants))
	if totalRounds == 0 {
		totalRounds = needed
	} else if totalRounds < needed {
		return nil, nil, errors.Wrapf(bracket.ErrTotalRoundsTooSmall, "%d participants need %d rounds, got %d", len(participants), needed, totalRounds)
	}

	if err := c.tournament.Start(ctx, tx, cfg, totalRounds, mode, mapName); err != nil {
		return nil, nil, err
	}
	matches, err := c.bracket.BuildRound(ctx, tx, 1, bracket.Seats(bracket.Tags(participants)))
	if err != nil {
		return nil, nil, err
	}
	if err := transition(sm, eventStart, 1); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, unavailable(err)
	}

	metrics.Metrics.SetCurrentRound(1)
	controllerLogger.Info().
		Int("participants", len(participants)).
		Int("total_rounds", totalRounds).
		Str(logging.ModeKey, string(mode)).
		Str("map", mapName).
		Msg("Tournament started.")
	c.notify.Publish(live.Event{Type: live.TournamentStarted, Payload: cfg})
	return cfg, matches, nil
}

type AdvanceResult struct {
	Config    *bracket.TournamentConfig `json:"config"`
	Finished  bool                      `json:"finished"`
	Champion  *string                   `json:"champion,omitempty"`
	Forfeited []int                     `json:"forfeited,omitempty"`
	Matches   []bracket.Match           `json:"matches,omitempty"`
}

// Advance closes the current round and either builds the next one from its
// survivors or finishes the tournament. With force, open matches of the
// round become double forfeits first.
func (c *RoundController) Advance(ctx context.Context, force bool) (*AdvanceResult, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := c.store.LockConfig(ctx, tx, true)
	if err != nil {
		return nil, err
	}
	if !cfg.Started {
		return nil, bracket.ErrNotStarted
	}
	if cfg.Finished {
		return nil, bracket.ErrTournamentFinished
	}

	round := cfg.CurrentRound
	complete, err := c.bracket.RoundComplete(ctx, tx, round)
	if err != nil {
		return nil, err
	}
	sm := newPhaseMachine(cfg.Phase(complete))

	result := &AdvanceResult{Config: cfg}
	if !complete {
		if !force {
			return nil, errors.Wrapf(bracket.ErrRoundIncomplete, "round %d", round)
		}
		result.Forfeited, err = c.bracket.ForfeitOpen(ctx, tx, round)
		if err != nil {
			return nil, err
		}
		if err := transition(sm, eventComplete, round); err != nil {
			return nil, err
		}
	}

	survivors, err := c.bracket.Survivors(ctx, tx, round)
	if err != nil {
		return nil, err
	}

	if remaining := bracket.CountSeated(survivors); remaining <= 1 || round >= cfg.TotalRounds {
		if remaining > 1 {
			return nil, errors.Wrapf(bracket.ErrInvalidState, "%d survivors after the last round", remaining)
		}
		if err := transition(sm, eventFinish, round); err != nil {
			return nil, err
		}
		cfg.Finished = true
		for _, s := range survivors {
			if s != nil {
				cfg.Champion = s
			}
		}
		if err := c.store.UpdateConfig(ctx, tx, cfg); err != nil {
			return nil, err
		}
		result.Finished = true
		result.Champion = cfg.Champion
	} else {
		if err := transition(sm, eventAdvance, round+1); err != nil {
			return nil, err
		}
		result.Matches, err = c.bracket.BuildRound(ctx, tx, round+1, survivors)
		if err != nil {
			return nil, err
		}
		if err := c.tournament.advanceRound(ctx, tx, cfg, nil); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}

	if len(result.Forfeited) > 0 {
		metrics.Metrics.Forfeited(len(result.Forfeited))
		controllerLogger.Warn().Int(logging.RoundKey, round).Ints("slots", result.Forfeited).Msg("Forced advance, open matches forfeited.")
	}
	if result.Finished {
		champion := "none"
		if result.Champion != nil {
			champion = *result.Champion
		}
		controllerLogger.Info().Int(logging.RoundKey, round).Str("champion", champion).Msg("Tournament finished.")
		c.notify.Publish(live.Event{Type: live.TournamentFinished, Payload: result})
		return result, nil
	}

	metrics.Metrics.RoundAdvanced(cfg.CurrentRound)
	controllerLogger.Info().Int(logging.RoundKey, cfg.CurrentRound).Int("matches", len(result.Matches)).Msg("Round advanced.")
	c.notify.Publish(live.Event{Type: live.RoundAdvanced, Payload: result})
	return result, nil
}

// Phase reports where the tournament stands.
func (c *RoundController) Phase(ctx context.Context) (bracket.Phase, *bracket.TournamentConfig, error) {
	cfg, err := c.store.GetConfig(ctx, c.db)
	if err != nil {
		return "", nil, err
	}
	complete := false
	if cfg.Started && !cfg.Finished {
		complete, err = c.store.RoundComplete(ctx, c.db, cfg.CurrentRound)
		if err != nil {
			return "", nil, err
		}
	}
	return cfg.Phase(complete), cfg, nil
}

// Reset is always allowed and returns the tournament to registration.
func (c *RoundController) Reset(ctx context.Context) error {
	phase, _, err := c.Phase(ctx)
	if err != nil && !errors.Is(err, bracket.ErrConfigMissing) {
		return err
	}
	if err := c.tournament.Reset(ctx); err != nil {
		return err
	}
	if phase != "" && phase != bracket.PhaseRegistration {
		return transition(newPhaseMachine(phase), eventReset, 0)
	}
	return nil
}
