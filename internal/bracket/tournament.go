package bracket

import (
	"time"
)

type Phase string

const (
	PhaseRegistration    Phase = "registration"
	PhaseRoundInProgress Phase = "round_in_progress"
	PhaseRoundComplete   Phase = "round_complete"
	PhaseFinished        Phase = "finished"
)

// ConfigID is the primary key of the only tournament_config row.
const ConfigID = 1

// TournamentConfig is the process-wide tournament record. Every write is
// conditioned on Version.
type TournamentConfig struct {
	ID               int       `db:"id" json:"-"`
	RegistrationOpen bool      `db:"registration_open" json:"registration_open"`
	Started          bool      `db:"started" json:"started"`
	Finished         bool      `db:"finished" json:"finished"`
	CurrentRound     int       `db:"current_round" json:"current_round"`
	TotalRounds      int       `db:"total_rounds" json:"total_rounds"`
	Mode             *Mode     `db:"mode" json:"mode"`
	Map              *string   `db:"map" json:"map"`
	Champion         *string   `db:"champion" json:"champion"`
	Version          int64     `db:"version" json:"version"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

func DefaultConfig() TournamentConfig {
	return TournamentConfig{
		ID:               ConfigID,
		RegistrationOpen: true,
		UpdatedAt:        time.Now().UTC(),
	}
}

// Phase derives the controller state. roundComplete must describe the
// current round.
func (c *TournamentConfig) Phase(roundComplete bool) Phase {
	switch {
	case !c.Started:
		return PhaseRegistration
	case c.Finished:
		return PhaseFinished
	case roundComplete:
		return PhaseRoundComplete
	default:
		return PhaseRoundInProgress
	}
}

func (c *TournamentConfig) Validate() error {
	if !c.Started && c.CurrentRound != 0 {
		return ErrInvalidState
	}
	if c.CurrentRound < 0 || c.CurrentRound > c.TotalRounds {
		return ErrRoundOutOfRange
	}
	return nil
}
