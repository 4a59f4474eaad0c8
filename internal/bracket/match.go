package bracket

import (
	"time"
)

type MatchState string

const (
	MatchPending            MatchState = "pending"
	MatchAwaitingSubmission MatchState = "awaiting_submission"
	MatchResolved           MatchState = "resolved"
	MatchBye                MatchState = "bye"
	// MatchForfeited is only produced by a forced advance.
	MatchForfeited          MatchState = "forfeited"
)

// Match is one bracket cell, keyed by (Round, Slot). Winners of slots 2k and
// 2k+1 meet in slot k of the next round.
type Match struct {
	Round        int        `db:"round" json:"round"`
	Slot         int        `db:"slot" json:"slot"`
	Participant1 *string    `db:"participant_1" json:"participant_1"`
	Participant2 *string    `db:"participant_2" json:"participant_2"`
	State        MatchState `db:"state" json:"state"`
	Winner       *string    `db:"winner" json:"winner,omitempty"`
	Loser        *string    `db:"loser" json:"loser,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Open reports whether a result can still be recorded.
func (m *Match) Open() bool {
	return m.State == MatchPending || m.State == MatchAwaitingSubmission
}

func (m *Match) Terminal() bool {
	return !m.Open()
}

func (m *Match) Has(tag string) bool {
	return (m.Participant1 != nil && *m.Participant1 == tag) ||
		(m.Participant2 != nil && *m.Participant2 == tag)
}

// Opponent returns the other participant, nil on a bye or when tag is not in
// the match.
func (m *Match) Opponent(tag string) *string {
	switch {
	case m.Participant1 != nil && *m.Participant1 == tag:
		return m.Participant2
	case m.Participant2 != nil && *m.Participant2 == tag:
		return m.Participant1
	}
	return nil
}

// Survivor is the tag advancing out of this match, if any.
func (m *Match) Survivor() *string {
	switch m.State {
	case MatchResolved, MatchBye:
		return m.Winner
	}
	return nil
}

func (m *Match) IsWinner(tag string) bool {
	return m.Winner != nil && *m.Winner == tag
}

func (m *Match) IsLoser(tag string) bool {
	return m.State == MatchResolved && m.Loser != nil && *m.Loser == tag
}

// Pairs reports whether {a, b} are exactly this match's two participants.
func (m *Match) Pairs(a, b string) bool {
	if m.Participant1 == nil || m.Participant2 == nil || a == b {
		return false
	}
	p1, p2 := *m.Participant1, *m.Participant2
	return (p1 == a && p2 == b) || (p1 == b && p2 == a)
}
