package resolution

import (
	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	mapset "github.com/deckarep/golang-set"
)

// Rules decides, for one game mode, whether a history entry records a
// meeting of two participants and who won it.
type Rules interface {
	Qualifies(e bracket.HistoryEntry, p1, p2 string) bool
	// Outcome reads e from p1's point of view. decided is false for a draw.
	Outcome(e bracket.HistoryEntry, p1, p2 string) (winner, loser string, decided bool)
}

// RulesFor returns the variant for a mode. Single-player modes compare whole
// sides, team modes compare the captain (first tag) of each side.
func RulesFor(mode bracket.Mode) Rules {
	if mode.TeamSize() == 1 {
		return soloRules{}
	}
	return captainRules{}
}

type relativeOutcome struct{}

func (relativeOutcome) Outcome(e bracket.HistoryEntry, p1, p2 string) (string, string, bool) {
	switch e.Outcome {
	case bracket.Victory:
		return p1, p2, true
	case bracket.Defeat:
		return p2, p1, true
	}
	return "", "", false
}

type soloRules struct {
	relativeOutcome
}

func (soloRules) Qualifies(e bracket.HistoryEntry, p1, p2 string) bool {
	if len(e.Sides) != 2 || p1 == p2 {
		return false
	}
	for _, side := range e.Sides {
		if len(side) != 1 {
			return false
		}
	}
	return sideSet(e.Sides[0][0], e.Sides[1][0]).Equal(sideSet(p1, p2))
}

type captainRules struct {
	relativeOutcome
}

func (captainRules) Qualifies(e bracket.HistoryEntry, p1, p2 string) bool {
	if len(e.Sides) != 2 || p1 == p2 {
		return false
	}
	for _, side := range e.Sides {
		if len(side) == 0 {
			return false
		}
	}
	return sideSet(e.Sides[0][0], e.Sides[1][0]).Equal(sideSet(p1, p2))
}

func sideSet(tags ...string) mapset.Set {
	s := mapset.NewSet()
	for _, t := range tags {
		s.Add(t)
	}
	return s
}
