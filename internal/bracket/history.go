package bracket

import (
	"strings"
	"time"
)

type Outcome string

const (
	Victory Outcome = "victory"
	Defeat  Outcome = "defeat"
	Draw    Outcome = "draw"
)

func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(strings.ToLower(strings.TrimSpace(s))) {
	case Victory:
		return Victory, true
	case Defeat:
		return Defeat, true
	case Draw:
		return Draw, true
	}
	return "", false
}

// HistoryEntry is one battle from a player's recent history. Outcome is
// relative to the player whose history was fetched. Entries are transient
// and never persisted.
type HistoryEntry struct {
	Mode      string     `json:"mode"`
	Map       string     `json:"map,omitempty"`
	Sides     [][]string `json:"sides"`
	Outcome   Outcome    `json:"outcome"`
	Timestamp time.Time  `json:"timestamp"`
}
