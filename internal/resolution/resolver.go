package resolution

import (
	"strings"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/pkg/errors"
)

type Decision struct {
	Winner string
	Loser  string
	// Draw is set when the authoritative entry was a draw. Such matches need
	// manual adjudication.
	Draw  bool
	Entry *bracket.HistoryEntry
}

// Resolve scans p1's history most recent first. The first entry played in
// mode between p1 and p2 is authoritative, even if older entries disagree.
func Resolve(entries []bracket.HistoryEntry, mode bracket.Mode, p1, p2 string) (Decision, error) {
	rules := RulesFor(mode)
	for i := range entries {
		e := &entries[i]
		if !strings.EqualFold(e.Mode, string(mode)) || !rules.Qualifies(*e, p1, p2) {
			continue
		}
		winner, loser, decided := rules.Outcome(*e, p1, p2)
		if !decided {
			return Decision{Draw: true, Entry: e}, errors.Wrap(bracket.ErrNoMatchingRecord, "latest meeting ended in a draw")
		}
		return Decision{Winner: winner, Loser: loser, Entry: e}, nil
	}
	return Decision{}, bracket.ErrNoMatchingRecord
}
