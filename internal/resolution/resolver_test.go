package resolution

import (
	"testing"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func entry(mode string, outcome bracket.Outcome, minutesAgo int, sides ...[]string) bracket.HistoryEntry {
	return bracket.HistoryEntry{
		Mode:      mode,
		Sides:     sides,
		Outcome:   outcome,
		Timestamp: base.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func TestResolveMostRecentWins(t *testing.T) {
	entries := []bracket.HistoryEntry{
		entry("duels", bracket.Victory, 1, []string{"2PP"}, []string{"2LL"}),
		entry("duels", bracket.Defeat, 5, []string{"2YY"}, []string{"2PP"}),
		entry("duels", bracket.Victory, 30, []string{"2PP"}, []string{"2YY"}),
		entry("duels", bracket.Victory, 60, []string{"2PP"}, []string{"2YY"}),
	}

	d, err := Resolve(entries, bracket.ModeDuels, "2PP", "2YY")
	require.NoError(t, err)
	assert.Equal(t, "2YY", d.Winner)
	assert.Equal(t, "2PP", d.Loser)
	assert.False(t, d.Draw)
	assert.Equal(t, &entries[1], d.Entry)
}

func TestResolveDrawStopsScan(t *testing.T) {
	entries := []bracket.HistoryEntry{
		entry("duels", bracket.Draw, 2, []string{"2PP"}, []string{"2YY"}),
		entry("duels", bracket.Victory, 20, []string{"2PP"}, []string{"2YY"}),
	}

	d, err := Resolve(entries, bracket.ModeDuels, "2PP", "2YY")
	assert.ErrorIs(t, err, bracket.ErrNoMatchingRecord)
	assert.True(t, d.Draw)
	assert.Empty(t, d.Winner)
	require.NotNil(t, d.Entry)
	assert.Equal(t, bracket.Draw, d.Entry.Outcome)
}

func TestResolveNoRecord(t *testing.T) {
	testCases := []struct {
		name    string
		entries []bracket.HistoryEntry
	}{
		{"empty history", nil},
		{"other opponent", []bracket.HistoryEntry{
			entry("duels", bracket.Victory, 1, []string{"2PP"}, []string{"2LL"}),
		}},
		{"other mode", []bracket.HistoryEntry{
			entry("knockout", bracket.Victory, 1, []string{"2PP"}, []string{"2YY"}),
		}},
		{"same side", []bracket.HistoryEntry{
			entry("duels", bracket.Victory, 1, []string{"2PP", "2YY"}, []string{"2LL"}),
		}},
		{"three sides", []bracket.HistoryEntry{
			entry("duels", bracket.Victory, 1, []string{"2PP"}, []string{"2YY"}, []string{"2LL"}),
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Resolve(tc.entries, bracket.ModeDuels, "2PP", "2YY")
			assert.ErrorIs(t, err, bracket.ErrNoMatchingRecord)
			assert.False(t, d.Draw)
			assert.Nil(t, d.Entry)
		})
	}
}

func TestResolveModeIgnoresCase(t *testing.T) {
	entries := []bracket.HistoryEntry{
		entry("gemgrab", bracket.Victory, 1, []string{"2PP", "8QQ", "9RR"}, []string{"2YY", "8CC", "9UU"}),
	}

	d, err := Resolve(entries, bracket.ModeGemGrab, "2PP", "2YY")
	require.NoError(t, err)
	assert.Equal(t, "2PP", d.Winner)
}

func TestCaptainRules(t *testing.T) {
	rules := RulesFor(bracket.ModeBrawlBall)

	captains := entry("brawlBall", bracket.Defeat, 1, []string{"2YY", "8QQ", "9RR"}, []string{"2PP", "8CC", "9UU"})
	assert.True(t, rules.Qualifies(captains, "2PP", "2YY"))
	winner, loser, decided := rules.Outcome(captains, "2PP", "2YY")
	assert.True(t, decided)
	assert.Equal(t, "2YY", winner)
	assert.Equal(t, "2PP", loser)

	// Registered players must lead their side.
	teammates := entry("brawlBall", bracket.Victory, 1, []string{"8QQ", "2PP", "9RR"}, []string{"2YY", "8CC", "9UU"})
	assert.False(t, rules.Qualifies(teammates, "2PP", "2YY"))

	emptySide := entry("brawlBall", bracket.Victory, 1, []string{"2PP"}, []string{})
	assert.False(t, rules.Qualifies(emptySide, "2PP", "2YY"))
}

func TestSoloRulesRejectTeams(t *testing.T) {
	rules := RulesFor(bracket.ModeDuels)

	team := entry("duels", bracket.Victory, 1, []string{"2PP", "8QQ"}, []string{"2YY", "8CC"})
	assert.False(t, rules.Qualifies(team, "2PP", "2YY"))

	solo := entry("duels", bracket.Victory, 1, []string{"2YY"}, []string{"2PP"})
	assert.True(t, rules.Qualifies(solo, "2PP", "2YY"))
	assert.False(t, rules.Qualifies(solo, "2PP", "2PP"))
}
