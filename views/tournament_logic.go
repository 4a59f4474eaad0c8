package views

import (
	"sort"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
)

type BracketData struct {
	Config         bracket.TournamentConfig
	Phase          bracket.Phase
	Rounds         map[int][]bracket.Match
	RoundNums      []int
	ParticipantMap map[string]bracket.Participant
	ModeName       string
	ModeIcon       string
}

func PrepareBracketData(snap *bracket.Snapshot) BracketData {
	participantMap := make(map[string]bracket.Participant, len(snap.Participants))
	for _, p := range snap.Participants {
		participantMap[p.Tag] = p
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int
	for _, m := range snap.Matches {
		if _, exists := rounds[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	sort.Ints(roundNums)
	sortRounds(rounds, roundNums)

	modeName := ""
	if snap.Config.Mode != nil {
		modeName = snap.Config.Mode.DisplayName()
	}

	return BracketData{
		Config:         snap.Config,
		Phase:          snap.Phase,
		Rounds:         rounds,
		RoundNums:      roundNums,
		ParticipantMap: participantMap,
		ModeName:       modeName,
		ModeIcon:       bracket.DefaultModeIcon,
	}
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].Slot < rounds[r][j].Slot
		})
	}
}

// DisplayName resolves a seat to the registered display name, or "BYE" for
// an empty seat.
func (d BracketData) DisplayName(tag *string) string {
	if tag == nil {
		return "BYE"
	}
	if p, ok := d.ParticipantMap[*tag]; ok {
		return p.DisplayName
	}
	return *tag
}
