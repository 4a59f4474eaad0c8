package bracket

import "sort"

// Snapshot is a read-only view of the whole bracket for rendering.
type Snapshot struct {
	Config       TournamentConfig `json:"config"`
	Phase        Phase            `json:"phase"`
	Participants []Participant    `json:"participants"`
	Matches      []Match          `json:"matches"`
}

func (s *Snapshot) Rounds() []int {
	seen := make(map[int]bool)
	var rounds []int
	for _, m := range s.Matches {
		if !seen[m.Round] {
			seen[m.Round] = true
			rounds = append(rounds, m.Round)
		}
	}
	sort.Ints(rounds)
	return rounds
}

func (s *Snapshot) Participant(tag string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.Tag == tag {
			return p, true
		}
	}
	return Participant{}, false
}
