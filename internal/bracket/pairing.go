package bracket

import (
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/utils"
)

// NextSlot is the slot in round r+1 that the survivor of slot in round r
// moves into.
func NextSlot(slot int) int {
	return slot / 2
}

// RoundsNeeded is ceil(log2(n)), the number of rounds needed to reduce n
// participants to one.
func RoundsNeeded(n int) int {
	rounds := 0
	for size := 1; size < n; size *= 2 {
		rounds++
	}
	return rounds
}

// Seats lifts an ordered tag list into the seat form PairRound consumes.
func Seats(tags []string) []*string {
	seats := make([]*string, 0, len(tags))
	for _, t := range tags {
		seats = append(seats, utils.Ptr(t))
	}
	return seats
}

// PairRound pairs consecutive seats into matches of the given round. A nil
// seat is empty: an empty neighbour turns the match into a bye for the other
// seat, and two empty seats produce an empty forfeited cell so slot
// arithmetic stays intact.
func PairRound(round int, seats []*string) []Match {
	now := time.Now().UTC()
	matches := make([]Match, 0, (len(seats)+1)/2)

	for i := 0; i < len(seats); i += 2 {
		m := Match{
			Round:     round,
			Slot:      i / 2,
			State:     MatchPending,
			CreatedAt: now,
		}

		a := seats[i]
		var b *string
		if i+1 < len(seats) {
			b = seats[i+1]
		}

		switch {
		case a != nil && b != nil:
			m.Participant1 = utils.Ptr(*a)
			m.Participant2 = utils.Ptr(*b)
		case a != nil || b != nil:
			advancing := a
			if advancing == nil {
				advancing = b
			}
			m.Participant1 = utils.Ptr(*advancing)
			m.Winner = utils.Ptr(*advancing)
			m.State = MatchBye
			m.ResolvedAt = &now
		default:
			m.State = MatchForfeited
			m.ResolvedAt = &now
		}

		matches = append(matches, m)
	}

	return matches
}

// CountSeated counts the non-empty seats.
func CountSeated(seats []*string) int {
	n := 0
	for _, s := range seats {
		if s != nil {
			n++
		}
	}
	return n
}
