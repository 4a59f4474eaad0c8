package feed

import (
	"strings"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
)

const battleTimeLayout = "20060102T150405.000Z"

type battleLog struct {
	Items []battleItem `json:"items"`
}

type battleItem struct {
	BattleTime string      `json:"battleTime"`
	Event      battleEvent `json:"event"`
	Battle     battle      `json:"battle"`
}

type battleEvent struct {
	Mode string `json:"mode"`
	Map  string `json:"map"`
}

type battle struct {
	Mode    string           `json:"mode"`
	Type    string           `json:"type"`
	Result  string           `json:"result"`
	Teams   [][]battlePlayer `json:"teams"`
	Players []battlePlayer   `json:"players"`
}

type battlePlayer struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

// toEntries converts the raw log, keeping its order and at most window
// entries. Battles without a victory/defeat/draw result (showdown placements)
// are skipped.
func (l *battleLog) toEntries(window int) []bracket.HistoryEntry {
	entries := make([]bracket.HistoryEntry, 0, len(l.Items))
	for _, item := range l.Items {
		if window > 0 && len(entries) == window {
			break
		}
		outcome, ok := bracket.ParseOutcome(item.Battle.Result)
		if !ok {
			continue
		}

		mode := item.Event.Mode
		if mode == "" {
			mode = item.Battle.Mode
		}

		var sides [][]string
		if len(item.Battle.Teams) > 0 {
			for _, team := range item.Battle.Teams {
				sides = append(sides, playerTags(team))
			}
		} else {
			for _, p := range item.Battle.Players {
				sides = append(sides, []string{cleanTag(p.Tag)})
			}
		}

		ts, _ := time.Parse(battleTimeLayout, item.BattleTime)
		entries = append(entries, bracket.HistoryEntry{
			Mode:      mode,
			Map:       item.Event.Map,
			Sides:     sides,
			Outcome:   outcome,
			Timestamp: ts,
		})
	}
	return entries
}

func playerTags(players []battlePlayer) []string {
	tags := make([]string, 0, len(players))
	for _, p := range players {
		tags = append(tags, cleanTag(p.Tag))
	}
	return tags
}

// cleanTag brings API tags ("#2PP") to the stored form ("2PP").
func cleanTag(tag string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(tag)), "#")
}
