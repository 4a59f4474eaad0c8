package bracket

import (
	"sort"
	"strings"
)

type Mode string

const (
	ModeWipeout   Mode = "wipeout"
	ModeGemGrab   Mode = "gemGrab"
	ModeBrawlBall Mode = "brawlBall"
	ModeHeist     Mode = "heist"
	ModeBounty    Mode = "bounty"
	ModeHotZone   Mode = "hotZone"
	ModeKnockout  Mode = "knockout"
	ModeDuels     Mode = "duels"
)

const DefaultMode = ModeWipeout

// DefaultModeIcon is shown for every mode until per-mode art is uploaded.
const DefaultModeIcon = "https://pbs.twimg.com/media/F2_Uy9rXgAAXXnP?format=png&name=360x360"

type modeInfo struct {
	name     string
	teamSize int
}

var modes = map[Mode]modeInfo{
	ModeWipeout:   {name: "Wipeout", teamSize: 3},
	ModeGemGrab:   {name: "Gem Grab", teamSize: 3},
	ModeBrawlBall: {name: "Brawl Ball", teamSize: 3},
	ModeHeist:     {name: "Heist", teamSize: 3},
	ModeBounty:    {name: "Bounty", teamSize: 3},
	ModeHotZone:   {name: "Hot Zone", teamSize: 3},
	ModeKnockout:  {name: "Knockout", teamSize: 3},
	ModeDuels:     {name: "Duels", teamSize: 1},
}

// ParseMode accepts the API identifier in any letter case.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for m := range modes {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", ErrUnknownMode
}

func Modes() []Mode {
	all := make([]Mode, 0, len(modes))
	for m := range modes {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

func (m Mode) DisplayName() string {
	if info, ok := modes[m]; ok {
		return info.name
	}
	return string(m)
}

// TeamSize is the number of players per side in the battle log.
func (m Mode) TeamSize() int {
	if info, ok := modes[m]; ok {
		return info.teamSize
	}
	return 0
}

func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}
