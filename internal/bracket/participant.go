package bracket

import (
	"strings"
	"time"
)

// tagAlphabet is the character set the game uses for player tags.
const tagAlphabet = "0289PYLQGRJCUV"

const (
	minTagLength = 3
	maxTagLength = 14
)

type Participant struct {
	Seq             int64     `db:"seq" json:"-"`
	Tag             string    `db:"tag" json:"tag"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	Eliminated      bool      `db:"eliminated" json:"eliminated"`
	EliminatedRound *int      `db:"eliminated_round" json:"eliminated_round,omitempty"`
	RegisteredAt    time.Time `db:"registered_at" json:"registered_at"`
}

// NormalizeTag strips the leading '#', upper-cases and validates a tag.
func NormalizeTag(raw string) (string, error) {
	tag := strings.ToUpper(strings.TrimSpace(raw))
	tag = strings.TrimPrefix(tag, "#")
	if len(tag) < minTagLength || len(tag) > maxTagLength {
		return "", ErrInvalidTag
	}
	for _, r := range tag {
		if !strings.ContainsRune(tagAlphabet, r) {
			return "", ErrInvalidTag
		}
	}
	return tag, nil
}

func Tags(participants []Participant) []string {
	tags := make([]string, 0, len(participants))
	for _, p := range participants {
		tags = append(tags, p.Tag)
	}
	return tags
}
