package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/a-h/templ"
)

// BracketPage renders the whole bracket as a standalone HTML document. The
// same markup is served at /bracket and uploaded when publishing.
func BracketPage(data BracketData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Bracket</title>`)
		b.WriteString(`<style>body{font-family:sans-serif;background:#111;color:#eee}.rounds{display:flex;gap:2rem}.match{border:1px solid #444;margin:.5rem 0;padding:.4rem}.winner{font-weight:bold;color:#7fdb7f}.loser{text-decoration:line-through;color:#888}</style>`)
		b.WriteString(`</head><body>`)

		b.WriteString(`<header>`)
		if data.ModeName != "" {
			fmt.Fprintf(&b, `<img src="%s" alt="" width="48" height="48">`, templ.EscapeString(data.ModeIcon))
			fmt.Fprintf(&b, `<h1>%s</h1>`, templ.EscapeString(data.ModeName))
		} else {
			b.WriteString(`<h1>Tournament</h1>`)
		}
		if data.Config.Map != nil {
			fmt.Fprintf(&b, `<p class="map">%s</p>`, templ.EscapeString(*data.Config.Map))
		}
		fmt.Fprintf(&b, `<p class="phase" data-phase="%s">%s</p>`, templ.EscapeString(string(data.Phase)), templ.EscapeString(phaseLabel(data)))
		if op := GetOperator(ctx); op != nil {
			fmt.Fprintf(&b, `<p class="operator">Signed in as %s</p>`, templ.EscapeString(op.Username))
		}
		b.WriteString(`</header>`)

		b.WriteString(`<main class="rounds">`)
		for _, r := range data.RoundNums {
			fmt.Fprintf(&b, `<section class="round" data-round="%d"><h2>Round %d</h2>`, r, r)
			for _, m := range data.Rounds[r] {
				writeMatch(&b, data, m)
			}
			b.WriteString(`</section>`)
		}
		b.WriteString(`</main></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeMatch(b *strings.Builder, data BracketData, m bracket.Match) {
	fmt.Fprintf(b, `<div class="match %s" data-slot="%d">`, m.State, m.Slot)
	for _, seat := range []*string{m.Participant1, m.Participant2} {
		class := "seat"
		if seat != nil {
			switch {
			case m.IsWinner(*seat):
				class += " winner"
			case m.IsLoser(*seat) || m.State == bracket.MatchForfeited:
				class += " loser"
			}
		}
		fmt.Fprintf(b, `<div class="%s">%s</div>`, class, templ.EscapeString(data.DisplayName(seat)))
	}
	b.WriteString(`</div>`)
}

func phaseLabel(data BracketData) string {
	switch data.Phase {
	case bracket.PhaseRegistration:
		return "Registration"
	case bracket.PhaseFinished:
		if data.Config.Champion != nil {
			return "Champion: " + data.DisplayName(data.Config.Champion)
		}
		return "Finished"
	case bracket.PhaseRoundComplete:
		return fmt.Sprintf("Round %d of %d complete", data.Config.CurrentRound, data.Config.TotalRounds)
	}
	return fmt.Sprintf("Round %d of %d", data.Config.CurrentRound, data.Config.TotalRounds)
}
