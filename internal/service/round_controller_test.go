package service

import (
	"context"
	"sync"
	"testing"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairing struct {
	P1, P2 string
	State  bracket.MatchState
}

func pairings(matches []bracket.Match) []pairing {
	out := make([]pairing, 0, len(matches))
	for _, m := range matches {
		out = append(out, pairing{utils.OrZero(m.Participant1), utils.OrZero(m.Participant2), m.State})
	}
	return out
}

func TestFiveParticipantBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL", "2PQ", "2PG")

	cfg, round1, err := env.controller.StartTournament(ctx, 3, bracket.ModeKnockout, "Belle's Rock")
	require.NoError(t, err)
	assert.True(t, cfg.Started)
	assert.False(t, cfg.RegistrationOpen)
	assert.Equal(t, 1, cfg.CurrentRound)
	assert.Equal(t, 3, cfg.TotalRounds)
	require.NotNil(t, cfg.Mode)
	assert.Equal(t, bracket.ModeKnockout, *cfg.Mode)

	want := []pairing{
		{"2PP", "2PY", bracket.MatchPending},
		{"2PL", "2PQ", bracket.MatchPending},
		{"2PG", "", bracket.MatchBye},
	}
	if diff := cmp.Diff(want, pairings(round1)); diff != "" {
		t.Fatalf("round 1 mismatch (-want +got):\n%s", diff)
	}

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceOperator)
	require.NoError(t, err)

	complete, err := env.bracket.RoundComplete(ctx, env.db, 1)
	require.NoError(t, err)
	assert.False(t, complete)

	_, err = env.bracket.RecordResult(ctx, 1, 1, "2PQ", "2PL", metrics.SourceOperator)
	require.NoError(t, err)

	complete, err = env.bracket.RoundComplete(ctx, env.db, 1)
	require.NoError(t, err)
	assert.True(t, complete)

	phase, _, err := env.controller.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseRoundComplete, phase)

	survivors, err := env.bracket.Survivors(ctx, env.db, 1)
	require.NoError(t, err)
	assert.Equal(t, []*string{utils.Ptr("2PP"), utils.Ptr("2PQ"), utils.Ptr("2PG")}, survivors)

	res, err := env.controller.Advance(ctx, false)
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.Equal(t, 2, res.Config.CurrentRound)

	want = []pairing{
		{"2PP", "2PQ", bracket.MatchPending},
		{"2PG", "", bracket.MatchBye},
	}
	if diff := cmp.Diff(want, pairings(res.Matches)); diff != "" {
		t.Fatalf("round 2 mismatch (-want +got):\n%s", diff)
	}

	loser, err := env.registration.GetParticipant(ctx, "2PY")
	require.NoError(t, err)
	assert.True(t, loser.Eliminated)
	require.NotNil(t, loser.EliminatedRound)
	assert.Equal(t, 1, *loser.EliminatedRound)

	_, err = env.bracket.RecordResult(ctx, 2, 0, "2PQ", "2PP", metrics.SourceOperator)
	require.NoError(t, err)
	res, err = env.controller.Advance(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Config.CurrentRound)

	_, err = env.bracket.RecordResult(ctx, 3, 0, "2PG", "2PQ", metrics.SourceOperator)
	require.NoError(t, err)
	res, err = env.controller.Advance(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Finished)
	require.NotNil(t, res.Champion)
	assert.Equal(t, "2PG", *res.Champion)

	phase, cfg, err = env.controller.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseFinished, phase)
	assert.True(t, cfg.Finished)

	_, err = env.controller.Advance(ctx, false)
	assert.ErrorIs(t, err, bracket.ErrTournamentFinished)
}

func TestStartRequiresTwoParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	assert.ErrorIs(t, err, bracket.ErrInsufficientParticipants)

	env.register(t, "2PP")
	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	assert.ErrorIs(t, err, bracket.ErrInsufficientParticipants)
	assert.Equal(t, bracket.KindValidation, bracket.KindOf(err))

	cfg, err := env.tournament.GetConfig(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Started)
	assert.Equal(t, 0, cfg.CurrentRound)
	assert.True(t, cfg.RegistrationOpen)
}

func TestStartTotalRounds(t *testing.T) {
	t.Run("derived", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "2PP", "2PY", "2PL", "2PQ", "2PG")

		cfg, _, err := env.controller.StartTournament(context.Background(), 0, "", "")
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.TotalRounds)
		assert.Equal(t, bracket.DefaultMode, *cfg.Mode)
		assert.Nil(t, cfg.Map)
	})

	t.Run("too small", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "2PP", "2PY", "2PL", "2PQ", "2PG")

		_, _, err := env.controller.StartTournament(context.Background(), 2, bracket.ModeDuels, "")
		assert.ErrorIs(t, err, bracket.ErrTotalRoundsTooSmall)
	})

	t.Run("unknown mode", func(t *testing.T) {
		env := newTestEnv(t)
		env.register(t, "2PP", "2PY")

		_, _, err := env.controller.StartTournament(context.Background(), 0, bracket.Mode("tag"), "")
		assert.ErrorIs(t, err, bracket.ErrUnknownMode)

		cfg, err := env.tournament.GetConfig(context.Background())
		require.NoError(t, err)
		assert.False(t, cfg.Started)
	})
}

func TestStartTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)
	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	assert.ErrorIs(t, err, bracket.ErrInvalidState)
}

func TestAdvanceRequiresCompleteRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.controller.Advance(ctx, false)
	assert.ErrorIs(t, err, bracket.ErrNotStarted)

	env.register(t, "2PP", "2PY", "2PL", "2PQ")
	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	_, err = env.controller.Advance(ctx, false)
	assert.ErrorIs(t, err, bracket.ErrRoundIncomplete)

	cfg, err := env.tournament.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.CurrentRound)
}

func TestForcedAdvanceForfeitsOpenMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL", "2PQ")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PY", "2PP", metrics.SourceOperator)
	require.NoError(t, err)

	res, err := env.controller.Advance(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Forfeited)

	m, err := env.bracket.GetMatch(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchForfeited, m.State)
	assert.Nil(t, m.Winner)

	for _, tag := range []string{"2PL", "2PQ"} {
		p, err := env.registration.GetParticipant(ctx, tag)
		require.NoError(t, err)
		assert.True(t, p.Eliminated, tag)
	}

	// One survivor left, so the tournament ends early.
	assert.True(t, res.Finished)
	require.NotNil(t, res.Champion)
	assert.Equal(t, "2PY", *res.Champion)
}

func TestForcedAdvanceKeepsSlotArithmetic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL", "2PQ", "2PG", "2PR", "2PJ", "2PC")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceOperator)
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 3, "2PC", "2PJ", metrics.SourceOperator)
	require.NoError(t, err)

	res, err := env.controller.Advance(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Forfeited)
	assert.False(t, res.Finished)

	want := []pairing{
		{"2PP", "", bracket.MatchBye},
		{"2PC", "", bracket.MatchBye},
	}
	if diff := cmp.Diff(want, pairings(res.Matches)); diff != "" {
		t.Fatalf("round 2 mismatch (-want +got):\n%s", diff)
	}

	res, err = env.controller.Advance(ctx, false)
	require.NoError(t, err)
	want = []pairing{{"2PP", "2PC", bracket.MatchPending}}
	if diff := cmp.Diff(want, pairings(res.Matches)); diff != "" {
		t.Fatalf("round 3 mismatch (-want +got):\n%s", diff)
	}
}

func TestTwoParticipantFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY")

	cfg, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.TotalRounds)

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PY", "2PP", metrics.SourceOperator)
	require.NoError(t, err)

	res, err := env.controller.Advance(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.Equal(t, "2PY", *res.Champion)
	assert.Equal(t, 1, res.Config.CurrentRound)
}

func TestRecordResultTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceOperator)
	require.NoError(t, err)

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PY", "2PP", metrics.SourceOperator)
	assert.ErrorIs(t, err, bracket.ErrAlreadyResolved)

	m, err := env.bracket.GetMatch(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchResolved, m.State)
	assert.Equal(t, "2PP", *m.Winner)
	assert.Equal(t, "2PY", *m.Loser)

	winner, err := env.registration.GetParticipant(ctx, "2PP")
	require.NoError(t, err)
	assert.False(t, winner.Eliminated)

	_, err = env.bracket.RecordResult(ctx, 1, 1, "2PL", "2PP", metrics.SourceOperator)
	assert.ErrorIs(t, err, bracket.ErrAlreadyResolved, "a bye is never open")
}

func TestRecordResultParticipantMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL", "2PQ")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PL", metrics.SourceOperator)
	assert.ErrorIs(t, err, bracket.ErrParticipantMismatch)

	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PP", metrics.SourceOperator)
	assert.ErrorIs(t, err, bracket.ErrParticipantMismatch)

	_, err = env.bracket.RecordResult(ctx, 1, 7, "2PP", "2PY", metrics.SourceOperator)
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestConcurrentRecordResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceFeed)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, bracket.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, succeeded)

	loser, err := env.registration.GetParticipant(ctx, "2PY")
	require.NoError(t, err)
	assert.True(t, loser.Eliminated)
	assert.Equal(t, 1, *loser.EliminatedRound)
}

func TestConcurrentAdvance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL", "2PQ")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceOperator)
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 1, "2PL", "2PQ", metrics.SourceOperator)
	require.NoError(t, err)

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.controller.Advance(ctx, false)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, bracket.ErrRoundIncomplete)
	}
	assert.Equal(t, 1, succeeded)

	round2, err := env.bracket.ListRound(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, round2, 1)

	cfg, err := env.tournament.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.CurrentRound)
}

func TestResetMidTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL")

	_, _, err := env.controller.StartTournament(ctx, 0, bracket.ModeHeist, "Pit Stop")
	require.NoError(t, err)
	_, err = env.bracket.RecordResult(ctx, 1, 0, "2PP", "2PY", metrics.SourceOperator)
	require.NoError(t, err)

	require.NoError(t, env.controller.Reset(ctx))

	cfg, err := env.tournament.GetConfig(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.RegistrationOpen)
	assert.False(t, cfg.Started)
	assert.False(t, cfg.Finished)
	assert.Equal(t, 0, cfg.CurrentRound)
	assert.Nil(t, cfg.Mode)
	assert.Nil(t, cfg.Map)
	assert.Nil(t, cfg.Champion)

	participants, err := env.registration.ListParticipants(ctx)
	require.NoError(t, err)
	assert.Empty(t, participants)

	matches, err := env.store.ListMatches(ctx, env.db)
	require.NoError(t, err)
	assert.Empty(t, matches)

	phase, _, err := env.controller.Phase(ctx)
	require.NoError(t, err)
	assert.Equal(t, bracket.PhaseRegistration, phase)

	// A reset tournament can be run again with the same tags.
	env.register(t, "2PP", "2PY")
	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	assert.NoError(t, err)
}

func TestSetRound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tournament.AdvanceRound(ctx, nil)
	assert.ErrorIs(t, err, bracket.ErrNotStarted)

	env.register(t, "2PP", "2PY", "2PL", "2PQ", "2PG")
	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	cfg, err := env.tournament.AdvanceRound(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.CurrentRound)

	cfg, err = env.tournament.AdvanceRound(ctx, utils.Ptr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.CurrentRound)

	_, err = env.tournament.AdvanceRound(ctx, utils.Ptr(4))
	assert.ErrorIs(t, err, bracket.ErrRoundOutOfRange)
	_, err = env.tournament.AdvanceRound(ctx, utils.Ptr(0))
	assert.ErrorIs(t, err, bracket.ErrRoundOutOfRange)
}

func TestInitializeTwice(t *testing.T) {
	env := newTestEnv(t)
	err := env.tournament.Initialize(context.Background())
	assert.ErrorIs(t, err, bracket.ErrAlreadyInitialized)
}

func TestFindOpponent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "2PP", "2PY", "2PL")

	_, _, err := env.bracket.FindOpponent(ctx, "2PP")
	assert.ErrorIs(t, err, bracket.ErrNotStarted)

	_, _, err = env.controller.StartTournament(ctx, 0, bracket.ModeDuels, "")
	require.NoError(t, err)

	m, opp, err := env.bracket.FindOpponent(ctx, "#2py")
	require.NoError(t, err)
	assert.Equal(t, 0, m.Slot)
	require.NotNil(t, opp)
	assert.Equal(t, "2PP", *opp)

	m, opp, err = env.bracket.FindOpponent(ctx, "2PL")
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchBye, m.State)
	assert.Nil(t, opp)

	_, _, err = env.bracket.FindOpponent(ctx, "2PQ")
	assert.ErrorIs(t, err, bracket.ErrNotRegistered)
}
