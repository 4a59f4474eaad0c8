package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/db"
	"github.com/AdamBeresnev/dbc-bracket/internal/utils"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))
	t.Cleanup(func() { database.Close() })
	return database
}

func TestConfigVersioning(t *testing.T) {
	database := setupTestDB(t)
	s := NewTournamentStore(database)
	ctx := context.Background()

	_, err := s.GetConfig(ctx, database)
	assert.ErrorIs(t, err, bracket.ErrConfigMissing)

	cfg := bracket.DefaultConfig()
	require.NoError(t, s.InsertConfig(ctx, database, &cfg))
	assert.ErrorIs(t, s.InsertConfig(ctx, database, &cfg), bracket.ErrAlreadyInitialized)

	first, err := s.GetConfig(ctx, database)
	require.NoError(t, err)
	second, err := s.GetConfig(ctx, database)
	require.NoError(t, err)

	first.RegistrationOpen = false
	require.NoError(t, s.UpdateConfig(ctx, database, first))
	assert.Equal(t, int64(1), first.Version)

	second.TotalRounds = 4
	err = s.UpdateConfig(ctx, database, second)
	assert.ErrorIs(t, err, bracket.ErrConcurrentModification)

	stored, err := s.GetConfig(ctx, database)
	require.NoError(t, err)
	assert.False(t, stored.RegistrationOpen)
	assert.Equal(t, 0, stored.TotalRounds)

	mode := bracket.ModeBounty
	stored.Started = true
	stored.CurrentRound = 1
	stored.TotalRounds = 2
	stored.Mode = &mode
	stored.Map = utils.Ptr("Snake Prairie")
	require.NoError(t, s.UpdateConfig(ctx, database, stored))

	require.NoError(t, s.ResetConfig(ctx, database))
	reset, err := s.GetConfig(ctx, database)
	require.NoError(t, err)
	assert.True(t, reset.RegistrationOpen)
	assert.False(t, reset.Started)
	assert.Equal(t, 0, reset.CurrentRound)
	assert.Nil(t, reset.Mode)
	assert.Nil(t, reset.Map)
	assert.Equal(t, stored.Version+1, reset.Version)
}

func TestParticipants(t *testing.T) {
	database := setupTestDB(t)
	s := NewTournamentStore(database)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, tag := range []string{"2PY", "2PP"} {
		p := &bracket.Participant{Tag: tag, DisplayName: tag, RegisteredAt: now.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.InsertParticipant(ctx, database, p))
	}
	err := s.InsertParticipant(ctx, database, &bracket.Participant{Tag: "2PP", DisplayName: "dup", RegisteredAt: now})
	assert.ErrorIs(t, err, bracket.ErrDuplicateTag)

	participants, err := s.ListParticipants(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, []string{"2PY", "2PP"}, bracket.Tags(participants))

	n, err := s.CountParticipants(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.EliminateParticipant(ctx, database, "2PY", 1))
	assert.ErrorIs(t, s.EliminateParticipant(ctx, database, "2PY", 2), bracket.ErrConcurrentModification)

	p, err := s.GetParticipant(ctx, database, "2PY")
	require.NoError(t, err)
	assert.True(t, p.Eliminated)
	assert.Equal(t, 1, *p.EliminatedRound)

	require.NoError(t, s.DeleteParticipant(ctx, database, "2PP"))
	assert.ErrorIs(t, s.DeleteParticipant(ctx, database, "2PP"), bracket.ErrNotRegistered)
	_, err = s.GetParticipant(ctx, database, "2PP")
	assert.ErrorIs(t, err, bracket.ErrNotRegistered)
}

func TestMatches(t *testing.T) {
	database := setupTestDB(t)
	s := NewTournamentStore(database)
	ctx := context.Background()

	round := bracket.PairRound(1, bracket.Seats([]string{"2PP", "2PY", "2PL"}))
	require.NoError(t, s.InsertMatches(ctx, database, round))
	assert.ErrorIs(t, s.InsertMatches(ctx, database, round), bracket.ErrConcurrentModification)

	complete, err := s.RoundComplete(ctx, database, 1)
	require.NoError(t, err)
	assert.False(t, complete)

	complete, err = s.RoundComplete(ctx, database, 2)
	require.NoError(t, err)
	assert.False(t, complete, "a round without matches is not complete")

	changed, err := s.MarkAwaiting(ctx, database, 1, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.MarkAwaiting(ctx, database, 1, 0)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.ErrorIs(t, s.ResolveMatch(ctx, database, 1, 0, "2PP", "2PL"), bracket.ErrAlreadyResolved)
	require.NoError(t, s.ResolveMatch(ctx, database, 1, 0, "2PY", "2PP"))
	assert.ErrorIs(t, s.ResolveMatch(ctx, database, 1, 0, "2PP", "2PY"), bracket.ErrAlreadyResolved)

	m, err := s.GetMatch(ctx, database, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchResolved, m.State)
	assert.Equal(t, "2PY", *m.Winner)
	assert.NotNil(t, m.ResolvedAt)

	complete, err = s.RoundComplete(ctx, database, 1)
	require.NoError(t, err)
	assert.True(t, complete)

	found, err := s.FindMatchByTag(ctx, database, 1, "2PL")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Slot)

	_, err = s.GetMatch(ctx, database, 3, 0)
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	require.NoError(t, s.DeleteAllMatches(ctx, database))
	all, err := s.ListMatches(ctx, database)
	require.NoError(t, err)
	assert.Empty(t, all)
}
