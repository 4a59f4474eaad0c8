package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/db"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.InitDB(db.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	t.Cleanup(func() { database.Close() })
	return database
}

// stubFeed serves fixed histories per tag.
type stubFeed struct {
	mu          sync.Mutex
	histories   map[string][]bracket.HistoryEntry
	err         error
	calls       int
	invalidated []string
}

func newStubFeed() *stubFeed {
	return &stubFeed{histories: make(map[string][]bracket.HistoryEntry)}
}

func (f *stubFeed) FetchRecentHistory(_ context.Context, tag string) ([]bracket.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.histories[tag], nil
}

func (f *stubFeed) Invalidate(_ context.Context, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, tag)
}

func duel(mode bracket.Mode, a, b string, outcome bracket.Outcome, ago time.Duration) bracket.HistoryEntry {
	return bracket.HistoryEntry{
		Mode:      string(mode),
		Sides:     [][]string{{a}, {b}},
		Outcome:   outcome,
		Timestamp: time.Now().Add(-ago),
	}
}

type testEnv struct {
	db           *sqlx.DB
	store        *store.TournamentStore
	tournament   *TournamentService
	registration *RegistrationService
	bracket      *BracketService
	matches      *MatchService
	controller   *RoundController
	feed         *stubFeed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database := setupTestDB(t)
	tournamentStore := store.NewTournamentStore(database)
	feed := newStubFeed()

	env := &testEnv{
		db:           database,
		store:        tournamentStore,
		tournament:   NewTournamentService(database, tournamentStore, nil),
		registration: NewRegistrationService(database, tournamentStore, nil),
		bracket:      NewBracketService(database, tournamentStore, nil),
		feed:         feed,
	}
	env.matches = NewMatchService(database, tournamentStore, env.bracket, feed)
	env.controller = NewRoundController(database, tournamentStore, env.tournament, env.registration, env.bracket, nil)

	require.NoError(t, env.tournament.Initialize(context.Background()))
	return env
}

func (e *testEnv) register(t *testing.T, tags ...string) {
	t.Helper()
	for _, tag := range tags {
		_, err := e.registration.Register(context.Background(), tag, "")
		require.NoError(t, err)
	}
}
