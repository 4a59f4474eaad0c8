package service

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// SnapshotService assembles read-only views of the bracket for rendering.
type SnapshotService struct {
	db    *sqlx.DB
	store *store.TournamentStore
}

func NewSnapshotService(db *sqlx.DB, store *store.TournamentStore) *SnapshotService {
	return &SnapshotService{db: db, store: store}
}

func (s *SnapshotService) Load(ctx context.Context) (*bracket.Snapshot, error) {
	var (
		snap     bracket.Snapshot
		complete bool
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cfg, err := s.store.GetConfig(gCtx, s.db)
		if err != nil {
			return err
		}
		snap.Config = *cfg
		if cfg.Started && !cfg.Finished {
			complete, err = s.store.RoundComplete(gCtx, s.db, cfg.CurrentRound)
		}
		return err
	})

	g.Go(func() error {
		participants, err := s.store.ListParticipants(gCtx, s.db)
		if err != nil {
			return err
		}
		snap.Participants = participants
		return nil
	})

	g.Go(func() error {
		matches, err := s.store.ListMatches(gCtx, s.db)
		if err != nil {
			return err
		}
		snap.Matches = matches
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.Phase = snap.Config.Phase(complete)
	return &snap, nil
}
