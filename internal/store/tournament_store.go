package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// TournamentStore keeps the three tournament collections: the config
// singleton, participants keyed by tag and matches keyed by (round, slot).
// Every method takes the querier to run on so callers can group writes in
// one transaction.
type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	getConfigQuery       = "SELECT * FROM tournament_config WHERE id = 1"
	getConfigSharedQuery = "SELECT * FROM tournament_config WHERE id = 1 FOR SHARE"
	getConfigUpdateQuery = "SELECT * FROM tournament_config WHERE id = 1 FOR UPDATE"
	insertConfigQuery    = `
		INSERT INTO tournament_config (id, registration_open, started, finished, current_round, total_rounds, mode, map, champion, version, updated_at)
		VALUES (:id, :registration_open, :started, :finished, :current_round, :total_rounds, :mode, :map, :champion, :version, :updated_at)
		ON CONFLICT (id) DO NOTHING
	`
	updateConfigQuery = `
		UPDATE tournament_config SET
		registration_open = :registration_open,
		started = :started,
		finished = :finished,
		current_round = :current_round,
		total_rounds = :total_rounds,
		mode = :mode,
		map = :map,
		champion = :champion,
		version = version + 1,
		updated_at = :updated_at
		WHERE id = :id AND version = :version
	`
	resetConfigQuery = `
		UPDATE tournament_config SET
		registration_open = TRUE,
		started = FALSE,
		finished = FALSE,
		current_round = 0,
		total_rounds = 0,
		mode = NULL,
		map = NULL,
		champion = NULL,
		version = version + 1,
		updated_at = ?
		WHERE id = 1
	`
)

func (s *TournamentStore) GetConfig(ctx context.Context, q sqlx.QueryerContext) (*bracket.TournamentConfig, error) {
	var cfg bracket.TournamentConfig
	if err := sqlx.GetContext(ctx, q, &cfg, getConfigQuery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrConfigMissing
		}
		return nil, unavailable(err, "get config")
	}
	return &cfg, nil
}

// LockConfig reads the config inside tx and, on Postgres, locks the row
// until tx ends. Registrations take a shared lock and phase changes an
// exclusive one, so a registration can never slip in after start has read
// the participant list. SQLite serializes transactions on its own.
func (s *TournamentStore) LockConfig(ctx context.Context, tx *sqlx.Tx, exclusive bool) (*bracket.TournamentConfig, error) {
	query := getConfigQuery
	if tx.DriverName() == "postgres" {
		query = getConfigSharedQuery
		if exclusive {
			query = getConfigUpdateQuery
		}
	}
	var cfg bracket.TournamentConfig
	if err := tx.GetContext(ctx, &cfg, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrConfigMissing
		}
		return nil, unavailable(err, "lock config")
	}
	return &cfg, nil
}

func (s *TournamentStore) InsertConfig(ctx context.Context, q sqlx.ExtContext, cfg *bracket.TournamentConfig) error {
	res, err := sqlx.NamedExecContext(ctx, q, insertConfigQuery, cfg)
	if err != nil {
		return unavailable(err, "insert config")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "insert config")
	} else if n == 0 {
		return bracket.ErrAlreadyInitialized
	}
	return nil
}

// UpdateConfig writes cfg only if the stored version still equals
// cfg.Version, then bumps cfg.Version to match the stored row.
func (s *TournamentStore) UpdateConfig(ctx context.Context, q sqlx.ExtContext, cfg *bracket.TournamentConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	res, err := sqlx.NamedExecContext(ctx, q, updateConfigQuery, cfg)
	if err != nil {
		return unavailable(err, "update config")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "update config")
	} else if n == 0 {
		return errors.Wrapf(bracket.ErrConcurrentModification, "config version %d is stale", cfg.Version)
	}
	cfg.Version++
	return nil
}

func (s *TournamentStore) ResetConfig(ctx context.Context, q sqlx.ExtContext) error {
	res, err := q.ExecContext(ctx, q.Rebind(resetConfigQuery), time.Now().UTC())
	if err != nil {
		return unavailable(err, "reset config")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "reset config")
	} else if n == 0 {
		return bracket.ErrConfigMissing
	}
	return nil
}

func unavailable(err error, op string) error {
	return errors.Wrapf(bracket.ErrStoreUnavailable, "%s: %v", op, err)
}
