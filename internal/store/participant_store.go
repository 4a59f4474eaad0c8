package store

import (
	"context"
	"database/sql"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	insertParticipantQuery = `
		INSERT INTO participants (tag, display_name, eliminated, registered_at)
		VALUES (:tag, :display_name, :eliminated, :registered_at)
		ON CONFLICT (tag) DO NOTHING
	`
	getParticipantQuery       = "SELECT * FROM participants WHERE tag = ?"
	listParticipantsQuery     = "SELECT * FROM participants ORDER BY registered_at ASC, seq ASC"
	countParticipantsQuery    = "SELECT COUNT(*) FROM participants"
	deleteParticipantQuery    = "DELETE FROM participants WHERE tag = ?"
	deleteParticipantsQuery   = "DELETE FROM participants"
	eliminateParticipantQuery = `
		UPDATE participants SET
		eliminated = TRUE,
		eliminated_round = ?
		WHERE tag = ? AND eliminated = FALSE
	`
)

func (s *TournamentStore) InsertParticipant(ctx context.Context, q sqlx.ExtContext, p *bracket.Participant) error {
	res, err := sqlx.NamedExecContext(ctx, q, insertParticipantQuery, p)
	if err != nil {
		return unavailable(err, "insert participant")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "insert participant")
	} else if n == 0 {
		return bracket.ErrDuplicateTag
	}
	return nil
}

func (s *TournamentStore) GetParticipant(ctx context.Context, q sqlx.ExtContext, tag string) (*bracket.Participant, error) {
	var p bracket.Participant
	if err := sqlx.GetContext(ctx, q, &p, q.Rebind(getParticipantQuery), tag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(bracket.ErrNotRegistered, "tag %s", tag)
		}
		return nil, unavailable(err, "get participant")
	}
	return &p, nil
}

// ListParticipants returns participants in registration order.
func (s *TournamentStore) ListParticipants(ctx context.Context, q sqlx.ExtContext) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	if err := sqlx.SelectContext(ctx, q, &participants, listParticipantsQuery); err != nil {
		return nil, unavailable(err, "list participants")
	}
	return participants, nil
}

func (s *TournamentStore) CountParticipants(ctx context.Context, q sqlx.ExtContext) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, countParticipantsQuery); err != nil {
		return 0, unavailable(err, "count participants")
	}
	return n, nil
}

func (s *TournamentStore) DeleteParticipant(ctx context.Context, q sqlx.ExtContext, tag string) error {
	res, err := q.ExecContext(ctx, q.Rebind(deleteParticipantQuery), tag)
	if err != nil {
		return unavailable(err, "delete participant")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "delete participant")
	} else if n == 0 {
		return errors.Wrapf(bracket.ErrNotRegistered, "tag %s", tag)
	}
	return nil
}

// EliminateParticipant flips the eliminated flag exactly once. A second
// attempt, or one for an unknown tag, reports a concurrent modification.
func (s *TournamentStore) EliminateParticipant(ctx context.Context, q sqlx.ExtContext, tag string, round int) error {
	res, err := q.ExecContext(ctx, q.Rebind(eliminateParticipantQuery), round, tag)
	if err != nil {
		return unavailable(err, "eliminate participant")
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable(err, "eliminate participant")
	} else if n == 0 {
		return errors.Wrapf(bracket.ErrConcurrentModification, "participant %s is already eliminated or missing", tag)
	}
	return nil
}

func (s *TournamentStore) DeleteAllParticipants(ctx context.Context, q sqlx.ExtContext) error {
	if _, err := q.ExecContext(ctx, deleteParticipantsQuery); err != nil {
		return unavailable(err, "delete participants")
	}
	return nil
}
