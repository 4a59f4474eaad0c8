package store

import (
	"context"

	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
	"github.com/jmoiron/sqlx"
)

type OperatorStore struct {
	db *sqlx.DB
}

const (
	getOperatorQuery           = "SELECT * FROM operators WHERE id = ?"
	getOperatorByProviderQuery = `
        SELECT * FROM operators
        WHERE provider = ?
        AND provider_id = ?
    `
	createOperatorQuery = `
		INSERT INTO operators (id, email, username, provider, provider_id, avatar_url, created_at) VALUES
		(:id, :email, :username, :provider, :provider_id, :avatar_url, :created_at)
	`
	updateOperatorProfileQuery = `
		UPDATE operators SET
		username = :username,
		avatar_url = :avatar_url
		WHERE id = :id
	`
)

func NewOperatorStore(db *sqlx.DB) *OperatorStore {
	return &OperatorStore{db: db}
}

func (s *OperatorStore) GetOperatorByProvider(ctx context.Context, provider string, providerID string) (*operator.Operator, error) {
	var op operator.Operator
	err := s.db.GetContext(ctx, &op, s.db.Rebind(getOperatorByProviderQuery), provider, providerID)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *OperatorStore) GetOperator(ctx context.Context, id string) (*operator.Operator, error) {
	var op operator.Operator
	err := s.db.GetContext(ctx, &op, s.db.Rebind(getOperatorQuery), id)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (s *OperatorStore) CreateOperator(ctx context.Context, op *operator.Operator) error {
	_, err := s.db.NamedExecContext(ctx, createOperatorQuery, op)
	return err
}

func (s *OperatorStore) UpdateOperatorProfile(ctx context.Context, op *operator.Operator) error {
	_, err := s.db.NamedExecContext(ctx, updateOperatorProfileQuery, op)
	return err
}
