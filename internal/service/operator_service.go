package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/AdamBeresnev/dbc-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
	"github.com/pkg/errors"
)

type OperatorService struct {
	db    *sqlx.DB
	store *store.OperatorStore
}

func NewOperatorService(db *sqlx.DB, store *store.OperatorStore) *OperatorService {
	return &OperatorService{db: db, store: store}
}

// FindOrCreateOperatorByProvider maps a completed OAuth login to an operator
// record, refreshing the stored name and avatar.
func (s *OperatorService) FindOrCreateOperatorByProvider(ctx context.Context, gothUser goth.User) (*operator.Operator, error) {
	op, err := s.store.GetOperatorByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(op.AvatarURL) != gothUser.AvatarURL || op.Username != gothUser.NickName {
			op.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			op.Username = gothUser.NickName
			if err := s.store.UpdateOperatorProfile(ctx, op); err != nil {
				return nil, errors.Wrap(err, "failed to update operator profile")
			}
		}
		return op, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		username := gothUser.NickName
		if username == "" {
			username = gothUser.Name
		}
		newOperator := &operator.Operator{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   username,
			Provider:   gothUser.Provider,
			ProviderID: gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.CreateOperator(ctx, newOperator); err != nil {
			return nil, errors.Wrap(err, "failed to create operator")
		}
		return newOperator, nil
	}

	return nil, err
}

func (s *OperatorService) GetOperator(ctx context.Context, id string) (*operator.Operator, error) {
	return s.store.GetOperator(ctx, id)
}
