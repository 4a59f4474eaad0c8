package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/metrics"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/jmoiron/sqlx"
)

const maxDisplayNameLength = 50

var registrationLogger = logging.GetZeroLogger("service::registration", nil)

type RegistrationService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	notify live.Notifier
}

func NewRegistrationService(db *sqlx.DB, store *store.TournamentStore, notify live.Notifier) *RegistrationService {
	if notify == nil {
		notify = live.Discard
	}
	return &RegistrationService{db: db, store: store, notify: notify}
}

func (s *RegistrationService) Register(ctx context.Context, rawTag string, displayName string) (*bracket.Participant, error) {
	tag, err := bracket.NormalizeTag(rawTag)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = tag
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		return nil, bracket.ErrInvalidDisplayName
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := s.store.LockConfig(ctx, tx, false)
	if err != nil {
		return nil, err
	}
	if !cfg.RegistrationOpen {
		return nil, bracket.ErrRegistrationClosed
	}

	p := &bracket.Participant{
		Tag:          tag,
		DisplayName:  displayName,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.store.InsertParticipant(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}

	metrics.Metrics.Registered()
	registrationLogger.Info().Str(logging.TagKey, tag).Str("display_name", displayName).Msg("Participant registered.")
	s.notify.Publish(live.Event{Type: live.ParticipantRegistered, Payload: p})
	return p, nil
}

// Deregister withdraws a registration. Registrations are frozen once the
// tournament starts.
func (s *RegistrationService) Deregister(ctx context.Context, rawTag string) error {
	tag, err := bracket.NormalizeTag(rawTag)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback()

	cfg, err := s.store.LockConfig(ctx, tx, false)
	if err != nil {
		return err
	}
	if cfg.Started {
		return bracket.ErrTournamentStarted
	}
	if !cfg.RegistrationOpen {
		return bracket.ErrRegistrationClosed
	}
	if err := s.store.DeleteParticipant(ctx, tx, tag); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}

	metrics.Metrics.Deregistered()
	registrationLogger.Info().Str(logging.TagKey, tag).Msg("Participant deregistered.")
	s.notify.Publish(live.Event{Type: live.ParticipantDeregistered, Payload: map[string]string{"tag": tag}})
	return nil
}

// SeedRoundOne returns participants in registration order. It is the only
// source of the initial seeding.
func (s *RegistrationService) SeedRoundOne(ctx context.Context, q sqlx.ExtContext) ([]bracket.Participant, error) {
	return s.store.ListParticipants(ctx, q)
}

func (s *RegistrationService) ListParticipants(ctx context.Context) ([]bracket.Participant, error) {
	return s.store.ListParticipants(ctx, s.db)
}

func (s *RegistrationService) GetParticipant(ctx context.Context, rawTag string) (*bracket.Participant, error) {
	tag, err := bracket.NormalizeTag(rawTag)
	if err != nil {
		return nil, err
	}
	return s.store.GetParticipant(ctx, s.db, tag)
}
