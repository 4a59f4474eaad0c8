package bracket

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		err       error
		kind      Kind
		retryable bool
	}{
		{ErrRegistrationClosed, KindState, false},
		{pkgerrors.Wrap(ErrAlreadyResolved, "round 1 slot 0"), KindState, false},
		{pkgerrors.Wrapf(ErrNotRegistered, "tag %s", "2PP"), KindNotFound, false},
		{ErrDuplicateTag, KindConflict, false},
		{pkgerrors.Wrap(ErrConcurrentModification, "stale"), KindConflict, true},
		{pkgerrors.Wrap(ErrFeedUnavailable, "timeout"), KindExternal, true},
		{ErrNoMatchingRecord, KindExternal, true},
		{ErrStoreUnavailable, KindExternal, false},
		{ErrParticipantMismatch, KindValidation, false},
		{ErrInsufficientParticipants, KindValidation, false},
		{errors.New("boom"), KindUnknown, false},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.retryable, Retryable(tc.err))
		})
	}
}

func TestConfigPhase(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, PhaseRegistration, cfg.Phase(true))
	assert.NoError(t, cfg.Validate())

	cfg.Started = true
	cfg.CurrentRound = 1
	cfg.TotalRounds = 2
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, PhaseRoundInProgress, cfg.Phase(false))
	assert.Equal(t, PhaseRoundComplete, cfg.Phase(true))

	cfg.Finished = true
	assert.Equal(t, PhaseFinished, cfg.Phase(true))

	cfg.CurrentRound = 3
	assert.ErrorIs(t, cfg.Validate(), ErrRoundOutOfRange)

	cfg = DefaultConfig()
	cfg.CurrentRound = 1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidState)
}
