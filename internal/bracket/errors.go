package bracket

import (
	"github.com/pkg/errors"
)

// Kind classifies an error by how a caller should react to it.
type Kind int

const (
	KindUnknown Kind = iota
	KindState
	KindNotFound
	KindConflict
	KindExternal
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrAlreadyInitialized = newError(KindState, "tournament config already initialized")
	ErrInvalidState       = newError(KindState, "operation not allowed in the current tournament phase")
	ErrNotStarted         = newError(KindState, "tournament has not started")
	ErrRegistrationClosed = newError(KindState, "registration is closed")
	ErrTournamentStarted  = newError(KindState, "tournament has already started")
	ErrTournamentFinished = newError(KindState, "tournament is finished")
	ErrAlreadyResolved    = newError(KindState, "match is already resolved")
	ErrRoundIncomplete    = newError(KindState, "round still has unresolved matches")

	ErrNotFound      = newError(KindNotFound, "match not found")
	ErrNotRegistered = newError(KindNotFound, "participant is not registered")
	ErrConfigMissing = newError(KindNotFound, "tournament config is not initialized")

	ErrDuplicateTag           = newError(KindConflict, "tag is already registered")
	ErrConcurrentModification = newError(KindConflict, "state changed concurrently, retry the action")

	ErrFeedUnavailable  = newError(KindExternal, "match history feed is unavailable")
	ErrNoMatchingRecord = newError(KindExternal, "no matching battle record found yet")
	ErrStoreUnavailable = newError(KindExternal, "tournament store is unavailable")

	ErrParticipantMismatch      = newError(KindValidation, "players are not the participants of this match")
	ErrInsufficientParticipants = newError(KindValidation, "at least two participants are required")
	ErrInvalidTag               = newError(KindValidation, "invalid player tag")
	ErrInvalidDisplayName       = newError(KindValidation, "display name must be 1 to 50 characters")
	ErrUnknownMode              = newError(KindValidation, "unknown game mode")
	ErrRoundOutOfRange          = newError(KindValidation, "round is out of range")
	ErrTotalRoundsTooSmall      = newError(KindValidation, "total rounds cannot fit all participants")
)

// KindOf walks the wrap chain and returns the kind of the first taxonomy
// error it finds.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether repeating the same action later may succeed.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrFeedUnavailable),
		errors.Is(err, ErrNoMatchingRecord):
		return true
	}
	return false
}
