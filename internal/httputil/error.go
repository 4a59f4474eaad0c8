package httputil

import (
	"net/http"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/pkg/errors"
)

var httpLogger = logging.GetZeroLogger("http", nil)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Retry bool   `json:"retry,omitempty"`
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	httpLogger.Error().Err(err).Msg(msg)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		httpLogger.Warn().Err(err).Str("message", msg).Msg("bad request")
	} else {
		httpLogger.Warn().Str("message", msg).Msg("bad request")
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		httpLogger.Warn().Err(err).Str("message", msg).Msg("not found")
	} else {
		httpLogger.Warn().Str("message", msg).Msg("not found")
	}
	WriteJSON(w, http.StatusNotFound, errorBody{Error: msg})
}

func Unauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "operator credentials required"})
}

// Status maps a bracket error to the HTTP status it is reported with.
func Status(err error) int {
	switch bracket.KindOf(err) {
	case bracket.KindState, bracket.KindConflict:
		return http.StatusConflict
	case bracket.KindNotFound:
		return http.StatusNotFound
	case bracket.KindExternal:
		if errors.Is(err, bracket.ErrStoreUnavailable) {
			return http.StatusInternalServerError
		}
		return http.StatusServiceUnavailable
	case bracket.KindValidation:
		switch {
		case errors.Is(err, bracket.ErrParticipantMismatch),
			errors.Is(err, bracket.ErrInsufficientParticipants),
			errors.Is(err, bracket.ErrTotalRoundsTooSmall):
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error reports err to the client. Store failures and unclassified errors are
// logged and hidden behind a generic message.
func Error(w http.ResponseWriter, msg string, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, msg, err)
		return
	}

	kind := bracket.KindOf(err)
	httpLogger.Debug().Err(err).Int("status", status).Str("kind", kind.String()).Msg(msg)
	WriteJSON(w, status, errorBody{
		Error: err.Error(),
		Kind:  kind.String(),
		Retry: bracket.Retryable(err),
	})
}
