package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/dbc-bracket/internal/config"
	"github.com/AdamBeresnev/dbc-bracket/internal/httputil"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

const OperatorIDSessionKey = "operatorID"

var authLogger = logging.GetZeroLogger("middleware::auth", nil)

// InitAuth registers the OAuth providers that have credentials configured.
func InitAuth(cfg config.AuthConfig) {
	var providers []goth.Provider
	if cfg.DiscordKey != "" {
		providers = append(providers, discord.New(cfg.DiscordKey, cfg.DiscordSecret, cfg.DiscordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail))
	}
	if cfg.GoogleKey != "" {
		providers = append(providers, google.New(cfg.GoogleKey, cfg.GoogleSecret, cfg.GoogleCallbackURL, "email", "profile"))
	}
	if len(providers) == 0 {
		authLogger.Warn().Msg("No OAuth providers configured, operators must use the bearer token.")
		return
	}
	goth.UseProviders(providers...)
}

// LoadOperator puts the signed-in operator, if any, on the request context.
func LoadOperator(sessionManager *scs.SessionManager, operatorStore *store.OperatorStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionManager.GetString(r.Context(), OperatorIDSessionKey)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			op, err := operatorStore.GetOperator(r.Context(), id)
			if err != nil {
				sessionManager.Remove(r.Context(), OperatorIDSessionKey)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), operator.OperatorKey, op)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator admits requests from an allow-listed signed-in operator or
// carrying the operator bearer token.
func RequireOperator(allowlist operator.Allowlist, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && bearerMatches(r, token) {
				next.ServeHTTP(w, r)
				return
			}
			if op := GetAuthenticatedOperator(r.Context()); allowlist.Allows(op) {
				next.ServeHTTP(w, r)
				return
			}
			authLogger.Warn().Str("path", r.URL.Path).Msg("Operator action refused.")
			httputil.Unauthorized(w)
		})
	}
}

func bearerMatches(r *http.Request, token string) bool {
	header := r.Header.Get("Authorization")
	given := strings.TrimPrefix(header, "Bearer ")
	if given == header {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(token)) == 1
}

func GetAuthenticatedOperator(ctx context.Context) *operator.Operator {
	val := ctx.Value(operator.OperatorKey)
	if val == nil {
		return nil
	}
	op, ok := val.(*operator.Operator)
	if !ok {
		return nil
	}
	return op
}
