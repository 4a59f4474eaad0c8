package main

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/dbc-bracket/internal/bracket"
	"github.com/AdamBeresnev/dbc-bracket/internal/httputil"
	"github.com/AdamBeresnev/dbc-bracket/internal/live"
	"github.com/AdamBeresnev/dbc-bracket/internal/middleware"
	"github.com/AdamBeresnev/dbc-bracket/internal/operator"
	"github.com/AdamBeresnev/dbc-bracket/internal/publish"
	"github.com/AdamBeresnev/dbc-bracket/internal/service"
	"github.com/AdamBeresnev/dbc-bracket/internal/store"
	"github.com/AdamBeresnev/dbc-bracket/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/markbates/goth/gothic"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type app struct {
	sessionManager *scs.SessionManager
	operatorStore  *store.OperatorStore
	allowlist      operator.Allowlist
	operatorToken  string
	corsOrigins    []string

	tournament   *service.TournamentService
	registration *service.RegistrationService
	bracket      *service.BracketService
	matches      *service.MatchService
	controller   *service.RoundController
	snapshots    *service.SnapshotService
	operators    *service.OperatorService
	hub          *live.Hub
	uploader     *publish.Uploader
}

type registerRequest struct {
	Tag         string `json:"tag"`
	DisplayName string `json:"display_name"`
}

type submitRequest struct {
	Tag string `json:"tag"`
}

type startRequest struct {
	TotalRounds int    `json:"total_rounds"`
	Mode        string `json:"mode"`
	Map         string `json:"map"`
}

type advanceRequest struct {
	Force bool `json:"force"`
}

type roundRequest struct {
	Round *int `json:"round"`
}

type registrationRequest struct {
	Open bool `json:"open"`
}

type adjudicateRequest struct {
	Winner string `json:"winner"`
}

type tournamentResponse struct {
	Phase  bracket.Phase             `json:"phase"`
	Config *bracket.TournamentConfig `json:"config"`
}

type opponentResponse struct {
	Match    *bracket.Match `json:"match"`
	Opponent *string        `json:"opponent"`
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(a.sessionManager.LoadAndSave)
	r.Use(middleware.LoadOperator(a.sessionManager, a.operatorStore))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", a.hub.ServeWS)

	r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
		snap, err := a.snapshots.Load(r.Context())
		if err != nil {
			httputil.Error(w, "Failed to load bracket", err)
			return
		}
		if err := views.Render(w, r, views.BracketPage(views.PrepareBracketData(snap))); err != nil {
			httputil.InternalServerError(w, "Failed to render bracket", err)
		}
	})

	r.Get("/tournament", func(w http.ResponseWriter, r *http.Request) {
		phase, cfg, err := a.controller.Phase(r.Context())
		if err != nil {
			httputil.Error(w, "Failed to get tournament", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, tournamentResponse{Phase: phase, Config: cfg})
	})

	r.Route("/participants", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			participants, err := a.registration.ListParticipants(r.Context())
			if err != nil {
				httputil.Error(w, "Failed to list participants", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, participants)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req registerRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			p, err := a.registration.Register(r.Context(), req.Tag, req.DisplayName)
			if err != nil {
				httputil.Error(w, "Failed to register", err)
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, p)
		})

		r.Delete("/{tag}", func(w http.ResponseWriter, r *http.Request) {
			if err := a.registration.Deregister(r.Context(), chi.URLParam(r, "tag")); err != nil {
				httputil.Error(w, "Failed to deregister", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/{tag}/opponent", func(w http.ResponseWriter, r *http.Request) {
			m, opponent, err := a.bracket.FindOpponent(r.Context(), chi.URLParam(r, "tag"))
			if err != nil {
				httputil.Error(w, "Failed to find opponent", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, opponentResponse{Match: m, Opponent: opponent})
		})
	})

	r.Route("/rounds/{round}/matches", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			round, ok := intParam(w, r, "round")
			if !ok {
				return
			}
			matches, err := a.bracket.ListRound(r.Context(), round)
			if err != nil {
				httputil.Error(w, "Failed to list matches", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, matches)
		})

		r.Get("/{slot}", func(w http.ResponseWriter, r *http.Request) {
			round, slot, ok := matchParams(w, r)
			if !ok {
				return
			}
			m, err := a.bracket.GetMatch(r.Context(), round, slot)
			if err != nil {
				httputil.Error(w, "Failed to get match", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})

		r.Post("/{slot}/submit", func(w http.ResponseWriter, r *http.Request) {
			round, slot, ok := matchParams(w, r)
			if !ok {
				return
			}
			var req submitRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			m, err := a.matches.SubmitResult(r.Context(), round, slot, req.Tag)
			if err != nil {
				httputil.Error(w, "Failed to submit result", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})

		r.With(middleware.RequireOperator(a.allowlist, a.operatorToken)).Post("/{slot}/adjudicate", func(w http.ResponseWriter, r *http.Request) {
			round, slot, ok := matchParams(w, r)
			if !ok {
				return
			}
			var req adjudicateRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			m, err := a.matches.Adjudicate(r.Context(), round, slot, req.Winner)
			if err != nil {
				httputil.Error(w, "Failed to adjudicate", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, m)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator(a.allowlist, a.operatorToken))

		r.Post("/tournament/start", func(w http.ResponseWriter, r *http.Request) {
			var req startRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			var mode bracket.Mode
			if req.Mode != "" {
				parsed, err := bracket.ParseMode(req.Mode)
				if err != nil {
					httputil.Error(w, "Failed to start tournament", errors.Wrapf(err, "mode %q", req.Mode))
					return
				}
				mode = parsed
			}
			cfg, matches, err := a.controller.StartTournament(r.Context(), req.TotalRounds, mode, req.Map)
			if err != nil {
				httputil.Error(w, "Failed to start tournament", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"config":  cfg,
				"matches": matches,
			})
		})

		r.Post("/tournament/advance", func(w http.ResponseWriter, r *http.Request) {
			var req advanceRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			result, err := a.controller.Advance(r.Context(), req.Force)
			if err != nil {
				httputil.Error(w, "Failed to advance", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, result)
		})

		r.Post("/tournament/round", func(w http.ResponseWriter, r *http.Request) {
			var req roundRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			cfg, err := a.tournament.AdvanceRound(r.Context(), req.Round)
			if err != nil {
				httputil.Error(w, "Failed to set round", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, cfg)
		})

		r.Post("/tournament/registration", func(w http.ResponseWriter, r *http.Request) {
			var req registrationRequest
			if err := httputil.DecodeJSON(r, &req); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			cfg, err := a.tournament.SetRegistration(r.Context(), req.Open)
			if err != nil {
				httputil.Error(w, "Failed to toggle registration", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, cfg)
		})

		r.Post("/tournament/reset", func(w http.ResponseWriter, r *http.Request) {
			if err := a.controller.Reset(r.Context()); err != nil {
				httputil.Error(w, "Failed to reset tournament", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/players/{tag}/history", func(w http.ResponseWriter, r *http.Request) {
			entries, err := a.matches.History(r.Context(), chi.URLParam(r, "tag"))
			if err != nil {
				httputil.Error(w, "Failed to fetch history", err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, entries)
		})

		r.Post("/bracket/publish", func(w http.ResponseWriter, r *http.Request) {
			if a.uploader == nil {
				httputil.NotFound(w, "Publishing is not configured", nil)
				return
			}
			snap, err := a.snapshots.Load(r.Context())
			if err != nil {
				httputil.Error(w, "Failed to load bracket", err)
				return
			}
			var buf bytes.Buffer
			if err := views.BracketPage(views.PrepareBracketData(snap)).Render(r.Context(), &buf); err != nil {
				httputil.InternalServerError(w, "Failed to render bracket", err)
				return
			}
			location, err := a.uploader.Upload(r.Context(), buf.Bytes())
			if err != nil {
				httputil.Error(w, "Failed to publish bracket", errors.Wrapf(bracket.ErrStoreUnavailable, "%v", err))
				return
			}
			httputil.WriteJSON(w, http.StatusCreated, map[string]string{"url": location})
		})
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		op, err := a.operators.FindOrCreateOperatorByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create operator", err)
			return
		}

		if err := a.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		a.sessionManager.Put(r.Context(), middleware.OperatorIDSessionKey, op.ID.String())

		http.Redirect(w, r, "/bracket", http.StatusFound)
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := a.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to log out", err)
			return
		}
		http.Redirect(w, r, "/bracket", http.StatusFound)
	})

	return r
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return 0, false
	}
	return v, true
}

func matchParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	round, ok := intParam(w, r, "round")
	if !ok {
		return 0, 0, false
	}
	slot, ok := intParam(w, r, "slot")
	if !ok {
		return 0, 0, false
	}
	return round, slot, true
}
