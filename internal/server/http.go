package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"DebtLedger/internal/observability"
	"DebtLedger/internal/query"
)

// Server is the HTTP surface: command submission, projection-backed queries,
// health probes, and Prometheus metrics.
type Server struct {
	router   chi.Router
	queries  *query.Service
	commands *CommandGateway
	health   *observability.HealthChecker
	log      zerolog.Logger
	httpSrv  *http.Server
}

func New(addr string, queries *query.Service, commands *CommandGateway, health *observability.HealthChecker, log zerolog.Logger) *Server {
	s := &Server{
		queries:  queries,
		commands: commands,
		health:   health,
		log:      log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/commands/{command}", s.handleCommand)

		r.Get("/holders/{holderID}/balance", s.handleBalance)
		r.Get("/holders/{holderID}/positions", s.handlePositionsByOwner)
		r.Get("/holders/{holderID}/journal", s.handleJournal)
		r.Get("/positions/{positionID}", s.handlePosition)
		r.Get("/operations", s.handleOperations)
		r.Get("/system/overview", s.handleOverview)
		r.Get("/admin/integrity", s.handleIntegrity)
	})

	s.router = r
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	s.commands.Submit(w, r, chi.URLParam(r, "command"))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(chi.URLParam(r, "holderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	resp, err := s.queries.GetBalance(r.Context(), holderID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseUint(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid position id")
		return
	}

	resp, err := s.queries.GetPosition(r.Context(), positionID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePositionsByOwner(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(chi.URLParam(r, "holderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	resp, err := s.queries.GetPositionsByOwner(r.Context(), holderID)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	var positionID *uint64
	if raw := r.URL.Query().Get("position_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid position_id")
			return
		}
		positionID = &id
	}

	var actorID *uuid.UUID
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid actor_id")
			return
		}
		actorID = &id
	}

	limit := queryLimit(r)
	beforeSeq := queryBeforeSeq(r)

	resp, err := s.queries.GetOperations(r.Context(), positionID, actorID, limit, beforeSeq)
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(chi.URLParam(r, "holderID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	resp, err := s.queries.GetJournalHistory(r.Context(), holderID, queryLimit(r), queryBeforeSeq(r))
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queries.GetSystemOverview(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("query failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryLimit(r *http.Request) int {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func queryBeforeSeq(r *http.Request) *int64 {
	if raw := r.URL.Query().Get("before_seq"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
