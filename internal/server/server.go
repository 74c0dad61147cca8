package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"arena-tracker/internal/constants"
	"arena-tracker/internal/feed"
	"arena-tracker/internal/service"

	"github.com/rs/zerolog"
)

// Server exposes the query services as a JSON API. All feed errors funnel
// through writeError so total feed unavailability maps to a 503 with a
// Retry-After header.
type Server struct {
	coord    *feed.Coordinator
	upcoming *service.UpcomingService
	matchups *service.MatchupService
	history  *service.HistoryService
	logger   zerolog.Logger
}

func New(
	coord *feed.Coordinator,
	upcoming *service.UpcomingService,
	matchups *service.MatchupService,
	history *service.HistoryService,
	logger zerolog.Logger,
) *Server {
	return &Server{
		coord:    coord,
		upcoming: upcoming,
		matchups: matchups,
		history:  history,
		logger:   logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	mux.HandleFunc("GET /api/champions/{token_id}/matchups", s.handleMatchups)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/class-changes", s.handleClassChanges)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coord.Health())
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	summary, err := s.upcoming.Summary(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMatchups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	tokenID, err := strconv.Atoi(r.PathValue("token_id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Detail: "token_id must be an integer"})
		return
	}

	result, err := s.matchups.ForChampion(ctx, tokenID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result == nil {
		s.writeJSON(w, http.StatusNotFound, errorBody{Detail: "Champion not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Detail: "limit must be an integer"})
			return
		}
		limit = n
	}

	result, err := s.history.Analysis(ctx, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClassChanges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	changes, err := s.history.ClassChanges(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, changes)
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *feed.FeedUnavailableError
	if errors.As(err, &unavailable) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("feed unavailable")
		w.Header().Set("Retry-After", strconv.Itoa(int(unavailable.RetryAfter.Seconds())))
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Detail: "Feed data temporarily unavailable. Please try again later.",
		})
		return
	}

	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
