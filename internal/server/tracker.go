package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"legend-tracker/internal/domain"
	"legend-tracker/internal/metrics"
	"legend-tracker/internal/middleware"
	"legend-tracker/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type TrackerServer struct {
	playerSvc *service.PlayerService
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewTrackerServer(playerSvc *service.PlayerService, m *metrics.Metrics, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{playerSvc: playerSvc, metrics: m, logger: logger}
}

type addPlayerRequest struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Handler returns the admin API with request ids and CORS applied.
func (s *TrackerServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/players", s.listPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players", s.addPlayer).Methods(http.MethodPost)
	api.HandleFunc("/players/{tag}", s.removePlayer).Methods(http.MethodDelete)
	api.HandleFunc("/players/{tag}/legend", s.legendLog).Methods(http.MethodGet)
	api.HandleFunc("/players/{tag}/season", s.season).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return middleware.RequestID(s.logger)(c.Handler(r))
}

func (s *TrackerServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *TrackerServer) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.playerSvc.ListPlayers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *TrackerServer) addPlayer(w http.ResponseWriter, r *http.Request) {
	var req addPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", RequestID: middleware.GetRequestID(r.Context())})
		return
	}
	player, err := s.playerSvc.AddPlayer(r.Context(), req.Name, req.Tag)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, player)
}

func (s *TrackerServer) removePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.playerSvc.RemovePlayer(r.Context(), mux.Vars(r)["tag"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TrackerServer) legendLog(w http.ResponseWriter, r *http.Request) {
	days, err := s.playerSvc.GetLegendLog(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *TrackerServer) season(w http.ResponseWriter, r *http.Request) {
	days, err := s.playerSvc.GetSeason(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *TrackerServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidTag):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPlayerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPlayerExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
