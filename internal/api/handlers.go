package api

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Path        string              `json:"path"`
	TestedTotal int64               `json:"tested_total"`
	SizeBytes   int64               `json:"size_bytes"`
	AllTime     *store.AllTimeStats `json:"all_time"`
	LastSession string              `json:"last_session_id,omitempty"`
	LastUpdated string              `json:"last_updated,omitempty"`
}

// TestedResponse is the body of GET /v1/tested/{n}.
type TestedResponse struct {
	N      string `json:"n"`
	Tested bool   `json:"tested"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("stats: count failed")
		s.writeError(w, http.StatusInternalServerError, "failed to read store")
		return
	}
	allTime, err := s.store.LoadAllTime(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("stats: all-time read failed")
		s.writeError(w, http.StatusInternalServerError, "failed to read store")
		return
	}

	resp := StatsResponse{
		Path:        s.store.Path(),
		TestedTotal: count,
		SizeBytes:   s.store.SizeBytes(),
		AllTime:     allTime,
	}
	// Session markers are optional; a fresh store has neither.
	if v, ok, err := s.store.StatsGet(ctx, store.KeyLastSession); err == nil && ok {
		resp.LastSession = v
	}
	if v, ok, err := s.store.StatsGet(ctx, store.KeyLastUpdated); err == nil && ok {
		resp.LastUpdated = v
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTested(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "n")
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() <= 0 {
		s.writeError(w, http.StatusBadRequest, "n must be a positive decimal integer")
		return
	}

	tested, err := s.store.Contains(r.Context(), fingerprint.New(n))
	if err != nil {
		s.logger.Error().Err(err).Msg("tested: lookup failed")
		s.writeError(w, http.StatusInternalServerError, "failed to read store")
		return
	}

	s.writeJSON(w, http.StatusOK, TestedResponse{N: n.Text(10), Tested: tested})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug().Err(err).Msg("response write failed")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
