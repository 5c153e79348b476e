package api

import (
	"encoding/json"
	"net/http"

	"nearbybot/pkg/session"
	"nearbybot/pkg/tracker"
)

type StatsHandler struct {
	tracker  *tracker.Tracker
	sessions *session.Store
}

func NewStatsHandler(t *tracker.Tracker, s *session.Store) *StatsHandler {
	return &StatsHandler{tracker: t, sessions: s}
}

type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	HitRate       int64 `json:"hit_rate"`
}

type SessionStats struct {
	Active int `json:"active"`
}

type StatsResponse struct {
	Sessions  SessionStats                `json:"sessions"`
	Providers map[string]ProviderStatsDTO `json:"providers"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Sessions:  SessionStats{Active: h.sessions.Len()},
		Providers: make(map[string]ProviderStatsDTO),
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:     stats.CacheHits,
			CacheMisses:   stats.CacheMisses,
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			HitRate:       hitRate,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
