package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ibasketcal/ibasketcal/internal/api/respond"
	"github.com/ibasketcal/ibasketcal/internal/refresh"
	"github.com/ibasketcal/ibasketcal/internal/store"
)

// GetCacheInfo reports snapshot freshness and storage footprint.
// @Summary Snapshot info
// @Description Returns snapshot existence, staleness, age, storage size, and per-entity row counts.
// @Tags refresh
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/cache-info [get]
func (h *Handler) GetCacheInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	exists := false
	for _, n := range stats {
		if n > 0 {
			exists = true
			break
		}
	}

	st := h.refresh.Status(ctx)
	var lastUpdated any
	var ageMinutes any
	if st.LastCompletedAt != nil {
		lastUpdated = st.LastCompletedAt.Format(time.RFC3339)
		ageMinutes = int(time.Since(*st.LastCompletedAt).Minutes())
	}

	var sizeBytes any
	if size, err := h.store.SizeBytes(ctx); err == nil {
		sizeBytes = size
	} else if !errors.Is(err, store.ErrSizeUnknown) {
		h.writeQueryError(w, err)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"exists":            exists,
		"stale":             st.Stale,
		"lastUpdated":       lastUpdated,
		"ageMinutes":        ageMinutes,
		"isScraping":        st.IsScraping,
		"databaseSizeBytes": sizeBytes,
		"stats":             stats,
	})
}

// GetRefreshStatus reports the refresh controller state.
// @Summary Refresh status
// @Description Returns whether a scrape is running, the last completion time, the last error if any, staleness, and scrape progress.
// @Tags refresh
// @Produce json
// @Success 200 {object} refresh.Status
// @Router /api/refresh-status [get]
func (h *Handler) GetRefreshStatus(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.refresh.Status(r.Context()))
}

// PostRefresh requests a manual refresh.
// @Summary Trigger a refresh
// @Description Starts a scrape unless one is already running or the manual cooldown has not elapsed.
// @Tags refresh
// @Produce json
// @Success 202 {object} refresh.Decision "started"
// @Success 200 {object} map[string]interface{} "in_progress, with progress"
// @Failure 429 {object} refresh.Decision "rate_limited, with retryAfter"
// @Router /api/refresh [post]
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	d := h.refresh.Request(true)
	switch d.Outcome {
	case refresh.OutcomeStarted:
		respond.WriteJSONObject(w, http.StatusAccepted, d)
	case refresh.OutcomeInProgress:
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":   d.Outcome,
			"progress": h.refresh.Status(r.Context()).Progress,
		})
	case refresh.OutcomeRateLimited:
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
		respond.WriteJSONObject(w, http.StatusTooManyRequests, d)
	}
}
