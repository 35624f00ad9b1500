// internal/server/handlers/title.go

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

const (
	maxDays        = 365
	defaultLimit   = 50
	maxEventsLimit = 500
)

// SummaryReader is the read side the title endpoints depend on
type SummaryReader interface {
	Summarize(ctx context.Context, titleID int64, dayCount int) (metric.Summary, error)
	Rows(ctx context.Context, titleID int64, dayCount int) ([]metric.Row, error)
}

// TitleHandler handles title-related HTTP requests
type TitleHandler struct {
	catalog     reaction.Catalog
	summaries   SummaryReader
	events      reaction.EventStore
	defaultDays int
}

// NewTitleHandler creates a new title handler
func NewTitleHandler(catalog reaction.Catalog, summaries SummaryReader, events reaction.EventStore, defaultDays int) *TitleHandler {
	if defaultDays <= 0 {
		defaultDays = 7
	}
	return &TitleHandler{
		catalog:     catalog,
		summaries:   summaries,
		events:      events,
		defaultDays: defaultDays,
	}
}

// ListTitles returns the catalog
func (h *TitleHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	titles, err := h.catalog.ListTitles(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list titles", err)
		return
	}
	if titles == nil {
		titles = []reaction.Title{}
	}

	respondWithJSON(w, http.StatusOK, titles)
}

// GetSummary returns the per-platform summary of a title
func (h *TitleHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.titleID(w, r)
	if !ok {
		return
	}
	days, ok := h.days(w, r)
	if !ok {
		return
	}

	summary, err := h.summaries.Summarize(r.Context(), id, days)
	if err != nil {
		respondWithDomainError(w, "Failed to summarize title", err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// GetMetrics returns the raw daily rows of a title
func (h *TitleHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.titleID(w, r)
	if !ok {
		return
	}
	days, ok := h.days(w, r)
	if !ok {
		return
	}

	rows, err := h.summaries.Rows(r.Context(), id, days)
	if err != nil {
		respondWithDomainError(w, "Failed to get metrics", err)
		return
	}
	if rows == nil {
		rows = []metric.Row{}
	}

	respondWithJSON(w, http.StatusOK, rows)
}

// GetEvents returns the most recent events of one platform for a title
func (h *TitleHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.titleID(w, r)
	if !ok {
		return
	}

	platform := reaction.PlatformTwitter
	if p := r.URL.Query().Get("platform"); p != "" {
		parsed, err := reaction.ParsePlatform(p)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		platform = parsed
	}

	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		if n > maxEventsLimit {
			n = maxEventsLimit
		}
		limit = n
	}

	if _, err := h.catalog.GetTitle(r.Context(), id); err != nil {
		respondWithDomainError(w, "Failed to get title", err)
		return
	}

	events, err := h.events.ListEvents(r.Context(), id, platform, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get events", err)
		return
	}
	if events == nil {
		events = []reaction.ClassifiedEvent{}
	}

	respondWithJSON(w, http.StatusOK, events)
}

func (h *TitleHandler) titleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		respondWithError(w, http.StatusBadRequest, "Missing title ID", nil)
		return 0, false
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid title ID", err)
		return 0, false
	}

	return id, true
}

func (h *TitleHandler) days(w http.ResponseWriter, r *http.Request) (int, bool) {
	daysStr := r.URL.Query().Get("days")
	if daysStr == "" {
		return h.defaultDays, true
	}

	days, err := strconv.Atoi(daysStr)
	if err != nil || days <= 0 || days > maxDays {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("days must be within 1..%d", maxDays), err)
		return 0, false
	}

	return days, true
}
