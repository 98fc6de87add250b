package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/fraud"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	scorer  *fraud.Scorer
	store   domain.Store
	cache   domain.Cache
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, scorer *fraud.Scorer, store domain.Store, cache domain.Cache, version string) *Handler {
	return &Handler{
		engine:  eng,
		scorer:  scorer,
		store:   store,
		cache:   cache,
		version: version,
	}
}

// AssessResponse is the response for POST /assess. It wraps the assessment
// outcome with request metadata.
type AssessResponse struct {
	*domain.AssessmentResponse
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Assess handles POST /assess requests.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req domain.AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.RequestTimestamp.IsZero() {
		req.RequestTimestamp = time.Now().UTC()
	}
	if req.CorrelationID == "" {
		req.CorrelationID = GetTraceID(ctx)
	}

	result, err := h.engine.Assess(ctx, &req)
	if err != nil {
		if domain.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		if errors.Is(err, domain.ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "assessment conflicted with a concurrent update, retry",
			})
			return
		}
		slog.Error("assessment failed", "customer_id", req.CustomerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "assessment failed",
		})
		return
	}

	assessmentsTotal.WithLabelValues(string(result.RiskCategory)).Inc()

	resp := AssessResponse{AssessmentResponse: result}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// ScoreTransaction handles POST /score requests: fraud scoring of a single
// transaction without a full profile assessment.
func (h *Handler) ScoreTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var txn domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.scorer.Score(ctx, &txn)
	if err != nil {
		if domain.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("fraud scoring failed", "transaction_id", txn.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "fraud scoring failed",
		})
		return
	}

	fraudScoresTotal.WithLabelValues(string(result.Recommendation)).Inc()

	writeJSON(w, http.StatusOK, result)
}

// GetProfile retrieves a customer's risk profile. Reads go through the cache;
// a miss falls back to the store and repopulates the cache.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	if h.cache != nil {
		if cached, err := cache.GetProfile(ctx, h.cache, customerID); err == nil && cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	profile, err := h.engine.Profile(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "profile not found",
			})
			return
		}
		slog.Error("failed to get profile", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get profile",
		})
		return
	}

	if h.cache != nil {
		if err := cache.SetProfile(ctx, h.cache, profile, 5*time.Minute); err != nil {
			slog.Warn("failed to cache profile", "customer_id", customerID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, profile)
}

// GetProfileFactors retrieves the current factor breakdown for a customer.
func (h *Handler) GetProfileFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	factors, err := h.engine.ProfileFactors(ctx, customerID)
	if err != nil {
		slog.Error("failed to get factors", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get factors",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customerId": customerID,
		"factors":    factors,
	})
}

// GetProfileScores retrieves score history for a customer, newest first.
func (h *Handler) GetProfileScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "id")

	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	limit := parseLimit(r, 50)
	scores, err := h.engine.ProfileScores(ctx, customerID, limit)
	if err != nil {
		slog.Error("failed to get score history", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get score history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customerId": customerID,
		"scores":     scores,
	})
}

// ListAlerts retrieves fraud alerts by status. Defaults to NEW.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := domain.AlertStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.AlertNew
	}
	switch status {
	case domain.AlertNew, domain.AlertReviewed, domain.AlertDismissed, domain.AlertConfirmed:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown alert status",
		})
		return
	}

	limit := parseLimit(r, 100)
	alerts, err := h.engine.Alerts(ctx, status, limit)
	if err != nil {
		slog.Error("failed to list alerts", "status", status, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"alerts": alerts,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
