package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/decomontenegro/fusetech-sub003/internal/achievement"
	"github.com/decomontenegro/fusetech-sub003/internal/auth"
)

const (
	serviceTimeout    = 8 * time.Second
	maxEventBodyBytes = 64 * 1024 // 64KB of JSON is more than enough for a progress event
	retryAfterSeconds = "1"
)

// RegisterRoutes registers all achievement routes.
func RegisterRoutes(r chi.Router, tracker *achievement.Tracker, ledger *achievement.Ledger, catalog *achievement.Catalog, logger *slog.Logger) {
	r.Route("/v1/achievements", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Get("/", listAchievements(catalog, logger))
		r.Get("/available", listAvailable(catalog, logger))
		r.Get("/me", getUserAchievements(catalog, logger))
		r.Get("/{id}", getAchievement(catalog, logger))
		r.Post("/{id}/rewards/{index}/claim", claimReward(ledger, logger))
	})

	r.Route("/v1/events", func(r chi.Router) {
		r.Use(middleware.Recoverer)

		r.Post("/", ingestEvent(tracker, logger))
	})
}

func listAchievements(catalog *achievement.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := filterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		items, page, err := catalog.List(ctx, filter)
		if err != nil {
			logRequestError(r.Context(), logger, "failed to list achievements", err, "")
			writeError(w, http.StatusInternalServerError, "failed to list achievements")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"achievements": items,
			"pageInfo":     page,
		})
	}
}

func listAvailable(catalog *achievement.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		items, err := catalog.AvailableForUser(ctx, userID)
		if err != nil {
			logRequestError(r.Context(), logger, "failed to list available achievements", err, userID)
			writeError(w, http.StatusInternalServerError, "failed to list available achievements")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"achievements": items})
	}
}

func getAchievement(catalog *achievement.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if strings.TrimSpace(id) == "" {
			writeError(w, http.StatusBadRequest, "missing achievement id")
			return
		}
		userID := requestUserID(r)

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		detail, err := catalog.Get(ctx, id, userID)
		if err != nil {
			if errors.Is(err, achievement.ErrNotFound) {
				writeError(w, http.StatusNotFound, "achievement not found")
				return
			}
			logRequestError(r.Context(), logger, "failed to load achievement", err, userID)
			writeError(w, http.StatusInternalServerError, "failed to load achievement")
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func getUserAchievements(catalog *achievement.Catalog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user ID")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		items, err := catalog.UserAchievements(ctx, userID)
		if err != nil {
			logRequestError(r.Context(), logger, "failed to load user achievements", err, userID)
			writeError(w, http.StatusInternalServerError, "failed to load user achievements")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"achievements": items})
	}
}

func ingestEvent(tracker *achievement.Tracker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user ID")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)
		defer r.Body.Close()

		var ev achievement.Event
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ev.UserID = userID
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = time.Now().UTC()
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		updates, err := tracker.ApplyEvent(ctx, userID, ev)
		if err != nil {
			switch {
			case errors.Is(err, achievement.ErrInvalidEvent):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, achievement.ErrRetryable):
				w.Header().Set("Retry-After", retryAfterSeconds)
				writeError(w, http.StatusServiceUnavailable, "temporarily unable to record progress, retry the event")
			default:
				logRequestError(r.Context(), logger, "failed to apply event", err, userID)
				writeError(w, http.StatusInternalServerError, "failed to apply event")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
	}
}

func claimReward(ledger *achievement.Ledger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requestUserID(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user ID")
			return
		}
		achievementID := chi.URLParam(r, "id")
		if strings.TrimSpace(achievementID) == "" {
			writeError(w, http.StatusBadRequest, "missing achievement id")
			return
		}
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid reward index")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
		defer cancel()

		intent, err := ledger.Claim(ctx, userID, achievementID, index)
		if err != nil {
			switch {
			case errors.Is(err, achievement.ErrUnknownReward):
				writeError(w, http.StatusNotFound, "unknown reward")
			case errors.Is(err, achievement.ErrNotUnlocked):
				writeError(w, http.StatusForbidden, "achievement not unlocked")
			case errors.Is(err, achievement.ErrAlreadyClaimed):
				writeError(w, http.StatusConflict, "reward already claimed")
			case errors.Is(err, achievement.ErrRetryable):
				w.Header().Set("Retry-After", retryAfterSeconds)
				writeError(w, http.StatusServiceUnavailable, "temporarily unable to claim, retry the request")
			default:
				logRequestError(r.Context(), logger, "failed to claim reward", err, userID)
				writeError(w, http.StatusInternalServerError, "failed to claim reward")
			}
			return
		}
		writeJSON(w, http.StatusOK, intent)
	}
}

func filterFromQuery(r *http.Request) (achievement.CatalogFilter, error) {
	q := r.URL.Query()

	filter := achievement.CatalogFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
	}

	if raw := q.Get("difficulty"); raw != "" {
		difficulty, err := strconv.Atoi(raw)
		if err != nil || difficulty < 1 || difficulty > 5 {
			return achievement.CatalogFilter{}, errors.New("difficulty must be an integer between 1 and 5")
		}
		filter.Difficulty = difficulty
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return achievement.CatalogFilter{}, errors.New("page must be a positive integer")
		}
		filter.Pagination.Page = page
	}
	if raw := q.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 100 {
			return achievement.CatalogFilter{}, errors.New("pageSize must be between 1 and 100")
		}
		filter.Pagination.PageSize = size
	}

	return filter, nil
}

// requestUserID resolves the caller identity set by the auth middleware,
// falling back to the gateway-forwarded header for service-to-service calls.
func requestUserID(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok && user.UserID != "" {
		return user.UserID
	}
	if v := r.Header.Get("X-User-ID"); v != "" {
		return v
	}
	return r.Header.Get("x-user-id")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	attrs := []any{
		slog.String("userId", userID),
		slog.Any("error", err),
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("requestId", reqID))
	}
	logger.Error(message, attrs...)
}
