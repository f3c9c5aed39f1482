package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/decomontenegro/fusetech-sub003/internal/events"
)

// casMaxAttempts bounds optimistic-concurrency retries before the caller is
// asked to redeliver.
const casMaxAttempts = 3

// AchievementUpdate reports the outcome of applying one event to one achievement.
type AchievementUpdate struct {
	AchievementID   string     `json:"achievement_id"`
	Name            string     `json:"name"`
	StatusChanged   bool       `json:"status_changed"`
	NewStatus       Status     `json:"new_status"`
	ProgressPercent float64    `json:"progress_percent"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty"`
	RewardsToGrant  []Reward   `json:"rewards_to_grant,omitempty"`
}

// Tracker owns the progress state machine. It is safe for concurrent use; all
// shared state lives behind the compare-and-write discipline of the
// ProgressRepository.
type Tracker struct {
	catalog   CatalogRepository
	progress  ProgressRepository
	publisher events.Publisher
	clock     Clock
	logger    *slog.Logger
}

// NewTracker constructs a Tracker with the provided collaborators.
func NewTracker(catalog CatalogRepository, progress ProgressRepository, publisher events.Publisher, clock Clock, logger *slog.Logger) (*Tracker, error) {
	if catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if progress == nil {
		return nil, errors.New("progress repository is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Tracker{catalog: catalog, progress: progress, publisher: publisher, clock: clock, logger: logger}, nil
}

// ApplyEvent applies one canonical event for a user against every candidate
// achievement. Re-applying the same event is a no-op: criterion values only
// ever move up to a freshly evaluated absolute value.
func (t *Tracker) ApplyEvent(ctx context.Context, userID string, ev Event) ([]AchievementUpdate, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	}
	if ev.UserID == "" {
		ev.UserID = userID
	}
	if ev.UserID != userID {
		return nil, fmt.Errorf("%w: event user %s does not match caller %s", ErrInvalidEvent, ev.UserID, userID)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, err.Error())
	}

	candidates, err := t.catalog.ListByCriterionType(ctx, ev.CriterionType)
	if err != nil {
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	now := t.clock.Now().UTC()
	updates := make([]AchievementUpdate, 0, len(candidates))
	for _, a := range candidates {
		if !a.AvailableAt(now) {
			continue
		}
		update, err := t.applyToAchievement(ctx, userID, a, ev, now)
		if err != nil {
			return nil, err
		}
		if update != nil {
			updates = append(updates, *update)
		}
	}
	return updates, nil
}

// applyToAchievement runs the read / evaluate / compare-and-write loop for a
// single (user, achievement) record.
func (t *Tracker) applyToAchievement(ctx context.Context, userID string, a Achievement, ev Event, now time.Time) (*AchievementUpdate, error) {
	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		record, err := t.progress.GetProgress(ctx, userID, a.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			// Prerequisites gate only achievements the user has not started.
			if a.Prerequisite != "" {
				done, err := t.prerequisiteCompleted(ctx, userID, a.Prerequisite)
				if err != nil {
					return nil, err
				}
				if !done {
					return nil, nil
				}
			}
			record = NewProgressRecord(userID, a, now)
		case err != nil:
			return nil, fmt.Errorf("load progress for %s: %w", a.ID, err)
		}

		if record.Status == StatusCompleted {
			// Terminal state; nothing regresses and unlockedAt never changes.
			return nil, nil
		}

		staged := false
		for i := range record.Progress {
			cp := &record.Progress[i]
			criterion, ok := a.CriterionAt(cp.CriteriaIndex)
			if !ok {
				continue
			}
			value, ok := Evaluate(criterion, ev)
			if !ok {
				continue
			}
			// Never write a lower value; monotonicity holds even when events
			// arrive out of order or are replayed.
			if value <= cp.CurrentValue {
				continue
			}
			cp.CurrentValue = value
			staged = true
			if cp.CurrentValue >= cp.TargetValue && cp.CompletedAt == nil {
				completedAt := now
				cp.CompletedAt = &completedAt
			}
		}
		if !staged {
			return nil, nil
		}

		previousStatus := record.Status
		t.recomputeStatus(&record, now)

		expected := record.Version
		record.Version++
		record.UpdatedAt = now

		err = t.progress.CompareAndWriteProgress(ctx, record, expected)
		if errors.Is(err, ErrConflict) {
			// A concurrent writer won; re-read and retry.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("write progress for %s: %w", a.ID, err)
		}

		update := &AchievementUpdate{
			AchievementID:   a.ID,
			Name:            a.Name,
			StatusChanged:   record.Status != previousStatus,
			NewStatus:       record.Status,
			ProgressPercent: record.Percent(),
			UnlockedAt:      record.UnlockedAt,
		}
		if update.StatusChanged && record.Status == StatusCompleted {
			update.RewardsToGrant = a.Rewards
			t.publishUnlocked(ctx, userID, a, record)
		}
		return update, nil
	}

	return nil, fmt.Errorf("%w: progress contention on achievement %s for user %s", ErrRetryable, a.ID, userID)
}

func (t *Tracker) recomputeStatus(record *ProgressRecord, now time.Time) {
	if record.Completed() {
		record.Status = StatusCompleted
		if record.UnlockedAt == nil {
			unlockedAt := now
			record.UnlockedAt = &unlockedAt
		}
		return
	}
	for _, cp := range record.Progress {
		if cp.CurrentValue > 0 {
			record.Status = StatusInProgress
			return
		}
	}
}

func (t *Tracker) prerequisiteCompleted(ctx context.Context, userID, achievementID string) (bool, error) {
	record, err := t.progress.GetProgress(ctx, userID, achievementID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load prerequisite %s: %w", achievementID, err)
	}
	return record.Status == StatusCompleted, nil
}

// publishUnlocked emits the lifecycle signal; delivery is best effort because
// the rewards already travel back to the caller in the apply result.
func (t *Tracker) publishUnlocked(ctx context.Context, userID string, a Achievement, record ProgressRecord) {
	grants := make([]events.RewardGrant, 0, len(a.Rewards))
	for _, r := range a.Rewards {
		grants = append(grants, events.RewardGrant{
			Index:       r.Index,
			Kind:        string(r.Kind),
			Value:       r.Value,
			Description: r.Description,
		})
	}
	payload := events.AchievementUnlocked{
		UserID:        userID,
		AchievementID: a.ID,
		Name:          a.Name,
		Rewards:       grants,
	}
	if record.UnlockedAt != nil {
		payload.UnlockedAt = *record.UnlockedAt
	}
	if err := t.publisher.Publish(ctx, events.TopicAchievementEvents, payload); err != nil {
		t.logger.Warn("failed to publish unlock event",
			slog.String("userId", userID),
			slog.String("achievementId", a.ID),
			slog.Any("error", err))
	}
}
