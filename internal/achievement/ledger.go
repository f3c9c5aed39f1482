package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/decomontenegro/fusetech-sub003/internal/events"
)

// RewardIntent instructs the external value-transfer system to grant one
// reward. The ledger guarantees at most one intent per (user, achievement,
// reward index); actual disbursement happens downstream.
type RewardIntent struct {
	IntentID      string     `json:"intent_id"`
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	RewardIndex   int        `json:"reward_index"`
	Kind          RewardKind `json:"kind"`
	Value         float64    `json:"value"`
	Description   string     `json:"description,omitempty"`
	ClaimedAt     time.Time  `json:"claimed_at"`
}

// Ledger tracks per-achievement reward claims and enforces at-most-once issuance.
type Ledger struct {
	catalog   CatalogRepository
	progress  ProgressRepository
	publisher events.Publisher
	clock     Clock
	ids       IDGenerator
	logger    *slog.Logger
}

// NewLedger constructs a Ledger with the provided collaborators.
func NewLedger(catalog CatalogRepository, progress ProgressRepository, publisher events.Publisher, clock Clock, ids IDGenerator, logger *slog.Logger) (*Ledger, error) {
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
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Ledger{catalog: catalog, progress: progress, publisher: publisher, clock: clock, ids: ids, logger: logger}, nil
}

// Claim approves the issuance of one reward. Approval and value transfer are
// deliberately separated: the compare-and-write below is the only point that
// decides "granted", so the idempotency guarantee does not depend on the
// reliability of the downstream ledger.
func (l *Ledger) Claim(ctx context.Context, userID, achievementID string, rewardIndex int) (RewardIntent, error) {
	if userID == "" || achievementID == "" || rewardIndex < 0 {
		return RewardIntent{}, fmt.Errorf("%w: achievement %s index %d", ErrUnknownReward, achievementID, rewardIndex)
	}

	a, err := l.catalog.GetAchievement(ctx, achievementID)
	if errors.Is(err, ErrNotFound) {
		return RewardIntent{}, fmt.Errorf("%w: achievement %s", ErrUnknownReward, achievementID)
	}
	if err != nil {
		return RewardIntent{}, fmt.Errorf("load achievement %s: %w", achievementID, err)
	}
	reward, ok := a.RewardAt(rewardIndex)
	if !ok {
		return RewardIntent{}, fmt.Errorf("%w: achievement %s has no reward %d", ErrUnknownReward, achievementID, rewardIndex)
	}

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		record, err := l.progress.GetProgress(ctx, userID, achievementID)
		if errors.Is(err, ErrNotFound) {
			return RewardIntent{}, fmt.Errorf("%w: achievement %s", ErrNotUnlocked, achievementID)
		}
		if err != nil {
			return RewardIntent{}, fmt.Errorf("load progress for %s: %w", achievementID, err)
		}

		if record.Status != StatusCompleted {
			return RewardIntent{}, fmt.Errorf("%w: achievement %s", ErrNotUnlocked, achievementID)
		}
		if record.HasClaim(rewardIndex) {
			return RewardIntent{}, fmt.Errorf("%w: achievement %s reward %d", ErrAlreadyClaimed, achievementID, rewardIndex)
		}

		now := l.clock.Now().UTC()
		record.ClaimedRewards = append(record.ClaimedRewards, ClaimedReward{
			RewardIndex: rewardIndex,
			ClaimedAt:   now,
		})
		expected := record.Version
		record.Version++
		record.UpdatedAt = now

		err = l.progress.CompareAndWriteProgress(ctx, record, expected)
		if errors.Is(err, ErrConflict) {
			// A concurrent claim or event apply won; re-read and re-check.
			continue
		}
		if err != nil {
			return RewardIntent{}, fmt.Errorf("write claim for %s: %w", achievementID, err)
		}

		intent := RewardIntent{
			IntentID:      l.ids.NewID(),
			UserID:        userID,
			AchievementID: achievementID,
			RewardIndex:   rewardIndex,
			Kind:          reward.Kind,
			Value:         reward.Value,
			Description:   reward.Description,
			ClaimedAt:     now,
		}
		l.publishClaimed(ctx, intent)
		return intent, nil
	}

	return RewardIntent{}, fmt.Errorf("%w: claim contention on achievement %s for user %s", ErrRetryable, achievementID, userID)
}

func (l *Ledger) publishClaimed(ctx context.Context, intent RewardIntent) {
	payload := events.RewardClaimed{
		IntentID:      intent.IntentID,
		UserID:        intent.UserID,
		AchievementID: intent.AchievementID,
		RewardIndex:   intent.RewardIndex,
		Kind:          string(intent.Kind),
		Value:         intent.Value,
		Description:   intent.Description,
		ClaimedAt:     intent.ClaimedAt,
	}
	if err := l.publisher.Publish(ctx, events.TopicRewardEvents, payload); err != nil {
		l.logger.Warn("failed to publish claim event",
			slog.String("userId", intent.UserID),
			slog.String("achievementId", intent.AchievementID),
			slog.Any("error", err))
	}
}
