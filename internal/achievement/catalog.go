package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// RewardStatus pairs a catalog reward with the caller's claim state.
type RewardStatus struct {
	Reward
	Claimed bool `json:"claimed"`
}

// UserAchievement summarizes one achievement from the user's point of view.
type UserAchievement struct {
	AchievementID   string         `json:"achievement_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Icon            string         `json:"icon,omitempty"`
	Category        string         `json:"category"`
	Difficulty      int            `json:"difficulty"`
	Status          Status         `json:"status"`
	ProgressPercent float64        `json:"progress_percent"`
	UnlockedAt      *time.Time     `json:"unlocked_at,omitempty"`
	Rewards         []RewardStatus `json:"rewards"`
}

// AchievementDetail is a single catalog entry with the requesting user's
// progress attached when known.
type AchievementDetail struct {
	Achievement
	UserProgress *UserProgress `json:"user_progress,omitempty"`
}

// UserProgress is the progress slice of a detail response.
type UserProgress struct {
	Status          Status              `json:"status"`
	Progress        []CriterionProgress `json:"progress"`
	ProgressPercent float64             `json:"progress_percent"`
	UnlockedAt      *time.Time          `json:"unlocked_at,omitempty"`
	ClaimedRewards  []ClaimedReward     `json:"claimed_rewards,omitempty"`
}

// Catalog serves the read-only discovery queries.
type Catalog struct {
	catalog  CatalogRepository
	progress ProgressRepository
	clock    Clock
}

// NewCatalog constructs the catalog query service.
func NewCatalog(catalog CatalogRepository, progress ProgressRepository, clock Clock) (*Catalog, error) {
	if catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if progress == nil {
		return nil, errors.New("progress repository is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &Catalog{catalog: catalog, progress: progress, clock: clock}, nil
}

// List returns discoverable achievements matching the filter, paged.
func (c *Catalog) List(ctx context.Context, filter CatalogFilter) ([]Achievement, PageInfo, error) {
	filter.IncludeUndiscoverable = false
	if filter.AvailableAt.IsZero() {
		filter.AvailableAt = c.clock.Now().UTC()
	}
	return c.catalog.ListAchievements(ctx, filter)
}

// AvailableForUser lists discoverable, in-window achievements the user has
// not started yet (no record, or a record still locked).
func (c *Catalog) AvailableForUser(ctx context.Context, userID string) ([]Achievement, error) {
	if userID == "" {
		return nil, ErrNotFound
	}

	var (
		all     []Achievement
		records []ProgressRecord
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, _, err := c.catalog.ListAchievements(ctx, CatalogFilter{
			AvailableAt: c.clock.Now().UTC(),
			Pagination:  Pagination{Page: 1, PageSize: allPageSize},
		})
		if err != nil {
			return err
		}
		all = list
		return nil
	})

	g.Go(func() error {
		list, err := c.progress.ListProgress(ctx, userID)
		if err != nil {
			return err
		}
		records = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	started := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Status == StatusInProgress || r.Status == StatusCompleted {
			started[r.AchievementID] = struct{}{}
		}
	}

	available := make([]Achievement, 0, len(all))
	for _, a := range all {
		if _, ok := started[a.ID]; ok {
			continue
		}
		available = append(available, a)
	}
	return available, nil
}

// Get fetches one achievement and, when userID is non-empty, the caller's
// progress toward it. Both reads run concurrently.
func (c *Catalog) Get(ctx context.Context, id, userID string) (AchievementDetail, error) {
	if id == "" {
		return AchievementDetail{}, ErrNotFound
	}

	var (
		a      Achievement
		record *ProgressRecord
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		got, err := c.catalog.GetAchievement(ctx, id)
		if err != nil {
			return err
		}
		a = got
		return nil
	})

	if userID != "" {
		g.Go(func() error {
			got, err := c.progress.GetProgress(ctx, userID, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			record = &got
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return AchievementDetail{}, err
	}

	detail := AchievementDetail{Achievement: a}
	if record != nil {
		detail.UserProgress = &UserProgress{
			Status:          record.Status,
			Progress:        record.Progress,
			ProgressPercent: record.Percent(),
			UnlockedAt:      record.UnlockedAt,
			ClaimedRewards:  record.ClaimedRewards,
		}
	}
	return detail, nil
}

// UserAchievements lists every achievement the user has a progress record for,
// with per-reward claim flags.
func (c *Catalog) UserAchievements(ctx context.Context, userID string) ([]UserAchievement, error) {
	if userID == "" {
		return nil, ErrNotFound
	}

	records, err := c.progress.ListProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]UserAchievement, 0, len(records))
	for _, record := range records {
		a, err := c.catalog.GetAchievement(ctx, record.AchievementID)
		if errors.Is(err, ErrNotFound) {
			// A record can outlive a retired catalog entry; skip rather than fail the listing.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load achievement %s: %w", record.AchievementID, err)
		}

		rewards := make([]RewardStatus, 0, len(a.Rewards))
		for _, r := range a.Rewards {
			rewards = append(rewards, RewardStatus{Reward: r, Claimed: record.HasClaim(r.Index)})
		}

		out = append(out, UserAchievement{
			AchievementID:   a.ID,
			Name:            a.Name,
			Description:     a.Description,
			Icon:            a.Icon,
			Category:        a.Category,
			Difficulty:      a.Difficulty,
			Status:          record.Status,
			ProgressPercent: record.Percent(),
			UnlockedAt:      record.UnlockedAt,
			Rewards:         rewards,
		})
	}
	return out, nil
}

// allPageSize is large enough to cover the whole catalog in one page for the
// unpaged internal queries.
const allPageSize = 500
