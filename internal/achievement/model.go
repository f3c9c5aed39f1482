package achievement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CriterionType identifies how a criterion is measured. The set is closed;
// unknown types are rejected during validation.
type CriterionType string

const (
	CriterionDistanceTotal   CriterionType = "distance_total"
	CriterionDistanceSingle  CriterionType = "distance_single"
	CriterionElevationTotal  CriterionType = "elevation_total"
	CriterionElevationSingle CriterionType = "elevation_single"
	CriterionDurationTotal   CriterionType = "duration_total"
	CriterionDurationSingle  CriterionType = "duration_single"
	CriterionActivityCount   CriterionType = "activity_count"
	CriterionActivityStreak  CriterionType = "activity_streak"
	CriterionSocialShare     CriterionType = "social_share"
	CriterionSocialInvite    CriterionType = "social_invite"
)

var criterionTypes = map[CriterionType]struct{}{
	CriterionDistanceTotal:   {},
	CriterionDistanceSingle:  {},
	CriterionElevationTotal:  {},
	CriterionElevationSingle: {},
	CriterionDurationTotal:   {},
	CriterionDurationSingle:  {},
	CriterionActivityCount:   {},
	CriterionActivityStreak:  {},
	CriterionSocialShare:     {},
	CriterionSocialInvite:    {},
}

// Valid reports whether the criterion type belongs to the closed enumeration.
func (t CriterionType) Valid() bool {
	_, ok := criterionTypes[t]
	return ok
}

// TimeFrame scopes a criterion to a rolling window. Producers pre-scope the
// measured values they report; the engine only matches frames.
type TimeFrame string

const (
	TimeFrameDay     TimeFrame = "day"
	TimeFrameWeek    TimeFrame = "week"
	TimeFrameMonth   TimeFrame = "month"
	TimeFrameYear    TimeFrame = "year"
	TimeFrameAllTime TimeFrame = "all_time"
)

// Visibility controls whether an achievement appears in discovery listings.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
	VisibilitySecret  Visibility = "secret"
)

// RewardKind enumerates the supported reward categories.
type RewardKind string

const (
	RewardPoints   RewardKind = "points"
	RewardBadge    RewardKind = "badge"
	RewardToken    RewardKind = "token"
	RewardDiscount RewardKind = "discount"
	RewardPhysical RewardKind = "physical"
)

// Status is the lifecycle state of a progress record. Transitions only move
// forward: locked -> in_progress -> completed.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Criterion is one measurable condition required to unlock an achievement.
type Criterion struct {
	Index        int           `json:"index" firestore:"index"`
	Type         CriterionType `json:"type" firestore:"type"`
	Target       float64       `json:"target" firestore:"target"`
	Unit         string        `json:"unit,omitempty" firestore:"unit"`
	ActivityType string        `json:"activity_type,omitempty" firestore:"activity_type"`
	TimeFrame    TimeFrame     `json:"time_frame,omitempty" firestore:"time_frame"`
}

// Reward describes a grant attached to an achievement. Indexes are unique and
// stable for the achievement's lifetime; rewards are only ever appended.
type Reward struct {
	Index       int        `json:"index" firestore:"index"`
	Kind        RewardKind `json:"kind" firestore:"kind"`
	Value       float64    `json:"value" firestore:"value"`
	Description string     `json:"description,omitempty" firestore:"description"`
}

// Window bounds the period during which an achievement can accrue progress.
type Window struct {
	StartDate time.Time `json:"start_date" firestore:"start_date"`
	EndDate   time.Time `json:"end_date" firestore:"end_date"`
}

// Contains reports whether t falls inside the window. A nil window means the
// achievement is always eligible.
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	if !w.StartDate.IsZero() && t.Before(w.StartDate) {
		return false
	}
	if !w.EndDate.IsZero() && t.After(w.EndDate) {
		return false
	}
	return true
}

// Achievement is a versioned catalog definition, effectively immutable once published.
type Achievement struct {
	ID           string      `json:"id" firestore:"id"`
	Name         string      `json:"name" firestore:"name"`
	Description  string      `json:"description,omitempty" firestore:"description"`
	Icon         string      `json:"icon,omitempty" firestore:"icon"`
	Category     string      `json:"category" firestore:"category"`
	Difficulty   int         `json:"difficulty" firestore:"difficulty"`
	Visibility   Visibility  `json:"visibility" firestore:"visibility"`
	Criteria     []Criterion `json:"criteria" firestore:"criteria"`
	Rewards      []Reward    `json:"rewards" firestore:"rewards"`
	Prerequisite string      `json:"prerequisite,omitempty" firestore:"prerequisite"`
	Availability *Window     `json:"availability,omitempty" firestore:"availability"`
	CreatedAt    time.Time   `json:"created_at" firestore:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" firestore:"updated_at"`
}

// Validate checks the catalog invariants before a definition is accepted.
func (a Achievement) Validate() error {
	var problems []string

	if strings.TrimSpace(a.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		problems = append(problems, "name is required")
	}
	if a.Difficulty < 1 || a.Difficulty > 5 {
		problems = append(problems, "difficulty must be between 1 and 5")
	}
	switch a.Visibility {
	case VisibilityVisible, VisibilityHidden, VisibilitySecret:
	default:
		problems = append(problems, fmt.Sprintf("unknown visibility %q", a.Visibility))
	}
	if len(a.Criteria) == 0 {
		problems = append(problems, "criteria must not be empty")
	}
	seenCriteria := make(map[int]struct{}, len(a.Criteria))
	for _, c := range a.Criteria {
		if !c.Type.Valid() {
			problems = append(problems, fmt.Sprintf("unknown criterion type %q", c.Type))
		}
		if c.Target <= 0 {
			problems = append(problems, fmt.Sprintf("criterion %d target must be positive", c.Index))
		}
		if _, dup := seenCriteria[c.Index]; dup {
			problems = append(problems, fmt.Sprintf("duplicate criterion index %d", c.Index))
		}
		seenCriteria[c.Index] = struct{}{}
	}
	seen := make(map[int]struct{}, len(a.Rewards))
	for _, r := range a.Rewards {
		switch r.Kind {
		case RewardPoints, RewardBadge, RewardToken, RewardDiscount, RewardPhysical:
		default:
			problems = append(problems, fmt.Sprintf("unknown reward kind %q", r.Kind))
		}
		if _, dup := seen[r.Index]; dup {
			problems = append(problems, fmt.Sprintf("duplicate reward index %d", r.Index))
		}
		seen[r.Index] = struct{}{}
	}
	if a.Availability != nil && !a.Availability.StartDate.IsZero() && !a.Availability.EndDate.IsZero() &&
		a.Availability.EndDate.Before(a.Availability.StartDate) {
		problems = append(problems, "availability window ends before it starts")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// AvailableAt reports whether the achievement can accrue progress at t.
func (a Achievement) AvailableAt(t time.Time) bool {
	return a.Availability.Contains(t)
}

// CriterionAt returns the criterion with the given index.
func (a Achievement) CriterionAt(index int) (Criterion, bool) {
	for _, c := range a.Criteria {
		if c.Index == index {
			return c, true
		}
	}
	return Criterion{}, false
}

// RewardAt returns the reward with the given index.
func (a Achievement) RewardAt(index int) (Reward, bool) {
	for _, r := range a.Rewards {
		if r.Index == index {
			return r, true
		}
	}
	return Reward{}, false
}

// Discoverable reports whether the achievement appears in listings. Hidden and
// secret achievements still accrue progress; they are just not advertised.
func (a Achievement) Discoverable() bool {
	return a.Visibility == VisibilityVisible
}

// CriterionProgress tracks one criterion inside a progress record, aligned 1:1
// with the achievement's criteria list.
type CriterionProgress struct {
	CriteriaIndex int        `json:"criteria_index" firestore:"criteria_index"`
	CurrentValue  float64    `json:"current_value" firestore:"current_value"`
	TargetValue   float64    `json:"target_value" firestore:"target_value"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" firestore:"completed_at"`
}

// ClaimedReward records an issued reward index. An index appears at most once.
type ClaimedReward struct {
	RewardIndex int       `json:"reward_index" firestore:"reward_index"`
	ClaimedAt   time.Time `json:"claimed_at" firestore:"claimed_at"`
}

// ProgressRecord is the mutable per-user, per-achievement tracking entity. It
// is never deleted; it is the audit trail of how an achievement was earned.
type ProgressRecord struct {
	UserID         string              `json:"user_id" firestore:"user_id"`
	AchievementID  string              `json:"achievement_id" firestore:"achievement_id"`
	Status         Status              `json:"status" firestore:"status"`
	Progress       []CriterionProgress `json:"progress" firestore:"progress"`
	UnlockedAt     *time.Time          `json:"unlocked_at,omitempty" firestore:"unlocked_at"`
	ClaimedRewards []ClaimedReward     `json:"claimed_rewards,omitempty" firestore:"claimed_rewards"`
	Version        int64               `json:"version" firestore:"version"`
	CreatedAt      time.Time           `json:"created_at" firestore:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" firestore:"updated_at"`
}

// NewProgressRecord builds the lazy default record: locked, all criteria at zero.
func NewProgressRecord(userID string, a Achievement, now time.Time) ProgressRecord {
	progress := make([]CriterionProgress, 0, len(a.Criteria))
	for _, c := range a.Criteria {
		progress = append(progress, CriterionProgress{
			CriteriaIndex: c.Index,
			CurrentValue:  0,
			TargetValue:   c.Target,
		})
	}
	return ProgressRecord{
		UserID:        userID,
		AchievementID: a.ID,
		Status:        StatusLocked,
		Progress:      progress,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Completed reports whether every criterion has reached its target.
func (p ProgressRecord) Completed() bool {
	for _, cp := range p.Progress {
		if cp.CurrentValue < cp.TargetValue {
			return false
		}
	}
	return len(p.Progress) > 0
}

// Percent returns the overall completion percentage: the straight average of
// per-criterion percentages, each capped at 100.
func (p ProgressRecord) Percent() float64 {
	if len(p.Progress) == 0 {
		return 0
	}
	total := 0.0
	for _, cp := range p.Progress {
		if cp.TargetValue <= 0 {
			total += 100
			continue
		}
		pct := cp.CurrentValue / cp.TargetValue * 100
		if pct > 100 {
			pct = 100
		}
		total += pct
	}
	return total / float64(len(p.Progress))
}

// HasClaim reports whether the reward index was already issued.
func (p ProgressRecord) HasClaim(rewardIndex int) bool {
	for _, cr := range p.ClaimedRewards {
		if cr.RewardIndex == rewardIndex {
			return true
		}
	}
	return false
}

// Event is the canonical fact describing a user's measured progress toward
// one criterion type. Producers report absolute measured values, never deltas.
type Event struct {
	EventID       string        `json:"event_id" validate:"required"`
	UserID        string        `json:"user_id" validate:"required"`
	CriterionType CriterionType `json:"criterion_type" validate:"required"`
	MeasuredValue float64       `json:"measured_value" validate:"gte=0"`
	ActivityType  string        `json:"activity_type,omitempty"`
	TimeFrame     TimeFrame     `json:"time_frame,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

var validate = validator.New()

// Validate rejects malformed events before they reach the tracker.
func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if !e.CriterionType.Valid() {
		return fmt.Errorf("unknown criterion type %q", e.CriterionType)
	}
	return nil
}

// Error taxonomy. Handlers and callers branch with errors.Is; nothing is
// silently swallowed.
var (
	// ErrInvalidEvent marks malformed input; never retried.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotFound marks an unknown achievement or progress record.
	ErrNotFound = errors.New("not found")
	// ErrUnknownReward marks a claim against a missing achievement or reward index.
	ErrUnknownReward = errors.New("unknown reward")
	// ErrNotUnlocked marks a claim before the achievement completed.
	ErrNotUnlocked = errors.New("achievement not unlocked")
	// ErrAlreadyClaimed marks a duplicate claim for a reward index.
	ErrAlreadyClaimed = errors.New("reward already claimed")
	// ErrConflict is the internal compare-and-write miss; retried automatically.
	ErrConflict = errors.New("version conflict")
	// ErrRetryable surfaces exhausted retries; safe for at-least-once redelivery.
	ErrRetryable = errors.New("transient contention, retry")
)

// CatalogFilter narrows and pages catalog listings.
type CatalogFilter struct {
	Category    string
	Difficulty  int
	Search      string
	Sort        string // "difficulty" (default), "name" or "category"
	AvailableAt time.Time
	Pagination  Pagination
	// IncludeUndiscoverable lets the tracker see hidden/secret achievements.
	IncludeUndiscoverable bool
}

// Pagination describes paging preferences for list queries.
type Pagination struct {
	Page     int
	PageSize int
}

// PageInfo summarizes pagination metadata for responses.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	TotalItems int  `json:"totalItems"`
	HasNext    bool `json:"hasNext"`
}

// CatalogRepository provides read access to the immutable-per-version catalog.
type CatalogRepository interface {
	GetAchievement(ctx context.Context, id string) (Achievement, error)
	ListAchievements(ctx context.Context, filter CatalogFilter) ([]Achievement, PageInfo, error)
	ListByCriterionType(ctx context.Context, t CriterionType) ([]Achievement, error)
}

// ProgressRepository persists progress records with compare-and-write semantics.
type ProgressRepository interface {
	// GetProgress returns ErrNotFound when no record exists yet.
	GetProgress(ctx context.Context, userID, achievementID string) (ProgressRecord, error)
	// CompareAndWriteProgress persists the record only when the stored version
	// equals expectedVersion (0 meaning "no record yet"); otherwise ErrConflict.
	CompareAndWriteProgress(ctx context.Context, record ProgressRecord, expectedVersion int64) error
	ListProgress(ctx context.Context, userID string) ([]ProgressRecord, error)
}

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for reward intents.
type IDGenerator interface {
	NewID() string
}
