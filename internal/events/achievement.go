package events

import "time"

// RewardGrant describes one reward that became grantable when an achievement unlocked.
type RewardGrant struct {
	Index       int     `json:"index"`
	Kind        string  `json:"kind"`
	Value       float64 `json:"value"`
	Description string  `json:"description,omitempty"`
}

// AchievementUnlocked is emitted when a progress record transitions to completed.
type AchievementUnlocked struct {
	UserID        string        `json:"userId"`
	AchievementID string        `json:"achievementId"`
	Name          string        `json:"name"`
	UnlockedAt    time.Time     `json:"unlockedAt"`
	Rewards       []RewardGrant `json:"rewards"`
}

// RewardClaimed is emitted after the ledger approves a claim. The external
// value-transfer system consumes it to perform the actual disbursement.
type RewardClaimed struct {
	IntentID      string    `json:"intentId"`
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	RewardIndex   int       `json:"rewardIndex"`
	Kind          string    `json:"kind"`
	Value         float64   `json:"value"`
	Description   string    `json:"description,omitempty"`
	ClaimedAt     time.Time `json:"claimedAt"`
}
