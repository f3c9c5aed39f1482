package achievement

import "time"

// DefaultCatalog returns the built-in achievement set used when the service
// runs against the in-memory datastore. Production catalogs live in Firestore
// and are managed by the catalog tooling.
func DefaultCatalog() []Achievement {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	return []Achievement{
		{
			ID:          "first-steps",
			Name:        "First Steps",
			Description: "Complete your first activity.",
			Icon:        "trophy",
			Category:    "beginner",
			Difficulty:  1,
			Visibility:  VisibilityVisible,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionActivityCount, Target: 1, Unit: "activities"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardPoints, Value: 100, Description: "Welcome bonus"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:          "5k-finisher",
			Name:        "5K Finisher",
			Description: "Run a total of 5 kilometers.",
			Icon:        "medal",
			Category:    "beginner",
			Difficulty:  1,
			Visibility:  VisibilityVisible,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionDistanceTotal, Target: 5, Unit: "km", ActivityType: "running"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardPoints, Value: 150},
				{Index: 1, Kind: RewardBadge, Value: 0, Description: "5K badge"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:          "distance-demon",
			Name:        "Distance Demon",
			Description: "Accumulate 100 kilometers across all activities.",
			Icon:        "flame",
			Category:    "intermediate",
			Difficulty:  3,
			Visibility:  VisibilityVisible,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionDistanceTotal, Target: 100, Unit: "km"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardToken, Value: 50, Description: "FUSE tokens"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:           "marathoner",
			Name:         "Marathoner",
			Description:  "Cover 42.2 kilometers in a single activity.",
			Icon:         "medal",
			Category:     "elite",
			Difficulty:   5,
			Visibility:   VisibilityVisible,
			Prerequisite: "distance-demon",
			Criteria:     []Criterion{
				{Index: 0, Type: CriterionDistanceSingle, Target: 42.2, Unit: "km", ActivityType: "running"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardToken, Value: 500, Description: "FUSE tokens"},
				{Index: 1, Kind: RewardPhysical, Value: 0, Description: "Finisher shirt"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:          "consistency-is-key",
			Name:        "Consistency Is Key",
			Description: "Keep a 7 day activity streak with at least 300 minutes of total movement.",
			Icon:        "calendar",
			Category:    "intermediate",
			Difficulty:  2,
			Visibility:  VisibilityVisible,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionActivityStreak, Target: 7, Unit: "days"},
				{Index: 1, Type: CriterionDurationTotal, Target: 300, Unit: "min"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardPoints, Value: 300},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:          "influencer",
			Name:        "Influencer",
			Description: "Share 10 activities with your followers.",
			Icon:        "star",
			Category:    "special",
			Difficulty:  2,
			Visibility:  VisibilityVisible,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionSocialShare, Target: 10, Unit: "posts"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardPoints, Value: 300},
				{Index: 1, Kind: RewardDiscount, Value: 10, Description: "10% marketplace discount"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
		{
			ID:          "night-owl",
			Name:        "Night Owl",
			Description: "A secret reward for the truly dedicated.",
			Category:    "special",
			Difficulty:  4,
			Visibility:  VisibilitySecret,
			Criteria:    []Criterion{
				{Index: 0, Type: CriterionActivityCount, Target: 50, Unit: "activities"},
			},
			Rewards: []Reward{
				{Index: 0, Kind: RewardBadge, Value: 0, Description: "Night Owl badge"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
}
