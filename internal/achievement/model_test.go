package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAchievementValidate(t *testing.T) {
	valid := simpleAchievement("century", CriterionDistanceTotal, 100)
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Achievement)
	}{
		{"missing id", func(a *Achievement) { a.ID = "" }},
		{"missing name", func(a *Achievement) { a.Name = "" }},
		{"no criteria", func(a *Achievement) { a.Criteria = nil }},
		{"difficulty out of range", func(a *Achievement) { a.Difficulty = 6 }},
		{"unknown criterion type", func(a *Achievement) { a.Criteria[0].Type = "teleportation" }},
		{"non-positive target", func(a *Achievement) { a.Criteria[0].Target = 0 }},
		{"unknown visibility", func(a *Achievement) { a.Visibility = "invisible" }},
		{"duplicate criterion index", func(a *Achievement) {
			a.Criteria = append(a.Criteria, Criterion{Index: 0, Type: CriterionDurationTotal, Target: 10})
		}},
		{"duplicate reward index", func(a *Achievement) {
			a.Rewards = append(a.Rewards, Reward{Index: 0, Kind: RewardBadge})
		}},
		{"unknown reward kind", func(a *Achievement) { a.Rewards[0].Kind = "hug" }},
		{"inverted window", func(a *Achievement) {
			a.Availability = &Window{StartDate: testTime, EndDate: testTime.AddDate(0, 0, -1)}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := simpleAchievement("century", CriterionDistanceTotal, 100)
			tc.mutate(&a)
			assert.Error(t, a.Validate())
		})
	}
}

func TestWindowContains(t *testing.T) {
	var unbounded *Window
	assert.True(t, unbounded.Contains(testTime))

	w := &Window{StartDate: testTime, EndDate: testTime.AddDate(0, 1, 0)}
	assert.False(t, w.Contains(testTime.Add(-time.Hour)))
	assert.True(t, w.Contains(testTime))
	assert.True(t, w.Contains(testTime.AddDate(0, 0, 15)))
	assert.False(t, w.Contains(testTime.AddDate(0, 2, 0)))

	openEnded := &Window{StartDate: testTime}
	assert.True(t, openEnded.Contains(testTime.AddDate(5, 0, 0)))
}

func TestProgressRecordPercent(t *testing.T) {
	a := Achievement{
		ID:         "combo",
		Name:       "Combo",
		Category:   "test",
		Difficulty: 2,
		Visibility: VisibilityVisible,
		Criteria: []Criterion{
			{Index: 0, Type: CriterionDistanceTotal, Target: 100},
			{Index: 1, Type: CriterionActivityCount, Target: 10},
		},
		Rewards: []Reward{{Index: 0, Kind: RewardPoints, Value: 100}},
	}

	record := NewProgressRecord("user-1", a, testTime)
	assert.Equal(t, 0.0, record.Percent())
	assert.False(t, record.Completed())

	record.Progress[0].CurrentValue = 50
	assert.Equal(t, 25.0, record.Percent())

	// Overshoot on one criterion never pushes the total past its share.
	record.Progress[0].CurrentValue = 400
	record.Progress[1].CurrentValue = 5
	assert.Equal(t, 75.0, record.Percent())
	assert.False(t, record.Completed())

	record.Progress[1].CurrentValue = 10
	assert.Equal(t, 100.0, record.Percent())
	assert.True(t, record.Completed())
}

func TestDiscoverable(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	assert.True(t, a.Discoverable())

	a.Visibility = VisibilityHidden
	assert.False(t, a.Discoverable())

	a.Visibility = VisibilitySecret
	assert.False(t, a.Discoverable())
}
