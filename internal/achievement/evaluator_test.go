package achievement

import "testing"

func TestEvaluateTypeMismatch(t *testing.T) {
	c := Criterion{Index: 0, Type: CriterionDistanceTotal, Target: 100}
	ev := Event{EventID: "e1", UserID: "u1", CriterionType: CriterionDurationTotal, MeasuredValue: 42}

	if _, ok := Evaluate(c, ev); ok {
		t.Fatalf("expected no match for mismatched criterion type")
	}
}

func TestEvaluateActivityTypeFilter(t *testing.T) {
	cases := []struct {
		name           string
		criterionType_ string
		eventType      string
		wantMatch      bool
	}{
		{"exact match", "running", "running", true},
		{"mismatch", "running", "cycling", false},
		{"criterion any matches everything", "any", "cycling", true},
		{"criterion unset matches everything", "", "cycling", true},
		{"event unset matches any criterion", "running", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Criterion{Index: 0, Type: CriterionDistanceTotal, Target: 100, ActivityType: tc.criterionType_}
			ev := Event{EventID: "e1", UserID: "u1", CriterionType: CriterionDistanceTotal, MeasuredValue: 10, ActivityType: tc.eventType}

			value, ok := Evaluate(c, ev)
			if ok != tc.wantMatch {
				t.Fatalf("match = %v, want %v", ok, tc.wantMatch)
			}
			if ok && value != 10 {
				t.Fatalf("value = %v, want 10", value)
			}
		})
	}
}

func TestEvaluateTimeFrameFilter(t *testing.T) {
	c := Criterion{Index: 0, Type: CriterionDurationTotal, Target: 300, TimeFrame: TimeFrameWeek}

	if _, ok := Evaluate(c, Event{EventID: "e1", UserID: "u1", CriterionType: CriterionDurationTotal, MeasuredValue: 45, TimeFrame: TimeFrameDay}); ok {
		t.Fatalf("expected day-scoped event to miss a week-scoped criterion")
	}
	if _, ok := Evaluate(c, Event{EventID: "e2", UserID: "u1", CriterionType: CriterionDurationTotal, MeasuredValue: 45, TimeFrame: TimeFrameWeek}); !ok {
		t.Fatalf("expected week-scoped event to match")
	}
	// Unscoped events contribute to any frame.
	if _, ok := Evaluate(c, Event{EventID: "e3", UserID: "u1", CriterionType: CriterionDurationTotal, MeasuredValue: 45}); !ok {
		t.Fatalf("expected unscoped event to match")
	}
}

func TestEvaluateMeasuredValuePassthrough(t *testing.T) {
	c := Criterion{Index: 0, Type: CriterionDistanceSingle, Target: 42.2}
	ev := Event{EventID: "e1", UserID: "u1", CriterionType: CriterionDistanceSingle, MeasuredValue: 21.1}

	value, ok := Evaluate(c, ev)
	if !ok || value != 21.1 {
		t.Fatalf("Evaluate = (%v, %v), want (21.1, true)", value, ok)
	}
}

func TestEvaluateCountsTruncateToWholeUnits(t *testing.T) {
	for _, ct := range []CriterionType{CriterionActivityCount, CriterionActivityStreak, CriterionSocialShare, CriterionSocialInvite} {
		c := Criterion{Index: 0, Type: ct, Target: 10}
		ev := Event{EventID: "e1", UserID: "u1", CriterionType: ct, MeasuredValue: 7.9}

		value, ok := Evaluate(c, ev)
		if !ok || value != 7 {
			t.Fatalf("%s: Evaluate = (%v, %v), want (7, true)", ct, value, ok)
		}
	}
}
