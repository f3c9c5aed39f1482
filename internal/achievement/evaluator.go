package achievement

import "math"

// evaluatorFunc maps an event to the new absolute value for a criterion.
// Returning false means the event does not contribute to the criterion.
type evaluatorFunc func(c Criterion, ev Event) (float64, bool)

// evaluators is the closed dispatch table, one entry per criterion type.
// Every rule works on absolute values: producers report accumulated totals
// (or the best single effort, or the precomputed streak length) and the
// tracker stores the max of old and new. That makes replays and
// out-of-order delivery naturally idempotent.
var evaluators = map[CriterionType]evaluatorFunc{
	CriterionDistanceTotal:   measuredValue,
	CriterionDistanceSingle:  measuredValue,
	CriterionElevationTotal:  measuredValue,
	CriterionElevationSingle: measuredValue,
	CriterionDurationTotal:   measuredValue,
	CriterionDurationSingle:  measuredValue,
	CriterionActivityCount:   wholeCount,
	CriterionActivityStreak:  wholeCount,
	CriterionSocialShare:     wholeCount,
	CriterionSocialInvite:    wholeCount,
}

// Evaluate is the pure criterion evaluator: it matches the event against one
// criterion definition and, on a match, returns the new absolute value for
// that criterion. It never reads or writes state.
func Evaluate(c Criterion, ev Event) (float64, bool) {
	if c.Type != ev.CriterionType {
		return 0, false
	}
	if c.ActivityType != "" && c.ActivityType != "any" && ev.ActivityType != "" && c.ActivityType != ev.ActivityType {
		return 0, false
	}
	if c.TimeFrame != "" && ev.TimeFrame != "" && c.TimeFrame != ev.TimeFrame {
		return 0, false
	}

	fn, ok := evaluators[c.Type]
	if !ok {
		return 0, false
	}
	return fn(c, ev)
}

// measuredValue accepts the producer-reported absolute measurement as-is
// (accumulated totals for *_total, best effort for *_single).
func measuredValue(_ Criterion, ev Event) (float64, bool) {
	if ev.MeasuredValue < 0 {
		return 0, false
	}
	return ev.MeasuredValue, true
}

// wholeCount truncates count-like measurements (activities, streak days,
// shares, invites) to whole units.
func wholeCount(_ Criterion, ev Event) (float64, bool) {
	if ev.MeasuredValue < 0 {
		return 0, false
	}
	return math.Floor(ev.MeasuredValue), true
}
