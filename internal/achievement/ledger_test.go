package achievement

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestLedger(t *testing.T, seed ...Achievement) (*Ledger, ProgressRepository, *capturePublisher) {
	t.Helper()

	catalogRepo, err := NewMemoryCatalogRepository(seed...)
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	progressRepo := NewMemoryProgressRepository()
	publisher := &capturePublisher{}

	ledger, err := NewLedger(catalogRepo, progressRepo, publisher, fixedClock{now: testTime}, &seqIDs{}, testLogger())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return ledger, progressRepo, publisher
}

func seedProgress(t *testing.T, repo ProgressRepository, userID string, a Achievement, status Status) {
	t.Helper()

	record := NewProgressRecord(userID, a, testTime)
	record.Status = status
	if status == StatusCompleted {
		for i := range record.Progress {
			record.Progress[i].CurrentValue = record.Progress[i].TargetValue
		}
		unlockedAt := testTime
		record.UnlockedAt = &unlockedAt
	}
	record.Version = 1

	if err := repo.CompareAndWriteProgress(context.Background(), record, 0); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
}

func TestClaimIssuesRewardOnce(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	ledger, progressRepo, publisher := newTestLedger(t, a)
	seedProgress(t, progressRepo, "user-1", a, StatusCompleted)

	intent, err := ledger.Claim(context.Background(), "user-1", "century", 0)
	if err != nil {
		t.Fatalf("Claim returned error: %v", err)
	}
	if intent.IntentID == "" {
		t.Fatalf("expected a populated intent id")
	}
	if intent.Kind != RewardPoints || intent.Value != 100 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if !intent.ClaimedAt.Equal(testTime) {
		t.Fatalf("claimedAt = %v, want %v", intent.ClaimedAt, testTime)
	}

	record, err := progressRepo.GetProgress(context.Background(), "user-1", "century")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if !record.HasClaim(0) {
		t.Fatalf("claim not recorded: %+v", record.ClaimedRewards)
	}
	if claims := publisher.byTopic("reward.events"); len(claims) != 1 {
		t.Fatalf("expected 1 claim event, got %d", len(claims))
	}

	if _, err := ledger.Claim(context.Background(), "user-1", "century", 0); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second claim: expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaimRequiresCompletion(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	ledger, progressRepo, _ := newTestLedger(t, a)

	// No progress record at all.
	if _, err := ledger.Claim(context.Background(), "user-1", "century", 0); !errors.Is(err, ErrNotUnlocked) {
		t.Fatalf("expected ErrNotUnlocked without a record, got %v", err)
	}

	seedProgress(t, progressRepo, "user-1", a, StatusInProgress)
	if _, err := ledger.Claim(context.Background(), "user-1", "century", 0); !errors.Is(err, ErrNotUnlocked) {
		t.Fatalf("expected ErrNotUnlocked while in progress, got %v", err)
	}
}

func TestClaimUnknownRewardTargets(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	ledger, progressRepo, _ := newTestLedger(t, a)
	seedProgress(t, progressRepo, "user-1", a, StatusCompleted)

	if _, err := ledger.Claim(context.Background(), "user-1", "missing", 0); !errors.Is(err, ErrUnknownReward) {
		t.Fatalf("unknown achievement: expected ErrUnknownReward, got %v", err)
	}
	if _, err := ledger.Claim(context.Background(), "user-1", "century", 7); !errors.Is(err, ErrUnknownReward) {
		t.Fatalf("out-of-range index: expected ErrUnknownReward, got %v", err)
	}
	if _, err := ledger.Claim(context.Background(), "user-1", "century", -1); !errors.Is(err, ErrUnknownReward) {
		t.Fatalf("negative index: expected ErrUnknownReward, got %v", err)
	}
}

func TestClaimIndependentRewardIndexes(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	a.Rewards = append(a.Rewards, Reward{Index: 1, Kind: RewardBadge, Description: "Century badge"})
	ledger, progressRepo, _ := newTestLedger(t, a)
	seedProgress(t, progressRepo, "user-1", a, StatusCompleted)

	if _, err := ledger.Claim(context.Background(), "user-1", "century", 0); err != nil {
		t.Fatalf("claim index 0: %v", err)
	}
	intent, err := ledger.Claim(context.Background(), "user-1", "century", 1)
	if err != nil {
		t.Fatalf("claim index 1: %v", err)
	}
	if intent.Kind != RewardBadge {
		t.Fatalf("unexpected intent kind: %v", intent.Kind)
	}
}

func TestClaimConcurrentRequestsIssueExactlyOnce(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	ledger, progressRepo, publisher := newTestLedger(t, a)
	seedProgress(t, progressRepo, "user-1", a, StatusCompleted)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Claim(context.Background(), "user-1", "century", 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyClaimed):
				duplicate++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("%d claims succeeded, want exactly 1", succeeded)
	}
	if duplicate != attempts-1 {
		t.Fatalf("%d duplicates, want %d", duplicate, attempts-1)
	}
	if claims := publisher.byTopic("reward.events"); len(claims) != 1 {
		t.Fatalf("expected 1 claim event, got %d", len(claims))
	}
}

func TestClaimContentionReturnsRetryable(t *testing.T) {
	a := simpleAchievement("century", CriterionDistanceTotal, 100)
	catalogRepo, err := NewMemoryCatalogRepository(a)
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	completed := NewProgressRecord("user-1", a, testTime)
	completed.Status = StatusCompleted
	completed.Progress[0].CurrentValue = 100
	completed.Version = 1

	progressRepo := &fakeProgressRepo{
		getProgressFn: func(context.Context, string, string) (ProgressRecord, error) {
			return completed, nil
		},
		compareAndWriteFn: func(context.Context, ProgressRecord, int64) error {
			return ErrConflict
		},
	}

	ledger, err := NewLedger(catalogRepo, progressRepo, &capturePublisher{}, fixedClock{now: testTime}, &seqIDs{}, testLogger())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	if _, err := ledger.Claim(context.Background(), "user-1", "century", 0); !errors.Is(err, ErrRetryable) {
		t.Fatalf("expected ErrRetryable under sustained contention, got %v", err)
	}
}
