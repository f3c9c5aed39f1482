package achievement

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryProgressCompareAndWrite(t *testing.T) {
	repo := NewMemoryProgressRepository()
	a := simpleAchievement("century", CriterionDistanceTotal, 100)

	record := NewProgressRecord("user-1", a, testTime)
	record.Version = 1

	// Expected version 0 creates the record.
	if err := repo.CompareAndWriteProgress(context.Background(), record, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A second create against the same key loses.
	if err := repo.CompareAndWriteProgress(context.Background(), record, 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate create: expected ErrConflict, got %v", err)
	}

	// Update with the stored version wins.
	record.Progress[0].CurrentValue = 40
	record.Version = 2
	if err := repo.CompareAndWriteProgress(context.Background(), record, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A stale writer is rejected.
	record.Version = 2
	if err := repo.CompareAndWriteProgress(context.Background(), record, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update: expected ErrConflict, got %v", err)
	}

	got, err := repo.GetProgress(context.Background(), "user-1", "century")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if got.Version != 2 || got.Progress[0].CurrentValue != 40 {
		t.Fatalf("unexpected stored record: %+v", got)
	}
}

func TestMemoryProgressReturnsCopies(t *testing.T) {
	repo := NewMemoryProgressRepository()
	a := simpleAchievement("century", CriterionDistanceTotal, 100)

	record := NewProgressRecord("user-1", a, testTime)
	record.Version = 1
	if err := repo.CompareAndWriteProgress(context.Background(), record, 0); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := repo.GetProgress(context.Background(), "user-1", "century")
	got.Progress[0].CurrentValue = 999

	again, _ := repo.GetProgress(context.Background(), "user-1", "century")
	if again.Progress[0].CurrentValue != 0 {
		t.Fatalf("repository state mutated through a returned record")
	}
}

func TestMemoryCatalogRejectsInvalidSeeds(t *testing.T) {
	bad := Achievement{ID: "bad"}
	if _, err := NewMemoryCatalogRepository(bad); err == nil {
		t.Fatalf("expected seed validation to fail")
	}
}
