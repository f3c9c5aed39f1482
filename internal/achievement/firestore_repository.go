package achievement

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	achievementsCollection = "achievements"
	usersCollection        = "users"
	progressSubcollection  = "achievement_progress"
)

type firestoreCatalogRepository struct {
	client *firestore.Client
}

// NewFirestoreCatalogRepository creates a Firestore-backed catalog repository.
func NewFirestoreCatalogRepository(client *firestore.Client) CatalogRepository {
	return &firestoreCatalogRepository{client: client}
}

func (r *firestoreCatalogRepository) GetAchievement(ctx context.Context, id string) (Achievement, error) {
	doc, err := r.client.Collection(achievementsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Achievement{}, ErrNotFound
	}
	if err != nil {
		return Achievement{}, err
	}

	var a Achievement
	if err := doc.DataTo(&a); err != nil {
		return Achievement{}, fmt.Errorf("unmarshal achievement: %w", err)
	}
	a.ID = doc.Ref.ID
	return a, nil
}

func (r *firestoreCatalogRepository) ListAchievements(ctx context.Context, filter CatalogFilter) ([]Achievement, PageInfo, error) {
	query := r.client.Collection(achievementsCollection).Query
	if filter.Category != "" {
		query = query.Where("category", "==", filter.Category)
	}
	if filter.Difficulty != 0 {
		query = query.Where("difficulty", "==", filter.Difficulty)
	}
	if !filter.IncludeUndiscoverable {
		query = query.Where("visibility", "==", string(VisibilityVisible))
	}

	all, err := r.fetch(ctx, query)
	if err != nil {
		return nil, PageInfo{}, err
	}

	// Availability windows and text search don't map onto Firestore queries
	// (nil windows would need an OR); filter the snapshot here instead.
	matched := all[:0]
	for _, a := range all {
		if matchesFilter(a, filter) {
			matched = append(matched, a)
		}
	}

	sortAchievements(matched, filter.Sort)
	items, page := paginate(matched, filter.Pagination)
	return items, page, nil
}

func (r *firestoreCatalogRepository) ListByCriterionType(ctx context.Context, t CriterionType) ([]Achievement, error) {
	all, err := r.fetch(ctx, r.client.Collection(achievementsCollection).Query)
	if err != nil {
		return nil, err
	}

	matched := all[:0]
	for _, a := range all {
		for _, c := range a.Criteria {
			if c.Type == t {
				matched = append(matched, a)
				break
			}
		}
	}
	return matched, nil
}

func (r *firestoreCatalogRepository) fetch(ctx context.Context, query firestore.Query) ([]Achievement, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Achievement
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var a Achievement
		if err := doc.DataTo(&a); err != nil {
			return nil, fmt.Errorf("unmarshal achievement %s: %w", doc.Ref.ID, err)
		}
		a.ID = doc.Ref.ID
		out = append(out, a)
	}
	return out, nil
}

type firestoreProgressRepository struct {
	client *firestore.Client
}

// NewFirestoreProgressRepository creates a Firestore-backed progress store.
// Compare-and-write runs inside a transaction that re-checks the stored version.
func NewFirestoreProgressRepository(client *firestore.Client) ProgressRepository {
	return &firestoreProgressRepository{client: client}
}

func (r *firestoreProgressRepository) progressRef(userID, achievementID string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(progressSubcollection).Doc(achievementID)
}

func (r *firestoreProgressRepository) GetProgress(ctx context.Context, userID, achievementID string) (ProgressRecord, error) {
	doc, err := r.progressRef(userID, achievementID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ProgressRecord{}, ErrNotFound
	}
	if err != nil {
		return ProgressRecord{}, err
	}

	var record ProgressRecord
	if err := doc.DataTo(&record); err != nil {
		return ProgressRecord{}, fmt.Errorf("unmarshal progress record: %w", err)
	}
	record.UserID = userID
	record.AchievementID = achievementID
	return record, nil
}

func (r *firestoreProgressRepository) CompareAndWriteProgress(ctx context.Context, record ProgressRecord, expectedVersion int64) error {
	ref := r.progressRef(record.UserID, record.AchievementID)

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			if expectedVersion != 0 {
				return ErrConflict
			}
			return tx.Create(ref, record)
		case err != nil:
			return err
		}

		var stored ProgressRecord
		if err := doc.DataTo(&stored); err != nil {
			return fmt.Errorf("unmarshal stored record: %w", err)
		}
		if stored.Version != expectedVersion {
			return ErrConflict
		}
		return tx.Set(ref, record)
	})
}

func (r *firestoreProgressRepository) ListProgress(ctx context.Context, userID string) ([]ProgressRecord, error) {
	iter := r.client.Collection(usersCollection).Doc(userID).Collection(progressSubcollection).Documents(ctx)
	defer iter.Stop()

	var out []ProgressRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var record ProgressRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, fmt.Errorf("unmarshal progress record %s: %w", doc.Ref.ID, err)
		}
		record.UserID = userID
		record.AchievementID = doc.Ref.ID
		out = append(out, record)
	}
	return out, nil
}
