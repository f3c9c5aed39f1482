package achievement

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryCatalogRepository struct {
	mu           sync.RWMutex
	achievements map[string]Achievement
}

// NewMemoryCatalogRepository returns an in-memory catalog seeded with the
// provided definitions, intended for local development and tests.
func NewMemoryCatalogRepository(seed ...Achievement) (CatalogRepository, error) {
	repo := &memoryCatalogRepository{achievements: make(map[string]Achievement, len(seed))}
	for _, a := range seed {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		repo.achievements[a.ID] = a
	}
	return repo, nil
}

func (r *memoryCatalogRepository) GetAchievement(_ context.Context, id string) (Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.achievements[id]
	if !ok {
		return Achievement{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryCatalogRepository) ListAchievements(_ context.Context, filter CatalogFilter) ([]Achievement, PageInfo, error) {
	r.mu.RLock()
	snapshot := make([]Achievement, 0, len(r.achievements))
	for _, a := range r.achievements {
		if matchesFilter(a, filter) {
			snapshot = append(snapshot, a)
		}
	}
	r.mu.RUnlock()

	sortAchievements(snapshot, filter.Sort)
	items, page := paginate(snapshot, filter.Pagination)
	return items, page, nil
}

func (r *memoryCatalogRepository) ListByCriterionType(_ context.Context, t CriterionType) ([]Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Achievement
	for _, a := range r.achievements {
		for _, c := range a.Criteria {
			if c.Type == t {
				matched = append(matched, a)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func matchesFilter(a Achievement, filter CatalogFilter) bool {
	if !filter.IncludeUndiscoverable && !a.Discoverable() {
		return false
	}
	if filter.Category != "" && a.Category != filter.Category {
		return false
	}
	if filter.Difficulty != 0 && a.Difficulty != filter.Difficulty {
		return false
	}
	if !filter.AvailableAt.IsZero() && !a.AvailableAt(filter.AvailableAt) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(a.Name), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) {
			return false
		}
	}
	return true
}

func sortAchievements(items []Achievement, key string) {
	switch key {
	case "name":
		sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	case "category":
		sort.Slice(items, func(i, j int) bool {
			if items[i].Category != items[j].Category {
				return items[i].Category < items[j].Category
			}
			return items[i].Difficulty < items[j].Difficulty
		})
	default: // difficulty
		sort.Slice(items, func(i, j int) bool {
			if items[i].Difficulty != items[j].Difficulty {
				return items[i].Difficulty < items[j].Difficulty
			}
			return items[i].Name < items[j].Name
		})
	}
}

func paginate(items []Achievement, pagination Pagination) ([]Achievement, PageInfo) {
	page := pagination.Page
	pageSize := pagination.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	totalItems := len(items)
	totalPages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		totalPages++
	}
	if totalPages == 0 {
		totalPages = 1
	}

	info := PageInfo{Page: page, PageSize: pageSize, TotalPages: totalPages, TotalItems: totalItems, HasNext: page < totalPages}

	start := (page - 1) * pageSize
	if start >= totalItems {
		return []Achievement{}, info
	}
	end := start + pageSize
	if end > totalItems {
		end = totalItems
	}

	out := make([]Achievement, end-start)
	copy(out, items[start:end])
	return out, info
}

type memoryProgressRepository struct {
	mu    sync.RWMutex
	store map[string]map[string]ProgressRecord // userID -> achievementID -> record
}

// NewMemoryProgressRepository returns an in-memory progress store with
// compare-and-write semantics, intended for local development and tests.
func NewMemoryProgressRepository() ProgressRepository {
	return &memoryProgressRepository{store: make(map[string]map[string]ProgressRecord)}
}

func (r *memoryProgressRepository) GetProgress(_ context.Context, userID, achievementID string) (ProgressRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userStore, ok := r.store[userID]
	if !ok {
		return ProgressRecord{}, ErrNotFound
	}
	record, ok := userStore[achievementID]
	if !ok {
		return ProgressRecord{}, ErrNotFound
	}
	return cloneRecord(record), nil
}

func (r *memoryProgressRepository) CompareAndWriteProgress(_ context.Context, record ProgressRecord, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userStore, ok := r.store[record.UserID]
	if !ok {
		userStore = make(map[string]ProgressRecord)
		r.store[record.UserID] = userStore
	}

	var storedVersion int64
	if existing, ok := userStore[record.AchievementID]; ok {
		storedVersion = existing.Version
	}
	if storedVersion != expectedVersion {
		return ErrConflict
	}

	userStore[record.AchievementID] = cloneRecord(record)
	return nil
}

func (r *memoryProgressRepository) ListProgress(_ context.Context, userID string) ([]ProgressRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userStore, ok := r.store[userID]
	if !ok {
		return nil, nil
	}
	out := make([]ProgressRecord, 0, len(userStore))
	for _, record := range userStore {
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

// cloneRecord copies the slices so callers never share backing arrays with the store.
func cloneRecord(record ProgressRecord) ProgressRecord {
	out := record
	out.Progress = make([]CriterionProgress, len(record.Progress))
	copy(out.Progress, record.Progress)
	if record.ClaimedRewards != nil {
		out.ClaimedRewards = make([]ClaimedReward, len(record.ClaimedRewards))
		copy(out.ClaimedRewards, record.ClaimedRewards)
	}
	return out
}
