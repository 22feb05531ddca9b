package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"audio-library/backend/audio/models"

	"github.com/google/uuid"
)

// MemoryAudioRepository keeps assets in process memory. It backs tests and
// the STORE_DRIVER=memory development mode.
type MemoryAudioRepository struct {
	mu     sync.RWMutex
	assets map[string]models.AudioAsset
	order  []string
	now    func() time.Time
}

func NewMemoryAudioRepository() *MemoryAudioRepository {
	return &MemoryAudioRepository{
		assets: make(map[string]models.AudioAsset),
		now:    time.Now,
	}
}

func (r *MemoryAudioRepository) Create(ctx context.Context, asset *models.AudioAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = r.now()
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = asset.CreatedAt
	}
	r.assets[asset.ID] = *asset
	r.order = append(r.order, asset.ID)
	return nil
}

func (r *MemoryAudioRepository) FindByLanguage(ctx context.Context, language string) (*models.AudioAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.AudioAsset
	for _, id := range r.order {
		a := r.assets[id]
		if a.Language != language {
			continue
		}
		if found == nil || !a.CreatedAt.Before(found.CreatedAt) {
			copied := a
			found = &copied
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *MemoryAudioRepository) FindByID(ctx context.Context, id string) (*models.AudioAsset, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryAudioRepository) List(ctx context.Context) ([]models.AudioAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AudioAsset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.assets[id])
	}
	return out, nil
}

func (r *MemoryAudioRepository) CountByLanguage(ctx context.Context) ([]models.LanguageCount, error) {
	r.mu.RLock()
	counts := make(map[string]int64)
	for _, a := range r.assets {
		counts[a.Language]++
	}
	r.mu.RUnlock()

	rows := make([]models.LanguageCount, 0, len(counts))
	for lang, n := range counts {
		rows = append(rows, models.LanguageCount{Language: lang, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Language < rows[j].Language })
	return rows, nil
}

func (r *MemoryAudioRepository) Update(ctx context.Context, id string, patch models.AssetPatch) (*models.AudioAsset, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(&a, r.now())
	r.assets[id] = a
	return &a, nil
}

func (r *MemoryAudioRepository) Delete(ctx context.Context, id string) (int64, error) {
	if err := validUUID(id); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assets[id]; !ok {
		return 0, nil
	}
	delete(r.assets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

func (r *MemoryAudioRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
