package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shoplite/promotion/internal/domain"
	"github.com/shoplite/promotion/internal/repository"
	apperrors "github.com/shoplite/promotion/pkg/errors"
)

// PromotionRepository is an in-memory implementation of
// repository.PromotionRepository used in tests and local development.
// Promotions and items live in independent maps keyed by id; records are
// copied on the way in and out so callers never share memory with the store.
// A single mutex serializes TryRedeem, keeping the check-and-increment
// indivisible just like the conditional UPDATE of the PostgreSQL
// implementation.
type PromotionRepository struct {
	mu         sync.Mutex
	promotions map[string]domain.Promotion
	items      map[string][]domain.PromotionItem
}

// NewPromotionRepository creates an empty in-memory promotion repository.
func NewPromotionRepository() *PromotionRepository {
	return &PromotionRepository{
		promotions: make(map[string]domain.Promotion),
		items:      make(map[string][]domain.PromotionItem),
	}
}

// Create inserts a new promotion with its items.
func (r *PromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.promotions[p.ID]; ok {
		return apperrors.AlreadyExists("promotion", "id", p.ID)
	}
	if p.Code != "" {
		for _, existing := range r.promotions {
			if existing.Code == p.Code {
				return apperrors.AlreadyExists("promotion", "code", p.Code)
			}
		}
	}

	r.store(p)
	return nil
}

// GetByID retrieves a promotion and its items by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.promotions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.load(p), nil
}

// GetByCode retrieves a code-gated promotion by its promo code.
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.promotions {
		if p.RequiresCode && p.Code == code {
			return r.load(p), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// List returns promotions matching the filter, newest first.
func (r *PromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []domain.Promotion{}
	for _, p := range r.promotions {
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		if filter.RequiresCode != nil && p.RequiresCode != *filter.RequiresCode {
			continue
		}
		p.Items = []domain.PromotionItem{}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	if offset >= total {
		return []domain.Promotion{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return matched[offset:end], total, nil
}

// Update replaces a promotion's fields and its item list.
func (r *PromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.promotions[p.ID]
	if !ok {
		return apperrors.NotFound("promotion", p.ID)
	}

	// usage_count is owned by TryRedeem; writes never touch it.
	p.UsageCount = existing.UsageCount
	r.store(p)
	return nil
}

// Delete removes a promotion and its items.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.promotions[id]; !ok {
		return apperrors.NotFound("promotion", id)
	}
	delete(r.promotions, id)
	delete(r.items, id)
	return nil
}

// TryRedeem increments the usage count if the usage limit is not exhausted.
// The whole check-and-increment runs under the store mutex, so concurrent
// callers observe it as one indivisible operation.
func (r *PromotionRepository) TryRedeem(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.promotions[id]
	if !ok {
		return false, nil
	}
	if p.UsageLimitTotal != nil && p.UsageCount >= *p.UsageLimitTotal {
		return false, nil
	}

	p.UsageCount++
	p.UpdatedAt = time.Now().UTC()
	r.promotions[id] = p
	return true, nil
}

// store copies the promotion and its items into the arena maps. Caller must
// hold the mutex.
func (r *PromotionRepository) store(p *domain.Promotion) {
	items := make([]domain.PromotionItem, len(p.Items))
	copy(items, p.Items)

	record := *p
	record.Items = nil
	r.promotions[p.ID] = record
	r.items[p.ID] = items
}

// load assembles a detached copy of the promotion with its items. Caller must
// hold the mutex.
func (r *PromotionRepository) load(p domain.Promotion) *domain.Promotion {
	items := make([]domain.PromotionItem, len(r.items[p.ID]))
	copy(items, r.items[p.ID])
	p.Items = items
	return &p
}
