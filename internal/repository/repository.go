package repository

import (
	"context"

	"github.com/shoplite/promotion/internal/domain"
)

// PromotionFilter defines filter criteria for listing promotions.
type PromotionFilter struct {
	Active       *bool
	RequiresCode *bool
	Page         int
	PerPage      int
}

// PromotionRepository defines the interface for promotion persistence.
// Promotions and their items are stored in independent collections keyed by
// id; implementations must load and store items alongside the promotion row
// without embedding object pointers.
type PromotionRepository interface {
	// Create inserts a new promotion with its items in one transaction.
	Create(ctx context.Context, p *domain.Promotion) error

	// GetByID retrieves a promotion and its items by id.
	GetByID(ctx context.Context, id string) (*domain.Promotion, error)

	// GetByCode retrieves a code-gated promotion by its promo code.
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)

	// List returns promotions matching the filter along with the total count.
	// Items are not loaded for list results.
	List(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, int, error)

	// Update replaces a promotion's fields and its item list in one transaction.
	Update(ctx context.Context, p *domain.Promotion) error

	// Delete removes a promotion and its items.
	Delete(ctx context.Context, id string) error

	// TryRedeem atomically increments the promotion's usage count if its
	// usage limit is not exhausted. The check and the increment are a single
	// indivisible operation against the store: no read-then-write gap is
	// observable to a concurrent caller. Returns false when the limit is
	// already reached (or the id is unknown); only storage failures are
	// returned as errors.
	TryRedeem(ctx context.Context, id string) (bool, error)
}

// CartStateRepository persists which promotions are attached to a cart.
type CartStateRepository interface {
	// Get retrieves the promotion state for a cart. Returns ErrNotFound if
	// no state has been stored yet.
	Get(ctx context.Context, cartID string) (*domain.CartState, error)

	// Save persists the promotion state for a cart.
	Save(ctx context.Context, state *domain.CartState) error
}
