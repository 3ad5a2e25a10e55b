package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shoplite/promotion/internal/domain"
	apperrors "github.com/shoplite/promotion/pkg/errors"
)

const keyPrefix = "promostate:"

// CartStateRepository implements repository.CartStateRepository using Redis.
// The state shares the lifetime of the cart it belongs to, hence the TTL.
type CartStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStateRepository creates a new Redis-backed cart state repository.
func NewCartStateRepository(client *redis.Client, ttl time.Duration) *CartStateRepository {
	return &CartStateRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the promotion state for a cart.
func (r *CartStateRepository) Get(ctx context.Context, cartID string) (*domain.CartState, error) {
	key := keyPrefix + cartID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("cart state", cartID)
		}
		return nil, fmt.Errorf("redis get cart state: %w", err)
	}

	var state domain.CartState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal cart state: %w", err)
	}

	return &state, nil
}

// Save persists the promotion state for a cart with the configured TTL.
func (r *CartStateRepository) Save(ctx context.Context, state *domain.CartState) error {
	key := keyPrefix + state.CartID

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart state: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart state: %w", err)
	}

	return nil
}
