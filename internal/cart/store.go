package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart:"

// Store keeps carts in Redis as JSON, one key per session.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Load returns the cart for session, or an empty cart when none is stored.
func (s *Store) Load(ctx context.Context, session string) (Cart, error) {
	if s == nil || s.R == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	if session == "" {
		return Cart{}, fmt.Errorf("session is required: %w", ErrInvalidInput)
	}
	data, err := s.R.Get(ctx, keyPrefix+session).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, nil
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

// Save writes the cart and refreshes its expiry. Saving an empty cart deletes it.
func (s *Store) Save(ctx context.Context, session string, c Cart) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	if session == "" {
		return fmt.Errorf("session is required: %w", ErrInvalidInput)
	}
	if c.IsEmpty() {
		return s.Delete(ctx, session)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, keyPrefix+session, data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete drops the stored cart.
func (s *Store) Delete(ctx context.Context, session string) error {
	if s == nil || s.R == nil {
		return errors.New("cart store not configured")
	}
	if err := s.R.Del(ctx, keyPrefix+session).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
