package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CartRef identifies the cart a checkout consumed. OwnerID wins over SessionID.
type CartRef struct {
	OwnerID   *uuid.UUID
	SessionID string
}

// ID returns the identifier used to address the cart, or "" when the ref is empty.
func (r CartRef) ID() string {
	if r.OwnerID != nil && *r.OwnerID != uuid.Nil {
		return r.OwnerID.String()
	}
	return r.SessionID
}

// Clearer empties a cart after its order has been committed.
type Clearer interface {
	ClearCart(ctx context.Context, ref CartRef) error
}

type cartStore interface {
	CartKey(id string) string
	Del(ctx context.Context, keys ...string) error
}

// RedisClearer deletes the cached cart document.
type RedisClearer struct {
	store cartStore
}

func NewRedisClearer(store cartStore) (*RedisClearer, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	return &RedisClearer{store: store}, nil
}

func (c *RedisClearer) ClearCart(ctx context.Context, ref CartRef) error {
	id := ref.ID()
	if id == "" {
		return nil
	}
	if err := c.store.Del(ctx, c.store.CartKey(id)); err != nil {
		return fmt.Errorf("clear cart %s: %w", id, err)
	}
	return nil
}

// NoopClearer is used when no cart backend is configured.
type NoopClearer struct{}

func (NoopClearer) ClearCart(context.Context, CartRef) error { return nil }
