package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kittykibble/kibble-backend/internal/products"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

// Backend persists cart snapshots. *redis.Client satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current string, exists bool) (next string, remove bool, err error)) error
	Del(ctx context.Context, keys ...string) error
	CartKey(ownerID string) string
}

type variantResolver interface {
	ResolveVariant(ctx context.Context, id uuid.UUID, grams int) (*products.Variant, error)
}

// AddItemInput is a request to put quantity units of one product variant in
// the cart. The price is always resolved from the catalog.
type AddItemInput struct {
	ProductID      uuid.UUID
	SelectedWeight int
	Quantity       int
}

// Service manages a user's cart and its persisted mirror.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (Snapshot, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (Snapshot, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID, grams int) (Snapshot, error)
	RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (Snapshot, error)
	UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, grams, quantity int) (Snapshot, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	backend  Backend
	catalog  variantResolver
	notifier Notifier
	ttl      time.Duration
	logg     *logger.Logger
}

// NewService builds a cart service. notifier may be nil.
func NewService(backend Backend, catalog variantResolver, notifier Notifier, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("cart backend required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &service{
		backend:  backend,
		catalog:  catalog,
		notifier: notifier,
		ttl:      ttl,
		logg:     logg,
	}, nil
}

var errLineNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")

func (s *service) Get(ctx context.Context, userID uuid.UUID) (Snapshot, error) {
	raw, err := s.backend.Get(ctx, s.backend.CartKey(userID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return (&Cart{}).Snapshot(), nil
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	c, err := decode(raw)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
	}
	return c.Snapshot(), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (Snapshot, error) {
	if input.Quantity < 1 {
		input.Quantity = 1
	}
	variant, err := s.catalog.ResolveVariant(ctx, input.ProductID, input.SelectedWeight)
	if err != nil {
		return Snapshot{}, err
	}
	item := Item{
		ID:             variant.Product.ID,
		Name:           variant.Product.Name,
		Price:          variant.UnitPrice,
		Quantity:       input.Quantity,
		SelectedWeight: variant.Grams,
		Image:          variant.Product.Image,
		Category:       variant.Product.Category,
		Type:           variant.Product.AnimalType,
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.Add(item)
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID, grams int) (Snapshot, error) {
	if grams <= 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "selected weight required")
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		if !c.Remove(productID, grams) {
			return errLineNotFound
		}
		return nil
	})
}

func (s *service) RemoveProduct(ctx context.Context, userID, productID uuid.UUID) (Snapshot, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		if !c.RemoveProduct(productID) {
			return errLineNotFound
		}
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, userID, productID uuid.UUID, grams, quantity int) (Snapshot, error) {
	if grams <= 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "selected weight required")
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		if !c.SetQuantity(productID, grams, quantity) {
			return errLineNotFound
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.backend.Del(ctx, s.backend.CartKey(userID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	s.notify(ctx, userID, (&Cart{}).Snapshot())
	return nil
}

// mutate applies fn to the stored cart under an optimistic transaction and
// writes the result back. An emptied cart deletes the key.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn func(c *Cart) error) (Snapshot, error) {
	var snapshot Snapshot
	err := s.backend.Update(ctx, s.backend.CartKey(userID.String()), s.ttl, func(current string, exists bool) (string, bool, error) {
		c := &Cart{}
		if exists {
			decoded, err := decode(current)
			if err != nil {
				return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart")
			}
			c = decoded
		}
		if err := fn(c); err != nil {
			return "", false, err
		}
		snapshot = c.Snapshot()
		if c.IsEmpty() {
			return "", true, nil
		}
		next, err := json.Marshal(c)
		if err != nil {
			return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
		}
		return string(next), false, nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Snapshot{}, err
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	s.notify(ctx, userID, snapshot)
	return snapshot, nil
}

func (s *service) notify(ctx context.Context, userID uuid.UUID, snapshot Snapshot) {
	event := Event{UserID: userID, Count: snapshot.Count, Total: snapshot.Total}
	if err := s.notifier.CartChanged(ctx, event); err != nil && s.logg != nil {
		s.logg.Error(ctx, "cart changed notification failed", err)
	}
}

func decode(raw string) (*Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
