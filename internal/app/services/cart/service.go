package cart

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/metrics"
	"github.com/R3E-Network/opxpress/internal/app/storage"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
)

var errQuantityLimit = fmt.Sprintf("Quantity cannot exceed %d", cart.MaxItemQuantity)

// Summary is a user's cart with its total.
type Summary struct {
	Items      []cart.Item
	GrandTotal float64
}

// Service mutates carts within the per-item quantity limit.
type Service struct {
	carts    storage.CartStore
	products storage.ProductStore
	log      *logging.Logger
}

// New constructs a cart service.
func New(carts storage.CartStore, products storage.ProductStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("cart")
	}
	return &Service{carts: carts, products: products, log: log}
}

// Items returns the user's cart rows and their grand total.
func (s *Service) Items(ctx context.Context, userID string) (Summary, error) {
	items, err := s.carts.ListCartItems(ctx, userID)
	if err != nil {
		return Summary{}, errors.Internal("Failed to fetch cart", err)
	}
	total := 0.0
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		total += ParsePrice(item.Product.Price) * float64(item.Quantity)
	}
	return Summary{Items: items, GrandTotal: total}, nil
}

// Add puts one unit of productID in the cart, creating the row if needed.
func (s *Service) Add(ctx context.Context, userID, productID string) (cart.Item, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart.Item{}, errors.Validation("productId is required")
	}
	if _, err := s.products.GetProduct(ctx, productID); stderrors.Is(err, storage.ErrNotFound) {
		return cart.Item{}, errors.NotFound("Product not found")
	} else if err != nil {
		return cart.Item{}, errors.Internal("Failed to add to cart", err)
	}

	item, err := s.increment(ctx, userID, productID)
	if stderrors.Is(err, storage.ErrNotFound) {
		item, err = s.carts.CreateCartItem(ctx, cart.Item{UserID: userID, ProductID: productID, Quantity: 1})
		if stderrors.Is(err, storage.ErrConflict) {
			// Lost a race with a concurrent add; the row exists now.
			item, err = s.increment(ctx, userID, productID)
		}
	}
	if err != nil {
		return cart.Item{}, s.wrap(err, "Failed to add to cart")
	}
	metrics.RecordCartMutation("add")
	return item, nil
}

// Update applies op to an existing row. Decreasing to zero removes the row,
// reported by removed.
func (s *Service) Update(ctx context.Context, userID, productID string, op cart.Operation) (item cart.Item, removed bool, err error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart.Item{}, false, errors.Validation("productId is required")
	}
	if !op.Valid() {
		return cart.Item{}, false, errors.Validation(fmt.Sprintf("operation must be one of %s, %s", cart.IncreaseQuantity, cart.DecreaseQuantity))
	}

	switch op {
	case cart.IncreaseQuantity:
		item, err = s.increment(ctx, userID, productID)
	case cart.DecreaseQuantity:
		item, removed, err = s.decrement(ctx, userID, productID)
	}
	if err != nil {
		return cart.Item{}, false, s.wrap(err, "Failed to update cart")
	}
	metrics.RecordCartMutation(string(op))
	return item, removed, nil
}

// Remove deletes the row for productID.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errors.Validation("productId is required")
	}
	if err := s.carts.DeleteCartItem(ctx, userID, productID); err != nil {
		return s.wrap(err, "Failed to remove from cart")
	}
	metrics.RecordCartMutation("remove")
	return nil
}

// Clear empties the cart and returns how many rows were removed.
func (s *Service) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.carts.ClearCart(ctx, userID)
	if err != nil {
		return 0, errors.Internal("Failed to clear cart", err)
	}
	metrics.RecordCartMutation("clear")
	s.log.WithContext(ctx).WithField("rows", n).Debug("cart cleared")
	return n, nil
}

func (s *Service) increment(ctx context.Context, userID, productID string) (cart.Item, error) {
	item, err := s.carts.IncrementCartItem(ctx, userID, productID, cart.MaxItemQuantity)
	if stderrors.Is(err, storage.ErrQuantityLimit) {
		return cart.Item{}, errors.Validation(errQuantityLimit).WithDetails("max", cart.MaxItemQuantity)
	}
	return item, err
}

func (s *Service) decrement(ctx context.Context, userID, productID string) (cart.Item, bool, error) {
	existing, err := s.carts.GetCartItem(ctx, userID, productID)
	if err != nil {
		return cart.Item{}, false, err
	}
	next := existing.Quantity - 1
	if next <= 0 {
		if err := s.carts.DeleteCartItem(ctx, userID, productID); err != nil {
			return cart.Item{}, false, err
		}
		existing.Quantity = 0
		return existing, true, nil
	}
	item, err := s.carts.UpdateCartItemQuantity(ctx, userID, productID, next)
	return item, false, err
}

// wrap keeps service errors, maps a missing row to the cart 404 and hides
// everything else behind message.
func (s *Service) wrap(err error, message string) error {
	if errors.GetServiceError(err) != nil {
		return err
	}
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound("Product not found in cart")
	}
	return errors.Internal(message, err)
}

// ParsePrice reads a display price such as "$1,299.00". Every character other
// than digits, '.' and '-' is dropped first; unparsable prices count as zero.
func ParsePrice(display string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, display)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
