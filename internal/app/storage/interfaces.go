package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/opxpress/internal/app/domain/cart"
	"github.com/R3E-Network/opxpress/internal/app/domain/order"
	"github.com/R3E-Network/opxpress/internal/app/domain/product"
	"github.com/R3E-Network/opxpress/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("storage: conflict")
	// ErrEmptyCart is returned by PlaceOrder when the user has no cart rows.
	ErrEmptyCart = errors.New("storage: cart is empty")
	// ErrQuantityLimit is returned by IncrementCartItem when the row is
	// already at the cap.
	ErrQuantityLimit = errors.New("storage: quantity limit reached")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// ProductFilter narrows ListProducts. A zero Limit means no limit.
type ProductFilter struct {
	Category string
	Limit    int
}

// ProductStore persists the catalog.
type ProductStore interface {
	ListProducts(ctx context.Context, filter ProductFilter) ([]product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	// SearchProducts matches query case-insensitively against name, brand
	// and category.
	SearchProducts(ctx context.Context, query string, limit, offset int) ([]product.Product, error)
	// UpsertProducts inserts or replaces products by id and returns how many
	// were written.
	UpsertProducts(ctx context.Context, products []product.Product) (int, error)
}

// CartStore persists cart rows. Rows are unique per (user, product).
type CartStore interface {
	// ListCartItems returns the user's rows oldest first with Product set.
	ListCartItems(ctx context.Context, userID string) ([]cart.Item, error)
	GetCartItem(ctx context.Context, userID, productID string) (cart.Item, error)
	CreateCartItem(ctx context.Context, item cart.Item) (cart.Item, error)
	UpdateCartItemQuantity(ctx context.Context, userID, productID string, quantity int) (cart.Item, error)
	// IncrementCartItem adds one to the row's quantity only while it is below
	// max, as a single atomic step.
	IncrementCartItem(ctx context.Context, userID, productID string, max int) (cart.Item, error)
	DeleteCartItem(ctx context.Context, userID, productID string) error
	// ClearCart removes every row for the user and returns the count.
	ClearCart(ctx context.Context, userID string) (int, error)
}

// OrderStore persists orders.
type OrderStore interface {
	// PlaceOrder converts the user's cart into orders sharing one Info and
	// empties the cart, all or nothing.
	PlaceOrder(ctx context.Context, userID string, info order.Info) ([]order.Order, error)
	// ListOrders returns the user's orders newest first with Product and
	// OrderInfo set.
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
}
