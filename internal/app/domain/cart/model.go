package cart

import (
	"time"

	"github.com/R3E-Network/opxpress/internal/app/domain/product"
)

// MaxItemQuantity caps the quantity of a single product in a cart.
const MaxItemQuantity = 5

// Operation adjusts the quantity of an existing cart row.
type Operation string

const (
	IncreaseQuantity Operation = "INCREASE_QUANTITY"
	DecreaseQuantity Operation = "DECREASE_QUANTITY"
)

// Valid reports whether op is a supported operation.
func (op Operation) Valid() bool {
	return op == IncreaseQuantity || op == DecreaseQuantity
}

// Item is one product line in a user's cart. Product is populated on reads
// that join the catalog.
type Item struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"userId" db:"user_id"`
	ProductID string           `json:"productId" db:"product_id"`
	Quantity  int              `json:"quantity" db:"quantity"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
	Product   *product.Product `json:"product,omitempty" db:"-"`
}
