package order

import (
	"time"

	"github.com/R3E-Network/opxpress/internal/app/domain/product"
)

// Info holds the shipping details captured at checkout.
type Info struct {
	ID       string `json:"id" db:"id"`
	Fullname string `json:"fullname" db:"fullname" validate:"required"`
	Phone    string `json:"phone" db:"phone" validate:"required,number,min=10,max=15"`
	Address  string `json:"address" db:"address" validate:"required"`
	Pincode  string `json:"pincode" db:"pincode" validate:"required,number,len=6"`
	City     string `json:"city" db:"city" validate:"required"`
}

// Order is one purchased product line. Checkout creates one Order per cart row.
type Order struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"userId" db:"user_id"`
	ProductID   string           `json:"productId" db:"product_id"`
	Quantity    int              `json:"quantity" db:"quantity"`
	OrderInfoID string           `json:"orderInfoId" db:"order_info_id"`
	CreatedOn   time.Time        `json:"createdOn" db:"created_on"`
	Product     *product.Product `json:"product,omitempty" db:"-"`
	OrderInfo   *Info            `json:"orderInfo,omitempty" db:"-"`
}
