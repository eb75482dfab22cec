package product

import "time"

// Known catalog categories.
const (
	CategoryMen         = "men's clothing"
	CategoryWomen       = "women's clothing"
	CategoryAccessories = "accessories"
)

// Categories lists every category the catalog accepts as a filter.
var Categories = []string{CategoryMen, CategoryWomen, CategoryAccessories}

// Product is a catalog entry. Prices are display strings such as "$1,299.00".
type Product struct {
	ID            string    `json:"id" db:"id" yaml:"id"`
	Name          string    `json:"name" db:"name" yaml:"name"`
	Category      string    `json:"category" db:"category" yaml:"category"`
	Brand         string    `json:"brand" db:"brand" yaml:"brand"`
	ImageURL      string    `json:"imageUrl" db:"image_url" yaml:"imageUrl"`
	Price         string    `json:"price" db:"price" yaml:"price"`
	OriginalPrice string    `json:"originalPrice" db:"original_price" yaml:"originalPrice"`
	Discount      string    `json:"discount" db:"discount" yaml:"discount"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at" yaml:"-"`
}

// IsCategory reports whether c is a known category.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
