package user

import "time"

// User is a registered storefront customer.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Public is the subset of a user returned to clients.
type Public struct {
	Email string `json:"email"`
}
