// Package domain holds the core entities of the tradefloor community
// platform. Types here are storage-shaped (they mirror table rows) and
// carry no behavior beyond small derived predicates.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Email is stored lowercased and unique.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	// BillingCustomerID links the user to the payment provider's
	// customer object once known. Nil until the first webhook or
	// checkout completes.
	BillingCustomerID *string   `db:"billing_customer_id" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
