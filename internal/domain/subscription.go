package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the payment provider's subscription
// lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// Entitled reports whether the status grants the premium tier.
// Only active and trialing subscriptions are entitled; past_due is not,
// so a failed renewal drops the member to the free tier until payment
// recovers.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

// Valid reports whether the status is one the provider can send.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue,
		SubscriptionCanceled, SubscriptionUnpaid, SubscriptionIncomplete:
		return true
	}
	return false
}

// Subscription mirrors the provider's subscription object for one user.
// ProviderSubscriptionID is unique; webhook upserts key on it.
type Subscription struct {
	ID                     uuid.UUID          `db:"id" json:"id"`
	UserID                 uuid.UUID          `db:"user_id" json:"user_id"`
	ProviderCustomerID     string             `db:"provider_customer_id" json:"provider_customer_id"`
	ProviderSubscriptionID string             `db:"provider_subscription_id" json:"provider_subscription_id"`
	Status                 SubscriptionStatus `db:"status" json:"status"`
	PriceID                string             `db:"price_id" json:"price_id"`
	CurrentPeriodEnd       time.Time          `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd      bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt              time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `db:"updated_at" json:"updated_at"`
}

// BillingEvent records a processed webhook event id. Replayed events
// are acknowledged without being re-applied.
type BillingEvent struct {
	ProviderEventID string    `db:"provider_event_id" json:"provider_event_id"`
	Type            string    `db:"type" json:"type"`
	ReceivedAt      time.Time `db:"received_at" json:"received_at"`
}
