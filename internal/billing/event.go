package billing

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned when a webhook payload cannot be parsed.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Subscription lifecycle event types the sync reacts to. Everything else
// is acknowledged and dropped.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is the outer webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SubscriptionObject is the subscription payload inside lifecycle events.
type SubscriptionObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceID returns the first subscription item's price id, or empty.
func (o *SubscriptionObject) PriceID() string {
	if len(o.Items.Data) == 0 {
		return ""
	}
	return o.Items.Data[0].Price.ID
}

// ParseEvent decodes a webhook payload into its envelope.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	return &event, nil
}

// Subscription decodes the event's data object as a subscription.
func (e *Event) Subscription() (*SubscriptionObject, error) {
	var obj SubscriptionObject
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if obj.ID == "" || obj.Customer == "" {
		return nil, fmt.Errorf("%w: subscription missing id or customer", ErrMalformedEvent)
	}
	return &obj, nil
}
