// Package events carries allocation state transitions to subscribers such as
// a notifier or the audit archive. Publishing never blocks the engine.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OfferCreated   Type = "offer_created"
	OfferAccepted  Type = "offer_accepted"
	OfferDeclined  Type = "offer_declined"
	OfferExpired   Type = "offer_expired"
	RoundExhausted Type = "round_exhausted"
	ListingClosed  Type = "listing_closed"
)

// Event is one committed state transition.
//
// ResponseToken is set on OfferCreated only and is meant for the notifier;
// the audit archive drops it.
type Event struct {
	ID            string     `json:"id"`
	Type          Type       `json:"type"`
	ListingID     string     `json:"listing_id"`
	OfferID       string     `json:"offer_id,omitempty"`
	RoundOfferID  string     `json:"round_offer_id,omitempty"`
	ApplicantID   string     `json:"applicant_id,omitempty"`
	SortOrder     *int       `json:"sort_order,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ResponseToken string     `json:"response_token,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// New returns an event of type t with a fresh id.
func New(t Type, listingID string, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ListingID:  listingID,
		OccurredAt: occurredAt.UTC(),
	}
}

// Publisher accepts events after the transition that produced them has
// been committed.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// Subscriber handles a single event. Errors are logged by the bus and do not
// stop delivery to other subscribers.
type Subscriber interface {
	Handle(ctx context.Context, e Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e Event) error

func (f SubscriberFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}
