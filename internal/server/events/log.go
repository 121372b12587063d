package events

import (
	"context"

	"github.com/dmitrijs2005/allocator/internal/logging"
)

// LogSubscriber writes every event to the structured log.
type LogSubscriber struct {
	logger logging.Logger
}

func NewLogSubscriber(logger logging.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger.With("module", "events")}
}

func (l *LogSubscriber) Handle(ctx context.Context, e Event) error {
	args := []any{"event_id", e.ID, "type", e.Type, "listing_id", e.ListingID}
	if e.OfferID != "" {
		args = append(args, "offer_id", e.OfferID)
	}
	if e.ApplicantID != "" {
		args = append(args, "applicant_id", e.ApplicantID)
	}
	l.logger.Info(ctx, "transition", args...)
	return nil
}
