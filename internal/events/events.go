// Package events announces committed ledger writes to interested parties.
// Delivery is best effort: a failed publish never undoes a write.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// Kind names what happened to a record.
type Kind string

const (
	ExpenseRecorded    Kind = "expense.recorded"
	ExpenseAmended     Kind = "expense.amended"
	ExpenseRetired     Kind = "expense.retired"
	SettlementRecorded Kind = "settlement.recorded"
	SettlementAmended  Kind = "settlement.amended"
	SettlementRetired  Kind = "settlement.retired"
)

// Event is a committed change to a group's ledger. Consumers recompute
// balances on receipt; the event carries no balances itself.
type Event struct {
	Kind       Kind           `json:"kind"`
	GroupID    string         `json:"group_id"`
	RecordID   string         `json:"record_id"`
	ActorID    string         `json:"actor_id"`
	Version    models.Version `json:"version"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the default slog logger.
type LogPublisher struct{}

// Publish logs e at info level.
func (LogPublisher) Publish(_ context.Context, e Event) error {
	slog.Info("Ledger event",
		"kind", e.Kind,
		"group_id", e.GroupID,
		"record_id", e.RecordID,
		"actor_id", e.ActorID,
		"version", e.Version,
	)
	return nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish sends e to each publisher in order, even if an earlier one failed.
func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
