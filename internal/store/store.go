// Package store persists scheduled reminders.
//
// Reminders are keyed by (owner_id, id): ids are only unique within a
// single owner's namespace, matching the command surface where a user
// can only ever see or cancel their own reminders.
package store

import (
	"context"
	"time"
)

// Reminder is one pending scheduled delivery.
type Reminder struct {
	Owner     string
	ID        string
	Text      string
	DueAt     time.Time // preserves the offset it was created with
	CreatedAt time.Time
}

// Store is the persistence API shared by the request path and the
// scheduler. Implementations must allow concurrent use; mutations for
// the same owner are serialized by the backing database.
type Store interface {
	// Put inserts or replaces a reminder.
	Put(ctx context.Context, r Reminder) error

	// GetAllByOwner returns the owner's reminders ordered by due time.
	GetAllByOwner(ctx context.Context, owner string) ([]Reminder, error)

	// DeleteOne removes a single reminder. It reports false (and no
	// error) when the key does not exist; errors are storage faults.
	DeleteOne(ctx context.Context, owner, id string) (bool, error)

	// DeleteAll removes every reminder the owner has and reports how
	// many rows went away. Zero with a nil error means nothing to do.
	DeleteAll(ctx context.Context, owner string) (int64, error)

	// Due returns up to limit reminders whose due time is at or before
	// now, ordered earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]Reminder, error)

	// NextDue returns the earliest due time across all owners.
	NextDue(ctx context.Context) (time.Time, bool, error)

	// CountPending returns the total number of stored reminders.
	CountPending(ctx context.Context) (int64, error)

	// PruneOlderThan removes reminders whose due time passed before
	// cutoff. Used by maintenance to sweep rows orphaned by a crash
	// mid-delivery.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
