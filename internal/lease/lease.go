// Package lease serializes writers that touch the same provider day.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable means the lease backend could not be reached or did not
// answer in time. It is retryable and distinct from a booking conflict.
var ErrUnavailable = errors.New("lease unavailable")

// Key names the unit of mutual exclusion: one provider on one civil date in
// the provider's calendar timezone.
type Key struct {
	ProviderID uuid.UUID
	Date       time.Time
}

func NewKey(providerID uuid.UUID, start time.Time, loc *time.Location) Key {
	local := start.In(loc)
	return Key{
		ProviderID: providerID,
		Date:       time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
	}
}

func (k Key) String() string {
	return k.ProviderID.String() + ":" + k.Date.Format(time.DateOnly)
}

// Locker grants exclusive leases by key. release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type heldKey struct{ key string }

// Hold acquires key unless ctx already carries it, which makes nested holds
// inside one logical transaction a no-op. The returned context marks the key
// as held.
func Hold(ctx context.Context, l Locker, key string) (context.Context, func(), error) {
	if ctx.Value(heldKey{key}) != nil {
		return ctx, func() {}, nil
	}
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, heldKey{key}, true), release, nil
}

// Held reports whether ctx carries a lease on key.
func Held(ctx context.Context, key string) bool {
	return ctx.Value(heldKey{key}) != nil
}
