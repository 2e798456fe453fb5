package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CounterKey addresses one ephemeral usage counter. The period key is
// part of the key, so rollover happens by key rotation rather than by
// resetting values.
type CounterKey struct {
	Owner     Owner
	Resource  ResourceKind
	PeriodKey string
}

// NewCounterKey builds a counter key for the window containing now
func NewCounterKey(owner Owner, resource ResourceKind, period PeriodType, now time.Time) CounterKey {
	return CounterKey{
		Owner:     owner,
		Resource:  resource,
		PeriodKey: PeriodKey(period, now),
	}
}

// String renders the key in ownerKind:ownerID:resource:periodKey form.
// Stores prepend their own namespace prefix.
func (k CounterKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Owner.Kind, k.Owner.ID, k.Resource, k.PeriodKey)
}

// CounterEntry is one counter surfaced by a period scan
type CounterEntry struct {
	Owner    Owner
	Resource ResourceKind
	Value    int64
}

// ParseCounterKey parses the ownerKind:ownerID:resource:periodKey form
// produced by CounterKey.String
func ParseCounterKey(s string) (CounterKey, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return CounterKey{}, fmt.Errorf("malformed counter key %q", s)
	}

	kind := OwnerKind(parts[0])
	if !kind.IsValid() {
		return CounterKey{}, fmt.Errorf("malformed counter key %q: unknown owner kind", s)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return CounterKey{}, fmt.Errorf("malformed counter key %q: %w", s, err)
	}
	resource := ResourceKind(parts[2])
	if !resource.IsValid() {
		return CounterKey{}, fmt.Errorf("malformed counter key %q: unknown resource", s)
	}
	return CounterKey{
		Owner:     Owner{Kind: kind, ID: id},
		Resource:  resource,
		PeriodKey: parts[3],
	}, nil
}

// CounterStore is the real-time usage counter layer. It decides
// whether an action can proceed right now; the durable ledger trails
// it asynchronously.
type CounterStore interface {
	// Increment atomically adds amount to the counter and returns the
	// new value. Concurrent callers must never lose an update.
	Increment(ctx context.Context, key CounterKey, amount int64) (int64, error)

	// Get returns the counter value, or (0, false, nil) when absent
	Get(ctx context.Context, key CounterKey) (int64, bool, error)

	// ExpireAt sets or refreshes the key's expiry. Called once per
	// period right after the key's first increment; concurrent
	// first-writers racing on the same target instant are harmless.
	ExpireAt(ctx context.Context, key CounterKey, at time.Time) error

	// AdjustGauge adds delta (which may be negative) to a gauge
	// counter, clamping the result at zero, and returns the new value
	AdjustGauge(ctx context.Context, key CounterKey, delta int64) (int64, error)

	// ScanPeriod lists every counter recorded under the given period
	// key. Used by the hourly rollup to find owners with activity.
	ScanPeriod(ctx context.Context, periodKey string) ([]CounterEntry, error)
}
