package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNow is a fixed Thursday afternoon used by every time-sensitive test
var testNow = time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

type fakePlanRepository struct {
	plans map[string]*quota.PlanLimits
	err   error
}

func newFakePlanRepository() *fakePlanRepository {
	return &fakePlanRepository{plans: make(map[string]*quota.PlanLimits)}
}

func (r *fakePlanRepository) add(planID string, limits quota.LimitSet) {
	r.plans[planID] = &quota.PlanLimits{PlanID: planID, Limits: limits}
}

func (r *fakePlanRepository) FindByPlanID(_ context.Context, planID string) (*quota.PlanLimits, error) {
	if r.err != nil {
		return nil, r.err
	}
	if plan, ok := r.plans[planID]; ok {
		return plan, nil
	}
	return nil, shared.ErrNotFound
}

type fakeAllocationRepository struct {
	mu     sync.Mutex
	allocs map[uuid.UUID]*quota.Allocation
	err    error
}

func newFakeAllocationRepository() *fakeAllocationRepository {
	return &fakeAllocationRepository{allocs: make(map[uuid.UUID]*quota.Allocation)}
}

func (r *fakeAllocationRepository) Save(_ context.Context, allocation *quota.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.allocs[allocation.ID] = allocation
	return nil
}

func (r *fakeAllocationRepository) FindMemberAllocation(_ context.Context, userID, departmentID uuid.UUID) (*quota.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.allocs {
		if a.Scope == quota.ScopeMember && a.DepartmentID == departmentID && a.UserID != nil && *a.UserID == userID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAllocationRepository) FindDepartmentAllocation(_ context.Context, departmentID uuid.UUID) (*quota.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.allocs {
		if a.Scope == quota.ScopeDepartment && a.DepartmentID == departmentID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAllocationRepository) ListByOrganization(_ context.Context, orgID uuid.UUID) ([]*quota.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var result []*quota.Allocation
	for _, a := range r.allocs {
		if a.OrganizationID == orgID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeAllocationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allocs, id)
	return nil
}

func (r *fakeAllocationRepository) DeleteForMember(_ context.Context, userID, departmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.allocs {
		if a.Scope == quota.ScopeMember && a.DepartmentID == departmentID && a.UserID != nil && *a.UserID == userID {
			delete(r.allocs, id)
		}
	}
	return nil
}

func (r *fakeAllocationRepository) DeleteForDepartment(_ context.Context, departmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.allocs {
		if a.DepartmentID == departmentID {
			delete(r.allocs, id)
		}
	}
	return nil
}

// fakeLedger keeps ledger rows in a map keyed the way the real
// repository's unique index is
type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*quota.UsageLedgerRow
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*quota.UsageLedgerRow)}
}

func ledgerKey(owner quota.Owner, periodType quota.PeriodType, periodStart time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%d", owner.Kind, owner.ID, periodType, periodStart.Unix())
}

func (l *fakeLedger) Upsert(_ context.Context, row *quota.UsageLedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *row
	l.rows[ledgerKey(row.Owner(), row.PeriodType, row.PeriodStart)] = &clone
	return nil
}

func (l *fakeLedger) IncrementUsage(_ context.Context, owner quota.Owner, periodType quota.PeriodType, periodStart time.Time, resource quota.ResourceKind, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(owner, periodType, periodStart)
	row, ok := l.rows[key]
	if !ok {
		created, err := quota.NewUsageLedgerRow(owner, periodType, periodStart)
		if err != nil {
			return err
		}
		row = created
		l.rows[key] = row
	}
	if resource.IsGauge() {
		row.AdjustStorageUsed(amount)
		return nil
	}
	row.Record(resource, amount)
	return nil
}

func (l *fakeLedger) Find(_ context.Context, owner quota.Owner, periodType quota.PeriodType, periodStart time.Time) (*quota.UsageLedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[ledgerKey(owner, periodType, periodStart)]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (l *fakeLedger) ListByPeriod(_ context.Context, periodType quota.PeriodType, from, to time.Time) ([]*quota.UsageLedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []*quota.UsageLedgerRow
	for _, row := range l.rows {
		if row.PeriodType != periodType || row.PeriodStart.Before(from) || !row.PeriodStart.Before(to) {
			continue
		}
		clone := *row
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PeriodStart.Before(result[j].PeriodStart) })
	return result, nil
}

func (l *fakeLedger) ListByOwner(_ context.Context, owner quota.Owner, periodType quota.PeriodType, from, to time.Time) ([]*quota.UsageLedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []*quota.UsageLedgerRow
	for _, row := range l.rows {
		if row.Owner() != owner || row.PeriodType != periodType || row.PeriodStart.Before(from) || !row.PeriodStart.Before(to) {
			continue
		}
		clone := *row
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PeriodStart.After(result[j].PeriodStart) })
	return result, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// failingCounterStore errors on every call, simulating an unreachable
// Redis instance
type failingCounterStore struct{}

func (failingCounterStore) Increment(context.Context, quota.CounterKey, int64) (int64, error) {
	return 0, assert.AnError
}

func (failingCounterStore) Get(context.Context, quota.CounterKey) (int64, bool, error) {
	return 0, false, assert.AnError
}

func (failingCounterStore) ExpireAt(context.Context, quota.CounterKey, time.Time) error {
	return assert.AnError
}

func (failingCounterStore) AdjustGauge(context.Context, quota.CounterKey, int64) (int64, error) {
	return 0, assert.AnError
}

func (failingCounterStore) ScanPeriod(context.Context, string) ([]quota.CounterEntry, error) {
	return nil, assert.AnError
}

var (
	_ quota.PlanRepository       = (*fakePlanRepository)(nil)
	_ quota.AllocationRepository = (*fakeAllocationRepository)(nil)
	_ quota.LedgerRepository     = (*fakeLedger)(nil)
	_ quota.CounterStore         = failingCounterStore{}
)
