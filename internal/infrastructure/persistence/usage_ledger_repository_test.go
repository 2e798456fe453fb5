package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var hourStart = time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)

func newLedgerRow(t *testing.T, owner quota.Owner, periodType quota.PeriodType, periodStart time.Time) *quota.UsageLedgerRow {
	t.Helper()
	row, err := quota.NewUsageLedgerRow(owner, periodType, periodStart)
	require.NoError(t, err)
	return row
}

func ledgerRowCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&UsageLedgerModel{}).Count(&count).Error)
	return count
}

func TestUsageLedgerRepository_UpsertAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewUsageLedgerRepository(db)
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	row := newLedgerRow(t, owner, quota.PeriodHourly, hourStart)
	row.Record(quota.ResourceAPICalls, 12)
	row.Record(quota.ResourceExecutions, 3)
	row.Record(quota.ResourceStorageBytes, 2048)
	require.NoError(t, repo.Upsert(context.Background(), row))

	found, err := repo.Find(context.Background(), owner, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(12), found.APICalls)
	assert.Equal(t, int64(3), found.WorkflowRuns)
	assert.Equal(t, int64(2048), found.StorageUsed)
	assert.Equal(t, owner, found.Owner())
}

func TestUsageLedgerRepository_UpsertOverwritesSamePeriod(t *testing.T) {
	db := newTestDB(t)
	repo := NewUsageLedgerRepository(db)
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	first := newLedgerRow(t, owner, quota.PeriodHourly, hourStart)
	first.Record(quota.ResourceAPICalls, 5)
	require.NoError(t, repo.Upsert(context.Background(), first))

	// a rollup re-run builds a fresh row for the same window
	second := newLedgerRow(t, owner, quota.PeriodHourly, hourStart)
	second.Record(quota.ResourceAPICalls, 8)
	require.NoError(t, repo.Upsert(context.Background(), second))

	found, err := repo.Find(context.Background(), owner, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(8), found.APICalls, "overwrite, not add")
	assert.Equal(t, int64(1), ledgerRowCount(t, db))
}

func TestUsageLedgerRepository_FindAbsentIsNil(t *testing.T) {
	repo := NewUsageLedgerRepository(newTestDB(t))

	found, err := repo.Find(context.Background(),
		quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUsageLedgerRepository_IncrementUsageCreatesAndAdds(t *testing.T) {
	repo := NewUsageLedgerRepository(newTestDB(t))
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceAPICalls, 3))
	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceAPICalls, 4))
	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceErrors, 1))

	found, err := repo.Find(context.Background(), owner, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(7), found.APICalls)
	assert.Equal(t, int64(1), found.Errors)
}

func TestUsageLedgerRepository_IncrementUsageStorageGaugeClamps(t *testing.T) {
	repo := NewUsageLedgerRepository(newTestDB(t))
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceStorageBytes, 100))
	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceStorageBytes, -40))

	found, err := repo.Find(context.Background(), owner, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(60), found.StorageUsed)

	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceStorageBytes, -500))

	found, err = repo.Find(context.Background(), owner, quota.PeriodHourly, hourStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), found.StorageUsed, "gauge clamps at zero")
}

func TestUsageLedgerRepository_IncrementUsageIgnoresNonLedgerKinds(t *testing.T) {
	db := newTestDB(t)
	repo := NewUsageLedgerRepository(db)
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	require.NoError(t, repo.IncrementUsage(context.Background(), owner, quota.PeriodHourly, hourStart, quota.ResourceWorkflows, 1))
	assert.Equal(t, int64(0), ledgerRowCount(t, db))
}

func TestUsageLedgerRepository_ListByPeriod(t *testing.T) {
	repo := NewUsageLedgerRepository(newTestDB(t))
	ownerA := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}
	ownerB := quota.Owner{Kind: quota.OwnerOrganization, ID: uuid.New()}

	for i, owner := range []quota.Owner{ownerA, ownerB} {
		row := newLedgerRow(t, owner, quota.PeriodHourly, hourStart.Add(time.Duration(i)*time.Hour))
		row.Record(quota.ResourceAPICalls, int64(i+1))
		require.NoError(t, repo.Upsert(context.Background(), row))
	}

	// outside the queried window
	late := newLedgerRow(t, ownerA, quota.PeriodHourly, hourStart.Add(5*time.Hour))
	late.Record(quota.ResourceAPICalls, 99)
	require.NoError(t, repo.Upsert(context.Background(), late))

	// a different period type never mixes in
	daily := newLedgerRow(t, ownerA, quota.PeriodDaily, hourStart)
	daily.Record(quota.ResourceAPICalls, 50)
	require.NoError(t, repo.Upsert(context.Background(), daily))

	rows, err := repo.ListByPeriod(context.Background(), quota.PeriodHourly, hourStart, hourStart.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ownerA, rows[0].Owner())
	assert.Equal(t, ownerB, rows[1].Owner())
}

func TestUsageLedgerRepository_ListByOwnerMostRecentFirst(t *testing.T) {
	repo := NewUsageLedgerRepository(newTestDB(t))
	owner := quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}

	for i := 0; i < 3; i++ {
		row := newLedgerRow(t, owner, quota.PeriodHourly, hourStart.Add(time.Duration(i)*time.Hour))
		row.Record(quota.ResourceAPICalls, int64(i))
		require.NoError(t, repo.Upsert(context.Background(), row))
	}

	// another owner's activity in the same window
	other := newLedgerRow(t, quota.Owner{Kind: quota.OwnerUser, ID: uuid.New()}, quota.PeriodHourly, hourStart)
	other.Record(quota.ResourceAPICalls, 7)
	require.NoError(t, repo.Upsert(context.Background(), other))

	rows, err := repo.ListByOwner(context.Background(), owner, quota.PeriodHourly, hourStart, hourStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].PeriodStart.After(rows[1].PeriodStart))
	assert.True(t, rows[1].PeriodStart.After(rows[2].PeriodStart))
}
