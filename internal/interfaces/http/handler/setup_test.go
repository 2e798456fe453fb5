package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	quotaapp "github.com/autoflow/backend/internal/application/quota"
	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/infrastructure/cache"
	"github.com/autoflow/backend/internal/infrastructure/persistence"
	"github.com/autoflow/backend/internal/interfaces/http/dto"
	"github.com/autoflow/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPI wires the full request path against SQLite and an in-memory
// counter store
type testAPI struct {
	engine   *gin.Engine
	planRepo *persistence.PlanRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&persistence.PlanLimitsModel{},
		&persistence.AllocationModel{},
		&persistence.UsageLedgerModel{},
	))

	log := zap.NewNop()
	counters := cache.NewMemoryCounterStore()
	planRepo := persistence.NewPlanRepository(db)
	allocRepo := persistence.NewAllocationRepository(db)
	ledgerRepo := persistence.NewUsageLedgerRepository(db)

	resolver := quotaapp.NewResolver(planRepo, allocRepo, log)
	gate := quotaapp.NewGate(resolver, counters, ledgerRepo, log, quotaapp.DefaultGateConfig())
	tracker := quotaapp.NewExecutionTracker(resolver, gate, counters, log)
	service := quotaapp.NewAllocationService(planRepo, allocRepo, log)

	engine := gin.New()
	router.NewRouter(engine).
		Register(NewQuotaHandler(gate, tracker)).
		Register(NewAllocationHandler(service)).
		Setup()

	return &testAPI{engine: engine, planRepo: planRepo}
}

func (api *testAPI) seedPlan(t *testing.T, planID string, mutate func(*quota.LimitSet)) {
	t.Helper()
	limits := quota.UnlimitedLimitSet()
	if mutate != nil {
		mutate(&limits)
	}
	require.NoError(t, api.planRepo.Save(context.Background(), &quota.PlanLimits{PlanID: planID, Limits: limits}))
}

// apiResponse mirrors the response envelope with a raw data payload
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func (api *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()
	require.NotNil(t, resp.Data)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}
