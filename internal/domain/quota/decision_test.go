package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_Unlimited(t *testing.T) {
	limit := EffectiveLimit{Resource: ResourceAPICalls, Limit: Unlimited, Mode: ModeHardCap, Source: SourcePlan}

	d := Evaluate(limit, 1_000_000, 1)

	assert.True(t, d.Allowed)
	assert.False(t, d.IsWarning)
	assert.Equal(t, Unlimited, d.Limit)
}

func TestEvaluate_HardCap(t *testing.T) {
	limit := EffectiveLimit{Resource: ResourceWorkflows, Limit: 10, Mode: ModeHardCap, Source: SourceMember}

	t.Run("allows below limit", func(t *testing.T) {
		d := Evaluate(limit, 5, 1)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Message)
	})

	t.Run("allows reaching the limit exactly", func(t *testing.T) {
		d := Evaluate(limit, 9, 1)
		assert.True(t, d.Allowed)
	})

	t.Run("denies crossing the limit", func(t *testing.T) {
		d := Evaluate(limit, 10, 1)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Message, "limit reached")
	})

	t.Run("denies batch that would cross", func(t *testing.T) {
		d := Evaluate(limit, 8, 3)
		assert.False(t, d.Allowed)
	})

	t.Run("zero limit denies everything", func(t *testing.T) {
		zero := EffectiveLimit{Resource: ResourceWorkflows, Limit: 0, Mode: ModeHardCap, Source: SourceMember}
		d := Evaluate(zero, 0, 1)
		assert.False(t, d.Allowed)
	})
}

func TestEvaluate_SoftCap(t *testing.T) {
	limit := EffectiveLimit{Resource: ResourceAPICalls, Limit: 100, Mode: ModeSoftCap, Source: SourceDepartment}

	t.Run("no warning within limit", func(t *testing.T) {
		d := Evaluate(limit, 50, 1)
		assert.True(t, d.Allowed)
		assert.False(t, d.IsWarning)
	})

	t.Run("warns but allows when crossing", func(t *testing.T) {
		d := Evaluate(limit, 100, 1)
		assert.True(t, d.Allowed)
		assert.True(t, d.IsWarning)
		assert.Contains(t, d.Message, "soft limit")
	})
}

func TestEvaluate_Reserved(t *testing.T) {
	limit := EffectiveLimit{Resource: ResourceSteps, Limit: 4, Mode: ModeReserved, Source: SourceMember}

	assert.True(t, Evaluate(limit, 3, 1).Allowed)
	assert.False(t, Evaluate(limit, 4, 1).Allowed)
}

func TestLevelForUsage(t *testing.T) {
	tests := []struct {
		name     string
		count    int64
		limit    int64
		expected WarningLevel
	}{
		{"unlimited", 999, Unlimited, WarningNone},
		{"zero limit treated as unlimited", 5, 0, WarningNone},
		{"well under", 50, 100, WarningNone},
		{"just under warning", 79, 100, WarningNone},
		{"warning boundary", 80, 100, WarningApproach},
		{"just under critical", 94, 100, WarningApproach},
		{"critical boundary", 95, 100, WarningCritical},
		{"just under blocked", 99, 100, WarningCritical},
		{"blocked boundary", 100, 100, WarningBlocked},
		{"over limit", 130, 100, WarningBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevelForUsage(tt.count, tt.limit))
		})
	}
}

func TestNewUsageSnapshot(t *testing.T) {
	t.Run("unlimited", func(t *testing.T) {
		limit := EffectiveLimit{Resource: ResourceAPICalls, Limit: Unlimited, Mode: ModeUnlimited, Source: SourcePlan}
		s := NewUsageSnapshot(limit, 500)

		assert.Equal(t, int64(500), s.Current)
		assert.Equal(t, Unlimited, s.Remaining)
		assert.Zero(t, s.Percent)
		assert.Equal(t, WarningNone, s.Level)
	})

	t.Run("metered", func(t *testing.T) {
		limit := EffectiveLimit{Resource: ResourceExecutions, Limit: 200, Mode: ModeHardCap, Source: SourcePlan}
		s := NewUsageSnapshot(limit, 190)

		assert.Equal(t, int64(10), s.Remaining)
		assert.InDelta(t, 95.0, s.Percent, 0.001)
		assert.Equal(t, WarningCritical, s.Level)
	})

	t.Run("remaining clamps at zero when over limit", func(t *testing.T) {
		limit := EffectiveLimit{Resource: ResourceExecutions, Limit: 100, Mode: ModeSoftCap, Source: SourcePlan}
		s := NewUsageSnapshot(limit, 150)

		assert.Zero(t, s.Remaining)
		assert.Equal(t, WarningBlocked, s.Level)
	})
}
