package quota

import (
	"context"
	"errors"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Resolver computes effective limits by walking the override
// precedence chain: member allocation, department allocation,
// organization plan, personal plan. Configuration lookups that fail
// resolve to the unlimited default rather than propagating: quota
// resolution must never take the platform down with it.
type Resolver struct {
	planRepo  quota.PlanRepository
	allocRepo quota.AllocationRepository
	logger    *zap.Logger
}

// NewResolver creates a limit resolver
func NewResolver(planRepo quota.PlanRepository, allocRepo quota.AllocationRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		planRepo:  planRepo,
		allocRepo: allocRepo,
		logger:    logger,
	}
}

// resolutionContext holds every input the precedence chain can touch,
// fetched once so that batch resolution and single-kind resolution
// cannot diverge.
type resolutionContext struct {
	memberAlloc  *quota.Allocation
	deptAlloc    *quota.Allocation
	orgPlan      *quota.PlanLimits
	personalPlan *quota.PlanLimits
}

// Resolve returns the effective limit for one (owner, resource) pair
func (r *Resolver) Resolve(ctx context.Context, owner quota.OwnerContext, kind quota.ResourceKind) (quota.EffectiveLimit, error) {
	if !kind.IsValid() {
		return quota.EffectiveLimit{}, shared.NewDomainError("INVALID_RESOURCE", "Invalid resource kind")
	}
	rc := r.fetch(ctx, owner)
	return r.resolveKind(rc, owner, kind), nil
}

// ResolveAll resolves every limitable resource kind in one pass over
// configuration storage. Results are identical to calling Resolve for
// each kind individually.
func (r *Resolver) ResolveAll(ctx context.Context, owner quota.OwnerContext) (map[quota.ResourceKind]quota.EffectiveLimit, error) {
	rc := r.fetch(ctx, owner)
	limits := make(map[quota.ResourceKind]quota.EffectiveLimit, len(quota.LimitedKinds()))
	for _, kind := range quota.LimitedKinds() {
		limits[kind] = r.resolveKind(rc, owner, kind)
	}
	return limits, nil
}

// ResolveLimitSet returns the merged limit set for display: the
// owner's base plan composed with the department and member overrides
// that apply to them.
func (r *Resolver) ResolveLimitSet(ctx context.Context, owner quota.OwnerContext) (quota.LimitSet, error) {
	rc := r.fetch(ctx, owner)

	base := quota.UnlimitedLimitSet()
	if owner.InOrganization() && rc.orgPlan != nil {
		base = rc.orgPlan.Limits
	} else if rc.personalPlan != nil {
		base = rc.personalPlan.Limits
	}

	overrides := make([]quota.LimitOverride, 0, 2)
	if rc.deptAlloc != nil {
		overrides = append(overrides, rc.deptAlloc.Limits)
	}
	if rc.memberAlloc != nil {
		overrides = append(overrides, rc.memberAlloc.Limits)
	}
	return quota.MergeLimits(base, overrides...), nil
}

// resolveKind walks the precedence chain for one kind; first match wins
func (r *Resolver) resolveKind(rc resolutionContext, owner quota.OwnerContext, kind quota.ResourceKind) quota.EffectiveLimit {
	if rc.memberAlloc != nil {
		if v := rc.memberAlloc.LimitFor(kind); v != nil {
			return quota.EffectiveLimit{Resource: kind, Limit: *v, Mode: rc.memberAlloc.Mode, Source: quota.SourceMember}
		}
	}
	if rc.deptAlloc != nil {
		if v := rc.deptAlloc.LimitFor(kind); v != nil {
			return quota.EffectiveLimit{Resource: kind, Limit: *v, Mode: rc.deptAlloc.Mode, Source: quota.SourceDepartment}
		}
	}
	if owner.InOrganization() && rc.orgPlan != nil {
		return quota.EffectiveLimit{
			Resource: kind,
			Limit:    rc.orgPlan.Limits.ValueFor(kind),
			Mode:     quota.ModeSoftCap,
			Source:   quota.SourceOrganization,
		}
	}
	if rc.personalPlan != nil {
		return quota.EffectiveLimit{
			Resource: kind,
			Limit:    rc.personalPlan.Limits.ValueFor(kind),
			Mode:     quota.ModeHardCap,
			Source:   quota.SourcePlan,
		}
	}

	// No plan data resolvable at all: defensive unlimited default
	return quota.EffectiveLimit{
		Resource: kind,
		Limit:    quota.Unlimited,
		Mode:     quota.ModeUnlimited,
		Source:   quota.SourcePlan,
	}
}

// fetch gathers allocations and plan limits for an owner. Lookup
// failures are logged and treated as absent.
func (r *Resolver) fetch(ctx context.Context, owner quota.OwnerContext) resolutionContext {
	var rc resolutionContext

	if owner.InDepartment() {
		memberAlloc, err := r.allocRepo.FindMemberAllocation(ctx, owner.UserID, *owner.DepartmentID)
		if err != nil {
			r.logger.Warn("Member allocation lookup failed",
				zap.String("user_id", owner.UserID.String()),
				zap.String("department_id", owner.DepartmentID.String()),
				zap.Error(err))
		} else {
			rc.memberAlloc = memberAlloc
		}

		deptAlloc, err := r.allocRepo.FindDepartmentAllocation(ctx, *owner.DepartmentID)
		if err != nil {
			r.logger.Warn("Department allocation lookup failed",
				zap.String("department_id", owner.DepartmentID.String()),
				zap.Error(err))
		} else {
			rc.deptAlloc = deptAlloc
		}
	}

	if owner.InOrganization() && owner.OrganizationPlanID != "" {
		rc.orgPlan = r.lookupPlan(ctx, owner.OrganizationPlanID)
	}
	if owner.PlanID != "" {
		rc.personalPlan = r.lookupPlan(ctx, owner.PlanID)
	}
	return rc
}

func (r *Resolver) lookupPlan(ctx context.Context, planID string) *quota.PlanLimits {
	plan, err := r.planRepo.FindByPlanID(ctx, planID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("Plan limits lookup failed", zap.String("plan_id", planID), zap.Error(err))
		}
		return nil
	}
	return plan
}
