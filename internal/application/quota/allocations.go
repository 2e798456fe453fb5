package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocationService manages allocation override records. Unlike the
// enforcement path, administrative validation is strict: an allocation
// that exceeds its parent's effective limit is rejected synchronously,
// never silently downgraded.
type AllocationService struct {
	planRepo  quota.PlanRepository
	allocRepo quota.AllocationRepository
	logger    *zap.Logger
}

// NewAllocationService creates an allocation administration service
func NewAllocationService(planRepo quota.PlanRepository, allocRepo quota.AllocationRepository, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		planRepo:  planRepo,
		allocRepo: allocRepo,
		logger:    logger,
	}
}

// SetDepartmentAllocation creates or replaces the allocation for a
// department. Each field the override sets must fit within the
// organization plan's limit for that resource.
func (s *AllocationService) SetDepartmentAllocation(
	ctx context.Context,
	orgID uuid.UUID,
	orgPlanID string,
	departmentID uuid.UUID,
	actorID uuid.UUID,
	limits quota.LimitOverride,
	mode quota.AllocationMode,
) (*quota.Allocation, error) {
	parent, err := s.planLimits(ctx, orgPlanID)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstParent(limits, parent); err != nil {
		return nil, err
	}

	existing, err := s.allocRepo.FindDepartmentAllocation(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := existing.Update(limits, mode); err != nil {
			return nil, err
		}
		if err := s.allocRepo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	allocation, err := quota.NewDepartmentAllocation(orgID, departmentID, actorID, limits, mode)
	if err != nil {
		return nil, err
	}
	if err := s.allocRepo.Save(ctx, allocation); err != nil {
		return nil, err
	}

	s.logger.Info("Department allocation created",
		zap.String("organization_id", orgID.String()),
		zap.String("department_id", departmentID.String()),
		zap.String("mode", mode.String()))
	return allocation, nil
}

// SetMemberAllocation creates or replaces the allocation for one
// member of a department. Each field the override sets must fit within
// the department's effective limit, which is the organization plan
// merged with the department's own allocation.
func (s *AllocationService) SetMemberAllocation(
	ctx context.Context,
	orgID uuid.UUID,
	orgPlanID string,
	departmentID uuid.UUID,
	userID uuid.UUID,
	actorID uuid.UUID,
	limits quota.LimitOverride,
	mode quota.AllocationMode,
) (*quota.Allocation, error) {
	parent, err := s.planLimits(ctx, orgPlanID)
	if err != nil {
		return nil, err
	}
	deptAlloc, err := s.allocRepo.FindDepartmentAllocation(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if deptAlloc != nil {
		parent = quota.MergeLimits(parent, deptAlloc.Limits)
	}
	if err := validateAgainstParent(limits, parent); err != nil {
		return nil, err
	}

	existing, err := s.allocRepo.FindMemberAllocation(ctx, userID, departmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := existing.Update(limits, mode); err != nil {
			return nil, err
		}
		if err := s.allocRepo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	allocation, err := quota.NewMemberAllocation(orgID, departmentID, userID, actorID, limits, mode)
	if err != nil {
		return nil, err
	}
	if err := s.allocRepo.Save(ctx, allocation); err != nil {
		return nil, err
	}

	s.logger.Info("Member allocation created",
		zap.String("department_id", departmentID.String()),
		zap.String("user_id", userID.String()),
		zap.String("mode", mode.String()))
	return allocation, nil
}

// ListByOrganization returns every allocation under an organization
func (s *AllocationService) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*quota.Allocation, error) {
	return s.allocRepo.ListByOrganization(ctx, orgID)
}

// RemoveMemberAllocation deletes the member's override; called when
// the member leaves the department
func (s *AllocationService) RemoveMemberAllocation(ctx context.Context, userID, departmentID uuid.UUID) error {
	return s.allocRepo.DeleteForMember(ctx, userID, departmentID)
}

// RemoveDepartmentAllocations deletes the department's override and
// every member override under it; called when the department is removed
func (s *AllocationService) RemoveDepartmentAllocations(ctx context.Context, departmentID uuid.UUID) error {
	return s.allocRepo.DeleteForDepartment(ctx, departmentID)
}

// planLimits loads a plan's limit set. Administrative operations do
// not fail open: a missing plan is an error here.
func (s *AllocationService) planLimits(ctx context.Context, planID string) (quota.LimitSet, error) {
	plan, err := s.planRepo.FindByPlanID(ctx, planID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return quota.LimitSet{}, shared.NewDomainError("PLAN_NOT_FOUND", fmt.Sprintf("Plan %q is not configured", planID))
		}
		return quota.LimitSet{}, err
	}
	return plan.Limits, nil
}

// validateAgainstParent rejects override fields that exceed the
// parent's ceiling. Unlimited parent fields accept anything; an
// unlimited child field under a limited parent is rejected.
func validateAgainstParent(limits quota.LimitOverride, parent quota.LimitSet) error {
	for _, kind := range quota.LimitedKinds() {
		v := limits.ValueFor(kind)
		if v == nil {
			continue
		}
		parentLimit := parent.ValueFor(kind)
		if parentLimit == quota.Unlimited {
			continue
		}
		if *v == quota.Unlimited || *v > parentLimit {
			return shared.NewDomainError(
				"ALLOCATION_EXCEEDS_PARENT",
				fmt.Sprintf("%s allocation exceeds the parent limit of %d", kind.DisplayName(), parentLimit),
			)
		}
	}
	return nil
}
