package quota

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOwnerKind_IsValid(t *testing.T) {
	assert.True(t, OwnerUser.IsValid())
	assert.True(t, OwnerDepartment.IsValid())
	assert.True(t, OwnerOrganization.IsValid())
	assert.False(t, OwnerKind("tenant").IsValid())
	assert.False(t, OwnerKind("").IsValid())
}

func TestOwnerContext_Membership(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	deptID := uuid.New()

	standalone := OwnerContext{UserID: userID, PlanID: "free"}
	assert.False(t, standalone.InOrganization())
	assert.False(t, standalone.InDepartment())

	member := OwnerContext{UserID: userID, OrganizationID: &orgID, DepartmentID: &deptID}
	assert.True(t, member.InOrganization())
	assert.True(t, member.InDepartment())

	nilID := uuid.Nil
	zeroed := OwnerContext{UserID: userID, OrganizationID: &nilID}
	assert.False(t, zeroed.InOrganization())
}

func TestOwnerContext_CounterOwner(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	deptID := uuid.New()
	owner := OwnerContext{UserID: userID, OrganizationID: &orgID, DepartmentID: &deptID}

	t.Run("member limits meter the user", func(t *testing.T) {
		bucket := owner.CounterOwner(SourceMember)
		assert.Equal(t, Owner{Kind: OwnerUser, ID: userID}, bucket)
	})

	t.Run("department limits meter the department", func(t *testing.T) {
		bucket := owner.CounterOwner(SourceDepartment)
		assert.Equal(t, Owner{Kind: OwnerDepartment, ID: deptID}, bucket)
	})

	t.Run("organization limits meter the organization", func(t *testing.T) {
		bucket := owner.CounterOwner(SourceOrganization)
		assert.Equal(t, Owner{Kind: OwnerOrganization, ID: orgID}, bucket)
	})

	t.Run("plan limits meter the user", func(t *testing.T) {
		bucket := owner.CounterOwner(SourcePlan)
		assert.Equal(t, Owner{Kind: OwnerUser, ID: userID}, bucket)
	})

	t.Run("falls back to user when context lacks the source scope", func(t *testing.T) {
		standalone := OwnerContext{UserID: userID}
		assert.Equal(t, Owner{Kind: OwnerUser, ID: userID}, standalone.CounterOwner(SourceDepartment))
		assert.Equal(t, Owner{Kind: OwnerUser, ID: userID}, standalone.CounterOwner(SourceOrganization))
	})
}
