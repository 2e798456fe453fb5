package quota

// Unlimited is the sentinel limit value meaning "no ceiling"
const Unlimited int64 = -1

// AllocationMode governs what happens when usage meets or exceeds a limit
type AllocationMode string

const (
	// ModeUnlimited never blocks and never warns
	ModeUnlimited AllocationMode = "UNLIMITED"

	// ModeSoftCap always allows but flags a warning once exceeded
	ModeSoftCap AllocationMode = "SOFT_CAP"

	// ModeHardCap denies consumption that would exceed the limit
	ModeHardCap AllocationMode = "HARD_CAP"

	// ModeReserved is a guaranteed allocation carved out of a shared
	// pool. At the single-resource check level it behaves like a hard
	// cap; pool accounting is a product-level concern.
	ModeReserved AllocationMode = "RESERVED"
)

// String returns the string representation of AllocationMode
func (m AllocationMode) String() string {
	return string(m)
}

// IsValid returns true if the allocation mode is known
func (m AllocationMode) IsValid() bool {
	switch m {
	case ModeUnlimited, ModeSoftCap, ModeHardCap, ModeReserved:
		return true
	}
	return false
}

// Blocks returns true if the mode denies consumption beyond the limit
func (m AllocationMode) Blocks() bool {
	return m == ModeHardCap || m == ModeReserved
}

// LimitSource identifies which level of the precedence chain produced
// an effective limit
type LimitSource string

const (
	// SourceMember means a member allocation override won
	SourceMember LimitSource = "member"

	// SourceDepartment means a department allocation override won
	SourceDepartment LimitSource = "department"

	// SourceOrganization means the organization's plan supplied the limit
	SourceOrganization LimitSource = "organization"

	// SourcePlan means the user's personal plan supplied the limit
	SourcePlan LimitSource = "plan"
)

// EffectiveLimit is the outcome of precedence resolution for one
// (owner, resource) pair
type EffectiveLimit struct {
	Resource ResourceKind
	Limit    int64 // -1 = unlimited
	Mode     AllocationMode
	Source   LimitSource
}

// IsUnlimited returns true when no ceiling applies
func (e EffectiveLimit) IsUnlimited() bool {
	return e.Limit == Unlimited || e.Mode == ModeUnlimited
}
