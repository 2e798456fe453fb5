package quota

// LimitSet holds the full ceiling configuration for an account. Every
// field is a concrete value; -1 means unlimited.
type LimitSet struct {
	MaxWorkflows    int64 `json:"max_workflows"`
	MaxPlugins      int64 `json:"max_plugins"`
	MaxAPICalls     int64 `json:"max_api_calls"`
	MaxStorageBytes int64 `json:"max_storage_bytes"`
	MaxSteps        int64 `json:"max_steps"`
	MaxGateways     int64 `json:"max_gateways"`
	MaxDepartments  int64 `json:"max_departments"`
	MaxMembers      int64 `json:"max_members"`
	MaxExecutions   int64 `json:"max_executions"`
}

// UnlimitedLimitSet returns a limit set with every ceiling disabled
func UnlimitedLimitSet() LimitSet {
	return LimitSet{
		MaxWorkflows:    Unlimited,
		MaxPlugins:      Unlimited,
		MaxAPICalls:     Unlimited,
		MaxStorageBytes: Unlimited,
		MaxSteps:        Unlimited,
		MaxGateways:     Unlimited,
		MaxDepartments:  Unlimited,
		MaxMembers:      Unlimited,
		MaxExecutions:   Unlimited,
	}
}

// ValueFor returns the configured limit for a resource kind.
// Non-limitable kinds report unlimited.
func (s LimitSet) ValueFor(kind ResourceKind) int64 {
	switch kind {
	case ResourceWorkflows:
		return s.MaxWorkflows
	case ResourcePlugins:
		return s.MaxPlugins
	case ResourceAPICalls:
		return s.MaxAPICalls
	case ResourceStorageBytes:
		return s.MaxStorageBytes
	case ResourceSteps:
		return s.MaxSteps
	case ResourceGateways:
		return s.MaxGateways
	case ResourceDepartments:
		return s.MaxDepartments
	case ResourceMembers:
		return s.MaxMembers
	case ResourceExecutions:
		return s.MaxExecutions
	default:
		return Unlimited
	}
}

// LimitOverride is a partial limit set. A nil field means "inherit
// from the base"; a set field wins over the base value. Only the
// fields an allocation schema can express are present: ceilings for
// gateways, departments, members and executions always come from the
// base set.
type LimitOverride struct {
	MaxWorkflows    *int64 `json:"max_workflows,omitempty"`
	MaxPlugins      *int64 `json:"max_plugins,omitempty"`
	MaxAPICalls     *int64 `json:"max_api_calls,omitempty"`
	MaxStorageBytes *int64 `json:"max_storage_bytes,omitempty"`
	MaxSteps        *int64 `json:"max_steps,omitempty"`
}

// ValueFor returns the override value for a kind, or nil when the
// override does not define one (including kinds the override schema
// cannot express).
func (o LimitOverride) ValueFor(kind ResourceKind) *int64 {
	switch kind {
	case ResourceWorkflows:
		return o.MaxWorkflows
	case ResourcePlugins:
		return o.MaxPlugins
	case ResourceAPICalls:
		return o.MaxAPICalls
	case ResourceStorageBytes:
		return o.MaxStorageBytes
	case ResourceSteps:
		return o.MaxSteps
	default:
		return nil
	}
}

// IsEmpty returns true when the override defines no field at all
func (o LimitOverride) IsEmpty() bool {
	return o.MaxWorkflows == nil &&
		o.MaxPlugins == nil &&
		o.MaxAPICalls == nil &&
		o.MaxStorageBytes == nil &&
		o.MaxSteps == nil
}

// MergeLimits composes a base limit set with override sets applied in
// order. Each field is taken from the last override that sets it;
// unset fields fall through to the base. One rule per field, nothing
// duck-typed.
func MergeLimits(base LimitSet, overrides ...LimitOverride) LimitSet {
	merged := base
	for _, o := range overrides {
		if o.MaxWorkflows != nil {
			merged.MaxWorkflows = *o.MaxWorkflows
		}
		if o.MaxPlugins != nil {
			merged.MaxPlugins = *o.MaxPlugins
		}
		if o.MaxAPICalls != nil {
			merged.MaxAPICalls = *o.MaxAPICalls
		}
		if o.MaxStorageBytes != nil {
			merged.MaxStorageBytes = *o.MaxStorageBytes
		}
		if o.MaxSteps != nil {
			merged.MaxSteps = *o.MaxSteps
		}
	}
	return merged
}
