package quota

// ResourceKind identifies a metered platform resource
type ResourceKind string

const (
	// ResourceWorkflows tracks workflow definitions owned by an account
	ResourceWorkflows ResourceKind = "WORKFLOWS"

	// ResourcePlugins tracks plugin executions
	ResourcePlugins ResourceKind = "PLUGINS"

	// ResourceAPICalls tracks inbound API requests
	ResourceAPICalls ResourceKind = "API_CALLS"

	// ResourceStorageBytes tracks storage consumption in bytes
	ResourceStorageBytes ResourceKind = "STORAGE_BYTES"

	// ResourceSteps tracks workflow steps executed
	ResourceSteps ResourceKind = "STEPS"

	// ResourceGateways tracks connected gateways
	ResourceGateways ResourceKind = "GATEWAYS"

	// ResourceDepartments tracks departments within an organization
	ResourceDepartments ResourceKind = "DEPARTMENTS"

	// ResourceMembers tracks organization members
	ResourceMembers ResourceKind = "MEMBERS"

	// ResourceExecutions tracks workflow/API invocations against the
	// monthly execution allowance. Only plans define this limit;
	// allocations cannot override it.
	ResourceExecutions ResourceKind = "EXECUTIONS"

	// ResourceErrors tracks failed executions. Never limited, counted
	// for reporting only.
	ResourceErrors ResourceKind = "ERRORS"
)

// String returns the string representation of ResourceKind
func (r ResourceKind) String() string {
	return string(r)
}

// IsValid returns true if the resource kind is known
func (r ResourceKind) IsValid() bool {
	switch r {
	case ResourceWorkflows,
		ResourcePlugins,
		ResourceAPICalls,
		ResourceStorageBytes,
		ResourceSteps,
		ResourceGateways,
		ResourceDepartments,
		ResourceMembers,
		ResourceExecutions,
		ResourceErrors:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the resource kind
func (r ResourceKind) DisplayName() string {
	switch r {
	case ResourceWorkflows:
		return "Workflows"
	case ResourcePlugins:
		return "Plugin Executions"
	case ResourceAPICalls:
		return "API Calls"
	case ResourceStorageBytes:
		return "Storage"
	case ResourceSteps:
		return "Workflow Steps"
	case ResourceGateways:
		return "Gateways"
	case ResourceDepartments:
		return "Departments"
	case ResourceMembers:
		return "Members"
	case ResourceExecutions:
		return "Executions"
	case ResourceErrors:
		return "Errors"
	default:
		return string(r)
	}
}

// IsGauge returns true if the resource is a point-in-time gauge
// (last-known-value semantics) rather than an accumulating counter
func (r ResourceKind) IsGauge() bool {
	return r == ResourceStorageBytes
}

// IsLimitable returns true if a quota limit can apply to this kind
func (r ResourceKind) IsLimitable() bool {
	return r != ResourceErrors
}

// LimitedKinds returns every resource kind that can carry a limit, in
// stable order. Used by batch resolution and usage summaries.
func LimitedKinds() []ResourceKind {
	return []ResourceKind{
		ResourceWorkflows,
		ResourcePlugins,
		ResourceAPICalls,
		ResourceStorageBytes,
		ResourceSteps,
		ResourceGateways,
		ResourceDepartments,
		ResourceMembers,
		ResourceExecutions,
	}
}
