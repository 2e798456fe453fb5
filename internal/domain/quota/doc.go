// Package quota provides the domain model for hierarchical resource
// quotas and usage tracking in a multi-tenant automation platform.
//
// This package implements the quota bounded context, which is
// responsible for:
//   - Resolving effective limits through the override precedence
//     chain: member allocation, department allocation, organization
//     plan, personal plan
//   - Modeling period windows (hourly/daily/weekly/monthly) and the
//     period keys that namespace real-time counters
//   - Evaluating allocation-mode policy (UNLIMITED, SOFT_CAP,
//     HARD_CAP, RESERVED) against current usage
//   - Defining the durable usage ledger rows the aggregation pipeline
//     maintains
//
// Key types:
//   - Allocation: an override limit record scoped to a member or
//     department
//   - LimitSet / LimitOverride: typed field-wise limit merging
//   - CounterStore: the real-time counter contract (Redis-backed in
//     production)
//   - UsageLedgerRow: period-keyed durable usage, additive counts plus
//     a storage gauge
//
// The quota domain integrates with:
//   - Identity/organization services: as the source of plan and
//     membership context (OwnerContext)
//   - All resource-owning services: as callers of the enforcement gate
package quota
