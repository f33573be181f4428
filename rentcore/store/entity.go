package store

import (
	"subnet-rentd/core/common"
)

// Entity format versions. Every persisted value carries its version so the
// store survives in-place upgrades of the hosting service.
const (
	ConditionsVersion = 1
	RequestVersion    = 1
	AgreementVersion  = 1
	BillingVersion    = 1
	EventVersion      = 1
)

// RentalConditions is one catalog entry. Immutable once referenced by an
// open request, except through the explicit catalog-update path.
type RentalConditions struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	// Subnet binds the conditions to one target subnet; empty means the
	// subnet is chosen later, at agreement time.
	Subnet common.Identity `json:"subnet,omitempty"`
	// DailyCost is quoted in billing-reference units.
	DailyCost         common.Coin `json:"daily_cost"`
	InitialPeriodDays uint32      `json:"initial_period_days"`
	BillingPeriodDays uint32      `json:"billing_period_days"`
}

// RentalRequest is an open rental request. At most one per user.
type RentalRequest struct {
	Version        int              `json:"version"`
	User           common.Identity  `json:"user"`
	LockedResource common.Resource  `json:"locked_resource"`
	ProposalID     uint64           `json:"proposal_id"`
	ConditionsID   string           `json:"conditions_id"`
	CreatedAt      common.Timestamp `json:"creation_date"`
}

// RentalAgreement is the successor state of a fulfilled request. At most one
// per target subnet.
type RentalAgreement struct {
	Version    int               `json:"version"`
	User       common.Identity   `json:"user"`
	Subnet     common.Identity   `json:"subnet"`
	Authorized []common.Identity `json:"authorized"`
	CreatedAt  common.Timestamp  `json:"creation_date"`
	// Conditions are the effective conditions frozen at agreement time.
	Conditions RentalConditions `json:"conditions"`
}

// BillingRecord exists if and only if the matching RentalAgreement exists.
type BillingRecord struct {
	Version      int              `json:"version"`
	Balance      common.Resource  `json:"balance"`
	CoveredUntil common.Timestamp `json:"covered_until"`
	LastBurned   common.Timestamp `json:"last_burned"`
}

type EventKind string

const (
	EventRequestCreated      EventKind = "rental_request_created"
	EventRequestFailed       EventKind = "rental_request_failed"
	EventAgreementCreated    EventKind = "agreement_created"
	EventAgreementTerminated EventKind = "agreement_terminated"
	EventBillingBurned       EventKind = "billing_burned"
	EventConditionsUpdated   EventKind = "conditions_updated"
)

// Event is one append-only audit record. Never mutated, never deleted.
type Event struct {
	Version   int              `json:"version"`
	ID        string           `json:"id"`
	Subject   common.Identity  `json:"subject"`
	Kind      EventKind        `json:"kind"`
	Reason    string           `json:"reason,omitempty"`
	CreatedAt common.Timestamp `json:"creation_date"`
}
