package services

import (
	"context"

	"github.com/0chain/errors"

	"subnet-rentd/core/common"
)

// Typed failures the external services report. The codes double as audit
// reason tags once a failure becomes terminal.
var (
	ErrInsufficientFunds   = errors.New("insufficient_funds", "subaccount balance does not cover the transfer")
	ErrBadFee              = errors.New("bad_fee", "transfer fee does not match the network fee")
	ErrDuplicateTransfer   = errors.New("duplicate_transfer", "transfer already executed")
	ErrRateLimited         = errors.New("rate_limited", "exchange-rate service is rate limiting")
	ErrAssetNotFound       = errors.New("asset_not_found", "exchange-rate service does not know the asset pair")
	ErrRatePending         = errors.New("rate_pending", "rate for the requested timestamp is not collected yet")
	ErrInsufficientPayment = errors.New("insufficient_payment", "exchange-rate service rejected the query payment")
	ErrNotifyFailed        = errors.New("notify_failed", "minting authority rejected the top-up notification")
)

// Rate is an exchange rate as a scaled integer, never a float.
type Rate struct {
	Scaled    uint64           `json:"scaled_rate"`
	Decimals  uint32           `json:"decimals"`
	Timestamp common.Timestamp `json:"timestamp"`
}

// Proposal is one adopted rental proposal as listed by the governance
// authority.
type Proposal struct {
	ID           uint64           `json:"id"`
	User         common.Identity  `json:"user"`
	ConditionsID string           `json:"conditions_id"`
	CreatedAt    common.Timestamp `json:"creation_time"`
}

// Ledger moves settlement currency between accounts.
type Ledger interface {
	Transfer(ctx context.Context, from, to string, amount, fee common.Coin, memo string) (common.TxnRef, error)
}

// Mint is the minting authority that converts settlement currency into the
// internal resource.
type Mint interface {
	NotifyTopUp(ctx context.Context, ref common.TxnRef, beneficiary common.Identity) (common.Resource, error)
	ConversionRate(ctx context.Context) (Rate, error)
}

// Rates is the exchange-rate service. A zero timestamp asks for the latest
// collected rate.
type Rates interface {
	GetRate(ctx context.Context, base, quote string, ts common.Timestamp) (Rate, error)
}

// Governance lists adopted rental proposals. This service never produces
// proposals, it only consumes them.
type Governance interface {
	ListAdoptedProposals(ctx context.Context, since common.Timestamp) ([]Proposal, error)
}

// AuthDirectory is the subnet-authorization directory. Overwrite semantics:
// the caller sends the complete subnet list for the identity.
type AuthDirectory interface {
	SetAuthorizedIdentities(ctx context.Context, user common.Identity, subnets []common.Identity) error
}
