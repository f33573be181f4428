package executor

import (
	"context"

	"github.com/0chain/errors"
	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/lock"
	"subnet-rentd/core/logging"
	"subnet-rentd/rentcore/payment"
	"subnet-rentd/rentcore/pricing"
	"subnet-rentd/rentcore/services"
	"subnet-rentd/rentcore/store"
)

var (
	// ErrUnauthorizedCaller - a protocol violation, not a domain outcome.
	// No state change, no audit event.
	ErrUnauthorizedCaller = errors.New("unauthorized_caller", "caller is not the governance authority")

	ErrRequestExists          = errors.New("rental_request_exists", "user already has an open rental request")
	ErrSubnetAlreadyRented    = errors.New("subnet_already_rented", "target subnet is covered by an active agreement")
	ErrSubnetAlreadyRequested = errors.New("subnet_already_requested", "an open request already targets these conditions")

	// ErrConditionsMissing - the referenced catalog entry must exist at
	// deployment time; its absence is a catalog inconsistency, not a
	// retryable domain error.
	ErrConditionsMissing = errors.New("conditions_missing", "rental conditions are missing from the catalog")

	ErrRequestFailed = errors.New("request_failed", "rental request execution failed")
)

const rentalRequestOp = "rental_request"

// Executor orchestrates validation, pricing, payment, conversion and
// persistence of rental proposals into one guarded sequence.
type Executor struct {
	store   *store.Store
	oracle  *pricing.Oracle
	gateway *payment.Gateway

	governance common.Identity
	// lockPercent of the transferred amount is converted into the internal
	// resource and locked with the request.
	lockPercent uint64
}

func New(st *store.Store, oracle *pricing.Oracle, gateway *payment.Gateway,
	governance common.Identity, lockPercent uint64) *Executor {
	return &Executor{
		store:       st,
		oracle:      oracle,
		gateway:     gateway,
		governance:  governance,
		lockPercent: lockPercent,
	}
}

// ExecuteRentalRequest runs one adopted rental proposal to its terminal
// outcome. Every terminal outcome except an authorization fault is recorded
// as exactly one audit event for the requesting user.
func (ex *Executor) ExecuteRentalRequest(ctx context.Context, caller common.Identity, p services.Proposal) error {
	if caller != ex.governance {
		return errors.Throw(ErrUnauthorizedCaller, string(caller))
	}

	guard, err := lock.Acquire(string(p.User), rentalRequestOp)
	if err != nil {
		return err
	}
	defer guard.Release()

	if _, err := ex.store.GetRequest(p.User); err == nil {
		return ex.fail(p.User, ErrRequestExists, string(p.User))
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	cond, err := ex.store.GetConditions(p.ConditionsID)
	if err != nil {
		// halt loudly; substituting a default would hide a broken catalog
		logging.Logger.Error("Rental conditions missing from the catalog",
			zap.String("conditions_id", p.ConditionsID), zap.Uint64("proposal", p.ID))
		return errors.Throw(ErrConditionsMissing, p.ConditionsID)
	}

	if cond.Subnet != "" {
		if _, err := ex.store.GetAgreement(cond.Subnet); err == nil {
			return ex.fail(p.User, ErrSubnetAlreadyRented, string(cond.Subnet))
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	// first writer wins, no queueing
	open, err := ex.store.OpenRequests()
	if err != nil {
		return err
	}
	for _, r := range open {
		if r.ConditionsID == p.ConditionsID {
			return ex.fail(p.User, ErrSubnetAlreadyRequested, p.ConditionsID)
		}
	}

	// price at the proposal's creation day, so the result does not depend
	// on when this step actually runs
	price, err := ex.oracle.Price(ctx, p.CreatedAt, cond.DailyCost, cond.InitialPeriodDays)
	if err != nil {
		return ex.fail(p.User, ErrRequestFailed, err.Error())
	}

	transferAmount, err := common.SubCoin(price, ex.gateway.Fee())
	if err != nil {
		return ex.fail(p.User, ErrRequestFailed, err.Error())
	}
	if _, err := ex.gateway.TransferUserToMain(ctx, p.User, transferAmount); err != nil {
		return ex.fail(p.User, ErrRequestFailed, err.Error())
	}

	// From here on the transferred funds stay in the main account even if
	// the conversion fails: an intentional forfeiture, not a bug.
	lockAmount, err := common.MulCoin(transferAmount, ex.lockPercent)
	if err != nil {
		return ex.fail(p.User, ErrRequestFailed, err.Error())
	}
	lockAmount /= 100

	locked, err := ex.gateway.ConvertToResource(ctx, lockAmount)
	if err != nil {
		return ex.fail(p.User, ErrRequestFailed, err.Error())
	}

	req := &store.RentalRequest{
		User:           p.User,
		LockedResource: locked,
		ProposalID:     p.ID,
		ConditionsID:   p.ConditionsID,
		CreatedAt:      p.CreatedAt,
	}
	if err := ex.store.PutRequest(req); err != nil {
		return err
	}

	logging.Logger.Info("Rental request persisted",
		zap.String("user", string(p.User)),
		zap.String("conditions_id", p.ConditionsID),
		zap.Uint64("locked_resource", uint64(locked)))

	return ex.persistEvent(p.User, store.EventRequestCreated, p.ConditionsID)
}

// fail records the terminal failure as one audit event and returns the
// typed reason. The audit log carries the stringified detail; the caller
// only gets the reason tag.
func (ex *Executor) fail(user common.Identity, reason *errors.Error, detail string) error {
	if err := ex.persistEvent(user, store.EventRequestFailed, reason.Code+": "+detail); err != nil {
		logging.Logger.Error("Failed to persist the audit event",
			zap.String("user", string(user)), zap.Error(err))
	}
	return reason
}

func (ex *Executor) persistEvent(subject common.Identity, kind store.EventKind, reason string) error {
	return ex.store.PersistEvent(&store.Event{Kind: kind, Reason: reason}, subject)
}
