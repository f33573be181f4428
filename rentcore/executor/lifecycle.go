package executor

import (
	"context"

	"github.com/0chain/errors"
	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/lock"
	"subnet-rentd/core/logging"
	"subnet-rentd/rentcore/store"
)

var (
	ErrNoOpenRequest = errors.New("no_open_request", "user has no open rental request to fulfill")
	ErrNoAgreement   = errors.New("no_agreement", "no active agreement for this subnet")
	ErrSubnetMismatch = errors.New("subnet_mismatch", "conditions are bound to a different subnet")

	// ErrConditionsReferenced - conditions are immutable while an open
	// request references them; only the explicit update path below may
	// change unreferenced entries.
	ErrConditionsReferenced = errors.New("conditions_referenced", "conditions are referenced by an open request")
)

const agreementOp = "agreement"

// CreateAgreement fulfills the user's open request: the agreement and its
// billing record are created together, the request is deleted, and the user
// is authorized on the subnet. RentalRequest -> RentalAgreement.
func (ex *Executor) CreateAgreement(ctx context.Context, caller, user, subnet common.Identity) error {
	if caller != ex.governance {
		return errors.Throw(ErrUnauthorizedCaller, string(caller))
	}

	guard, err := lock.Acquire(string(subnet), agreementOp)
	if err != nil {
		return err
	}
	defer guard.Release()

	req, err := ex.store.GetRequest(user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.Throw(ErrNoOpenRequest, string(user))
		}
		return err
	}

	if _, err := ex.store.GetAgreement(subnet); err == nil {
		return errors.Throw(ErrSubnetAlreadyRented, string(subnet))
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	cond, err := ex.store.GetConditions(req.ConditionsID)
	if err != nil {
		logging.Logger.Error("Rental conditions missing from the catalog",
			zap.String("conditions_id", req.ConditionsID))
		return errors.Throw(ErrConditionsMissing, req.ConditionsID)
	}
	if cond.Subnet != "" && cond.Subnet != subnet {
		return errors.Throw(ErrSubnetMismatch, string(subnet))
	}

	now := common.Now()
	agr := &store.RentalAgreement{
		User:       user,
		Subnet:     subnet,
		Authorized: []common.Identity{user},
		CreatedAt:  now,
		Conditions: *cond,
	}
	rec := &store.BillingRecord{
		Balance:      req.LockedResource,
		CoveredUntil: now.AddDays(cond.InitialPeriodDays),
		LastBurned:   now,
	}
	if err := ex.store.CreateAgreementPair(agr, rec, user); err != nil {
		return err
	}

	ex.gateway.SetAuthorization(ctx, user, ex.authorizedSubnets(user))

	logging.Logger.Info("Rental agreement created",
		zap.String("user", string(user)), zap.String("subnet", string(subnet)))

	return ex.persistEvent(user, store.EventAgreementCreated, string(subnet))
}

// Terminate ends the agreement: agreement and billing record are deleted
// together and the directory authorization is revoked.
func (ex *Executor) Terminate(ctx context.Context, caller, subnet common.Identity) error {
	if caller != ex.governance {
		return errors.Throw(ErrUnauthorizedCaller, string(caller))
	}

	guard, err := lock.Acquire(string(subnet), agreementOp)
	if err != nil {
		return err
	}
	defer guard.Release()

	return ex.terminate(ctx, subnet, "terminated by governance")
}

// terminate is the guard-free core shared with the billing worker.
func (ex *Executor) terminate(ctx context.Context, subnet common.Identity, reason string) error {
	agr, err := ex.store.GetAgreement(subnet)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.Throw(ErrNoAgreement, string(subnet))
		}
		return err
	}

	if err := ex.store.DeleteAgreementPair(subnet); err != nil {
		return err
	}

	ex.gateway.SetAuthorization(ctx, agr.User, ex.authorizedSubnets(agr.User))

	logging.Logger.Info("Rental agreement terminated",
		zap.String("user", string(agr.User)), zap.String("subnet", string(subnet)),
		zap.String("reason", reason))

	return ex.persistEvent(agr.User, store.EventAgreementTerminated, reason)
}

// UpdateConditions is the explicit catalog-update path. It refuses to touch
// an entry referenced by an open request and always appends a catalog-level
// audit event.
func (ex *Executor) UpdateConditions(_ context.Context, caller common.Identity, id string, cond *store.RentalConditions) error {
	if caller != ex.governance {
		return errors.Throw(ErrUnauthorizedCaller, string(caller))
	}

	open, err := ex.store.OpenRequests()
	if err != nil {
		return err
	}
	for _, r := range open {
		if r.ConditionsID == id {
			return errors.Throw(ErrConditionsReferenced, id)
		}
	}

	if err := ex.store.PutConditions(id, cond); err != nil {
		return err
	}
	return ex.persistEvent(common.CatalogSubject, store.EventConditionsUpdated, id)
}

// authorizedSubnets computes the user's complete subnet list from the
// agreements region. The directory has overwrite semantics, so the list
// must always be complete, never a single subnet.
func (ex *Executor) authorizedSubnets(user common.Identity) []common.Identity {
	agreements, err := ex.store.Agreements()
	if err != nil {
		logging.Logger.Error("Failed to scan agreements for authorization",
			zap.String("user", string(user)), zap.Error(err))
		return nil
	}

	subnets := make([]common.Identity, 0, len(agreements))
	for _, agr := range agreements {
		for _, id := range agr.Authorized {
			if id == user {
				subnets = append(subnets, agr.Subnet)
				break
			}
		}
	}
	return subnets
}
