package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"subnet-rentd/core/common"
	"subnet-rentd/core/lock"
	"subnet-rentd/rentcore/payment"
	"subnet-rentd/rentcore/pricing"
	"subnet-rentd/rentcore/services"
	"subnet-rentd/rentcore/store"
)

const (
	governanceID = common.Identity("governance")
	mainAccount  = "main-account"
	mintAccount  = "mint-subaccount"
	networkFee   = common.Coin(10_000)
)

type transfer struct {
	from, to string
	amount   common.Coin
}

type fakeLedger struct {
	transfers []transfer
	err       error
	// entered/release simulate the suspension point at the ledger-call
	// boundary: Transfer signals entry and parks until released
	entered chan struct{}
	release chan struct{}
	nextRef common.TxnRef
}

func (f *fakeLedger) Transfer(_ context.Context, from, to string, amount, _ common.Coin, _ string) (common.TxnRef, error) {
	if f.entered != nil {
		close(f.entered)
		f.entered = nil
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return 0, f.err
	}
	f.transfers = append(f.transfers, transfer{from, to, amount})
	f.nextRef++
	return f.nextRef, nil
}

type fakeMint struct {
	minted    common.Resource
	notifyErr error
}

func (f *fakeMint) NotifyTopUp(_ context.Context, _ common.TxnRef, _ common.Identity) (common.Resource, error) {
	if f.notifyErr != nil {
		return 0, f.notifyErr
	}
	return f.minted, nil
}

func (f *fakeMint) ConversionRate(_ context.Context) (services.Rate, error) {
	return services.Rate{}, services.ErrRatePending
}

type fakeAuthDir struct {
	updates chan []common.Identity
}

func (f *fakeAuthDir) SetAuthorizedIdentities(_ context.Context, _ common.Identity, subnets []common.Identity) error {
	if f.updates != nil {
		f.updates <- subnets
	}
	return nil
}

type fakeRates struct {
	rate services.Rate
}

func (f *fakeRates) GetRate(_ context.Context, _, _ string, _ common.Timestamp) (services.Rate, error) {
	return f.rate, nil
}

type fixture struct {
	ex      *Executor
	store   *store.Store
	ledger  *fakeLedger
	mint    *fakeMint
	authdir *fakeAuthDir
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.PutConditions("App13CH", &store.RentalConditions{
		Description:       "13-node application subnet, CH",
		Subnet:            "subnet-13ch",
		DailyCost:         835_000_000_000_000,
		InitialPeriodDays: 180,
		BillingPeriodDays: 30,
	}))

	ledger := &fakeLedger{}
	mint := &fakeMint{minted: 42_000_000}
	authdir := &fakeAuthDir{}
	rates := &fakeRates{rate: services.Rate{Scaled: 350_000, Decimals: 4}}

	oracle := pricing.NewOracle(rates, "XBR", "SET", 10_000, 1, time.Millisecond)
	gateway := payment.NewGateway(ledger, mint, authdir, "rentd-self",
		mainAccount, mintAccount, networkFee, 1, time.Millisecond)

	return &fixture{
		ex:      New(st, oracle, gateway, governanceID, 10),
		store:   st,
		ledger:  ledger,
		mint:    mint,
		authdir: authdir,
	}
}

func proposalFor(user common.Identity) services.Proposal {
	return services.Proposal{
		ID:           1,
		User:         user,
		ConditionsID: "App13CH",
		CreatedAt:    1700000042,
	}
}

func (f *fixture) requestCount(t *testing.T) int {
	t.Helper()
	reqs, err := f.store.OpenRequests()
	require.NoError(t, err)
	return len(reqs)
}

func (f *fixture) history(t *testing.T, user common.Identity) []*store.Event {
	t.Helper()
	evs, err := f.store.History(user)
	require.NoError(t, err)
	return evs
}

func TestExecuteRentalRequestSuccess(t *testing.T) {
	f := newFixture(t)

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-ok"))
	require.NoError(t, err)

	// zero requests -> exactly one
	require.Equal(t, 1, f.requestCount(t))
	req, err := f.store.GetRequest("user-ok")
	require.NoError(t, err)
	require.Equal(t, "App13CH", req.ConditionsID)
	// the locked amount is the authority's minted amount, not an estimate
	require.Equal(t, common.Resource(42_000_000), req.LockedResource)

	// exactly one audit event
	evs := f.history(t, "user-ok")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestCreated, evs[0].Kind)

	// App13CH fixture: price = (835e12*180*1e4)/350000/10000, fee subtracted
	require.Len(t, f.ledger.transfers, 2)
	userToMain := f.ledger.transfers[0]
	require.Equal(t, payment.UserSubaccount("user-ok"), userToMain.from)
	require.Equal(t, mainAccount, userToMain.to)
	require.Equal(t, common.Coin(429_428_571_428)-networkFee, userToMain.amount)

	// 10% of the transfer runs through conversion, minus two network fees
	mainToMint := f.ledger.transfers[1]
	require.Equal(t, mainAccount, mainToMint.from)
	require.Equal(t, mintAccount, mainToMint.to)
	require.Equal(t, common.Coin(42_942_856_142)-2*networkFee, mainToMint.amount)
}

func TestExecuteRejectsUntrustedCaller(t *testing.T) {
	f := newFixture(t)

	err := f.ex.ExecuteRentalRequest(context.Background(), "someone-else", proposalFor("user-a"))
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	// protocol violation: no state change, no audit event
	require.Equal(t, 0, f.requestCount(t))
	require.Empty(t, f.history(t, "user-a"))
	require.Empty(t, f.ledger.transfers)
}

func TestExecuteRejectsDuplicateRequest(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.PutRequest(&store.RentalRequest{
		User: "user-dup", ConditionsID: "App37EU",
	}))

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-dup"))
	require.ErrorIs(t, err, ErrRequestExists)

	require.Equal(t, 1, f.requestCount(t))
	evs := f.history(t, "user-dup")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestFailed, evs[0].Kind)
	require.Empty(t, f.ledger.transfers)
}

func TestExecuteMissingConditionsHaltsLoudly(t *testing.T) {
	f := newFixture(t)

	p := proposalFor("user-b")
	p.ConditionsID = "NoSuchEntry"
	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, p)
	require.ErrorIs(t, err, ErrConditionsMissing)

	// catalog inconsistency: halt, no default substituted, no audit event
	require.Equal(t, 0, f.requestCount(t))
	require.Empty(t, f.history(t, "user-b"))
}

func TestExecuteSubnetAlreadyRented(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.PutAgreement(&store.RentalAgreement{
		User: "tenant", Subnet: "subnet-13ch",
	}))

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-c"))
	require.ErrorIs(t, err, ErrSubnetAlreadyRented)

	require.Equal(t, 0, f.requestCount(t))
	evs := f.history(t, "user-c")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestFailed, evs[0].Kind)
	require.Empty(t, f.ledger.transfers)
}

func TestExecuteSubnetAlreadyRequested(t *testing.T) {
	f := newFixture(t)

	// first writer wins
	require.NoError(t, f.store.PutRequest(&store.RentalRequest{
		User: "first-writer", ConditionsID: "App13CH",
	}))

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-d"))
	require.ErrorIs(t, err, ErrSubnetAlreadyRequested)

	evs := f.history(t, "user-d")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestFailed, evs[0].Kind)
	require.Empty(t, f.ledger.transfers)
}

func TestExecuteTransferFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = services.ErrInsufficientFunds

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-e"))
	require.ErrorIs(t, err, ErrRequestFailed)

	// a RequestFailed event is recorded and no RentalRequest exists
	require.Equal(t, 0, f.requestCount(t))
	evs := f.history(t, "user-e")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestFailed, evs[0].Kind)
	require.Contains(t, evs[0].Reason, "insufficient_funds")
}

func TestExecuteConversionFailsForfeitsFunds(t *testing.T) {
	f := newFixture(t)
	f.mint.notifyErr = services.ErrNotifyFailed

	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-f"))
	require.ErrorIs(t, err, ErrRequestFailed)

	require.Equal(t, 0, f.requestCount(t))
	evs := f.history(t, "user-f")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestFailed, evs[0].Kind)
	require.Contains(t, evs[0].Reason, "conversion_notify_failed")

	// the user->main transfer happened and was never reversed: the funds
	// stay with the system, forfeited by design
	require.Len(t, f.ledger.transfers, 2)
	require.Equal(t, mainAccount, f.ledger.transfers[0].to)
	for _, tr := range f.ledger.transfers {
		require.NotEqual(t, payment.UserSubaccount("user-f"), tr.to)
	}
}

func TestExecuteGuardRejectsConcurrentInvocation(t *testing.T) {
	f := newFixture(t)
	f.ledger.entered = make(chan struct{})
	f.ledger.release = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		first <- f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-g"))
	}()

	// wait until the first invocation is suspended inside the ledger call,
	// then run a second one for the same user
	<-f.ledger.entered
	err := f.ex.ExecuteRentalRequest(context.Background(), governanceID, proposalFor("user-g"))
	require.ErrorIs(t, err, lock.ErrAlreadyRunning)

	close(f.ledger.release)
	require.NoError(t, <-first)

	// never two persisted requests for one user, and only the winner's
	// terminal outcome is audited
	require.Equal(t, 1, f.requestCount(t))
	evs := f.history(t, "user-g")
	require.Len(t, evs, 1)
	require.Equal(t, store.EventRequestCreated, evs[0].Kind)
}
