package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/0chain/errors"
	"github.com/lithammer/shortuuid/v3"
	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/logging"
	"subnet-rentd/core/retry"
	"subnet-rentd/rentcore/services"
)

var (
	// ErrConversionTransfer - step (a) of the conversion failed; no funds
	// have moved toward the minting authority.
	ErrConversionTransfer = errors.New("conversion_transfer_failed", "transfer to the minting subaccount failed")

	// ErrConversionNotify - step (b) failed after step (a) moved the funds.
	// The funds sit on the minting subaccount with no resource credited; a
	// later retry of the notification can still recover them. This must not
	// be reported as a transfer failure.
	ErrConversionNotify = errors.New("conversion_notify_failed", "minting authority notification failed")
)

// Gateway executes ledger transfers and the two-step settlement-to-resource
// conversion protocol.
type Gateway struct {
	ledger  services.Ledger
	mint    services.Mint
	authdir services.AuthDirectory

	self        common.Identity
	mainAccount string
	mintAccount string
	fee         common.Coin

	attempts int
	delay    time.Duration
}

func NewGateway(ledger services.Ledger, mint services.Mint, authdir services.AuthDirectory,
	self common.Identity, mainAccount, mintAccount string, fee common.Coin,
	attempts int, delay time.Duration) *Gateway {
	return &Gateway{
		ledger:      ledger,
		mint:        mint,
		authdir:     authdir,
		self:        self,
		mainAccount: mainAccount,
		mintAccount: mintAccount,
		fee:         fee,
		attempts:    attempts,
		delay:       delay,
	}
}

// Fee is the fixed network fee of one ledger transfer.
func (g *Gateway) Fee() common.Coin {
	return g.fee
}

// UserSubaccount derives the deterministic per-user subaccount the user pays
// into before a rental proposal executes.
func UserSubaccount(user common.Identity) string {
	h := sha256.Sum256([]byte("rental-subaccount:" + string(user)))
	return hex.EncodeToString(h[:])
}

// TransferUserToMain moves settlement currency from the user's subaccount to
// the main account. The caller must already have subtracted the network fee
// from amount.
func (g *Gateway) TransferUserToMain(ctx context.Context, user common.Identity, amount common.Coin) (common.TxnRef, error) {
	memo := "rental:" + shortuuid.New()
	return retry.Do(ctx, g.attempts, g.delay, func(ctx context.Context) (common.TxnRef, error) {
		return g.ledger.Transfer(ctx, UserSubaccount(user), g.mainAccount, amount, g.fee, memo)
	})
}

// ConvertToResource runs the two-step conversion protocol: (a) move amount
// minus two network fees onto the minting authority's subaccount, then (b)
// notify the authority, which mints the resource. The minted amount is
// authoritative; the authority applies its own live rate.
func (g *Gateway) ConvertToResource(ctx context.Context, amount common.Coin) (common.Resource, error) {
	doubleFee, err := common.MulCoin(g.fee, 2)
	if err != nil {
		return 0, errors.Throw(ErrConversionTransfer, err.Error())
	}
	sendAmount, err := common.SubCoin(amount, doubleFee)
	if err != nil {
		return 0, errors.Throw(ErrConversionTransfer, err.Error())
	}

	memo := "top-up:" + shortuuid.New()
	ref, err := retry.Do(ctx, g.attempts, g.delay, func(ctx context.Context) (common.TxnRef, error) {
		return g.ledger.Transfer(ctx, g.mainAccount, g.mintAccount, sendAmount, g.fee, memo)
	})
	if err != nil {
		return 0, errors.Throw(ErrConversionTransfer, err.Error())
	}

	minted, err := retry.Do(ctx, g.attempts, g.delay, func(ctx context.Context) (common.Resource, error) {
		return g.mint.NotifyTopUp(ctx, ref, g.self)
	})
	if err != nil {
		return 0, errors.Throw(ErrConversionNotify, err.Error())
	}

	if estimate, rerr := g.mint.ConversionRate(ctx); rerr == nil && estimate.Scaled != 0 {
		logging.Logger.Debug("Conversion settled",
			zap.Uint64("minted", uint64(minted)),
			zap.Uint64("authority_rate", estimate.Scaled),
			zap.Uint32("decimals", estimate.Decimals))
	}

	return minted, nil
}

// SetAuthorization overwrites the directory entry for the user with the
// complete subnet list. Fire-and-forget: failures are logged, never
// propagated, and the directory converges on the next overwrite.
func (g *Gateway) SetAuthorization(ctx context.Context, user common.Identity, subnets []common.Identity) {
	go func() {
		if err := g.authdir.SetAuthorizedIdentities(ctx, user, subnets); err != nil {
			logging.Logger.Error("Failed to update the subnet-authorization directory",
				zap.String("user", string(user)), zap.Error(err))
		}
	}()
}
