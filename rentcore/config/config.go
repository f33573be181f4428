package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"subnet-rentd/core/common"
)

// SetupDefaultConfig - setup the default config options that can be overridden via the config file
func SetupDefaultConfig() {
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("settlement.transfer_fee", 10000)
	viper.SetDefault("settlement.lock_fraction_percent", 10)
	viper.SetDefault("settlement.unit_scale", 10000)
	viper.SetDefault("settlement.asset", "SET")
	viper.SetDefault("billing.reference_asset", "XBR")

	viper.SetDefault("external.retry_attempts", 3)
	viper.SetDefault("external.retry_delay", "5s")

	viper.SetDefault("proposal_poll.frequency", "30s")
	viper.SetDefault("billing_burn.frequency", "1h")
}

/*SetupConfig - setup the configuration system */
func SetupConfig(configPath string) {
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()
	viper.SetConfigName("rentd")

	if configPath == "" {
		viper.AddConfigPath("./config")
	} else {
		viper.AddConfigPath(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
}

type Config struct {
	// SelfID is the identity this service presents to external services.
	SelfID common.Identity
	// GovernanceID is the only caller trusted for mutating operations.
	GovernanceID common.Identity

	MainAccount string
	MintAccount string

	TransferFee         common.Coin
	LockFractionPercent uint64
	UnitScale           uint64
	SettlementAsset     string
	BillingAsset        string

	LedgerURL     string
	MintURL       string
	RatesURL      string
	GovernanceURL string
	AuthDirURL    string

	RetryAttempts int
	RetryDelay    time.Duration

	ProposalPollFreq time.Duration
	BillingBurnFreq  time.Duration
}

var Configuration Config

// ReadConfig - populate Configuration from viper after SetupConfig.
func ReadConfig() {
	Configuration.SelfID = common.Identity(viper.GetString("self_id"))
	Configuration.GovernanceID = common.Identity(viper.GetString("governance_id"))

	Configuration.MainAccount = viper.GetString("accounts.main")
	Configuration.MintAccount = viper.GetString("accounts.mint")

	Configuration.TransferFee = common.Coin(viper.GetUint64("settlement.transfer_fee"))
	Configuration.LockFractionPercent = viper.GetUint64("settlement.lock_fraction_percent")
	Configuration.UnitScale = viper.GetUint64("settlement.unit_scale")
	Configuration.SettlementAsset = viper.GetString("settlement.asset")
	Configuration.BillingAsset = viper.GetString("billing.reference_asset")

	Configuration.LedgerURL = viper.GetString("external.ledger_url")
	Configuration.MintURL = viper.GetString("external.mint_url")
	Configuration.RatesURL = viper.GetString("external.rates_url")
	Configuration.GovernanceURL = viper.GetString("external.governance_url")
	Configuration.AuthDirURL = viper.GetString("external.authdir_url")

	Configuration.RetryAttempts = viper.GetInt("external.retry_attempts")
	Configuration.RetryDelay = viper.GetDuration("external.retry_delay")

	Configuration.ProposalPollFreq = viper.GetDuration("proposal_poll.frequency")
	Configuration.BillingBurnFreq = viper.GetDuration("billing_burn.frequency")
}
