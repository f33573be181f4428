package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/logging"
	"subnet-rentd/rentcore/config"
	"subnet-rentd/rentcore/executor"
	"subnet-rentd/rentcore/payment"
	"subnet-rentd/rentcore/pricing"
	"subnet-rentd/rentcore/services"
	"subnet-rentd/rentcore/store"
)

var (
	configDir      = flag.String("config_dir", "./config", "configuration directory")
	dbDir          = flag.String("db_dir", "", "durable store directory")
	logDir         = flag.String("log_dir", "", "log directory")
	deploymentMode = flag.String("deployment_mode", "production", "deployment mode")
)

type catalogEntry struct {
	ID         string `mapstructure:"id"`
	Conditions struct {
		Description       string `mapstructure:"description"`
		Subnet            string `mapstructure:"subnet"`
		DailyCost         uint64 `mapstructure:"daily_cost"`
		InitialPeriodDays uint32 `mapstructure:"initial_period_days"`
		BillingPeriodDays uint32 `mapstructure:"billing_period_days"`
	} `mapstructure:"conditions"`
}

// seedCatalog loads config-declared rental conditions into the store. Entries
// already present are left alone, governance owns them from then on.
func seedCatalog(st *store.Store) error {
	var entries []catalogEntry
	if err := viper.UnmarshalKey("catalog", &entries); err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := st.GetConditions(e.ID); err == nil {
			continue
		}
		cond := &store.RentalConditions{
			Description:       e.Conditions.Description,
			Subnet:            common.Identity(e.Conditions.Subnet),
			DailyCost:         common.Coin(e.Conditions.DailyCost),
			InitialPeriodDays: e.Conditions.InitialPeriodDays,
			BillingPeriodDays: e.Conditions.BillingPeriodDays,
		}
		if err := st.PutConditions(e.ID, cond); err != nil {
			return err
		}
		logging.Logger.Info("Seeded rental conditions", zap.String("id", e.ID))
	}
	return nil
}

func main() {
	flag.Parse()

	config.SetupDefaultConfig()
	config.SetupConfig(*configDir)
	config.ReadConfig()

	if *dbDir == "" {
		fmt.Println("db_dir is required")
		os.Exit(1)
	}
	if *logDir == "" {
		*logDir = "/var/log/rentd"
	}
	logging.InitLogging(*deploymentMode, *logDir, "rentd.log")

	cfg := &config.Configuration

	st, err := store.Open(*dbDir)
	if err != nil {
		logging.Logger.Panic("Failed to open the durable store", zap.Error(err))
	}
	defer st.Close()

	if err := seedCatalog(st); err != nil {
		logging.Logger.Panic("Failed to seed the conditions catalog", zap.Error(err))
	}

	ledger := services.NewLedgerClient(cfg.LedgerURL)
	mint := services.NewMintClient(cfg.MintURL)
	rates := services.NewRatesClient(cfg.RatesURL)
	governance := services.NewGovernanceClient(cfg.GovernanceURL)
	authdir := services.NewAuthDirClient(cfg.AuthDirURL)

	oracle := pricing.NewOracle(rates, cfg.BillingAsset, cfg.SettlementAsset,
		cfg.UnitScale, cfg.RetryAttempts, cfg.RetryDelay)
	gateway := payment.NewGateway(ledger, mint, authdir, cfg.SelfID,
		cfg.MainAccount, cfg.MintAccount, cfg.TransferFee,
		cfg.RetryAttempts, cfg.RetryDelay)
	ex := executor.New(st, oracle, gateway, cfg.GovernanceID, cfg.LockFractionPercent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracle.StartRefreshWorker(ctx)
	ex.StartProposalWorker(ctx, governance, cfg.ProposalPollFreq)
	ex.StartBillingWorker(ctx, cfg.BillingBurnFreq)

	logging.Logger.Info("Subnet rental service started",
		zap.String("governance", string(cfg.GovernanceID)),
		zap.String("main_account", cfg.MainAccount))

	<-ctx.Done()
	logging.Logger.Info("Shutting down")
}
