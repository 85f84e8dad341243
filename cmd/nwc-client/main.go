package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	nwc "github.com/lnbits/nwc-client"
)

type appConfig struct {
	PairingURL string `envconfig:"PAIRING_URL" required:"true"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	// Load config from environment variables / .env file
	envFile := ".env"
	if os.Getenv("NWC_ENV_FILE") != "" {
		envFile = os.Getenv("NWC_ENV_FILE")
	}
	godotenv.Load(envFile)
	appCfg := &appConfig{}
	if err := envconfig.Process("nwc", appCfg); err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	logger := log.New()
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	level, err := log.ParseLevel(appCfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	cfg, err := nwc.ParsePairingURL(appCfg.PairingURL)
	if err != nil {
		logger.Fatalf("Bad pairing URL: %v", err)
	}
	logger.Infof("Starting nwc-client. account pubkey: %s relay: %s", cfg.AccountPubkey, cfg.RelayURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := nwc.NewClient(cfg, logger, nwc.Options{})

	info, err := client.Info(ctx)
	if err != nil {
		logger.WithError(err).Error("Could not fetch wallet service info")
	} else {
		logger.WithFields(log.Fields{
			"alias":   info.Alias,
			"network": info.Network,
			"methods": len(info.Methods),
		}).Info("Connected to wallet service")
	}

	if status, err := client.Status(ctx); err != nil {
		logger.WithError(err).Error("Could not fetch balance")
	} else {
		logger.Infof("Wallet balance: %d msat", status.BalanceMsat)
	}

	go func() {
		for checkingID := range client.PaidInvoicesStream() {
			logger.WithField("checking_id", checkingID).Info("Invoice paid")
		}
	}()

	<-ctx.Done()
	client.Shutdown()
	logger.Info("Graceful shutdown completed. Goodbye.")
}
