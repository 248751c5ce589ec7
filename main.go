package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradelink/audit"
	"tradelink/config"
	"tradelink/exchange"
	"tradelink/logger"
	"tradelink/preparer"
	"tradelink/stream"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Tradelink.Name,
		"version":     cfg.Tradelink.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting tradelink")

	// Missing exchange credentials are fatal, nothing downstream can work.
	if err := cfg.ValidateCredentials(); err != nil {
		log.WithError(err).Error("credential validation failed")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.StartCounterReport(ctx, log, 30*time.Second)

	trail, err := audit.NewTrail(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create audit trail")
		os.Exit(1)
	}

	client := exchange.NewBinance(cfg)
	prep := preparer.New(cfg, client, trail)
	go prep.ResetLoop(ctx)

	manager := stream.NewManager(cfg)
	manager.OnOpen(func() {
		// subscriptions are not replayed across reconnects, reissue here
		if err := manager.Subscribe([]string{"!markPrice@arr@1s"}); err != nil {
			log.WithError(err).Warn("failed to subscribe to mark price stream")
		}
	})
	manager.Connect(ctx)

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()
	manager.Close()

	log.Info("tradelink stopped")
	os.Exit(0)
}
