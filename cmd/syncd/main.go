package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/staykit/channel-sync/pkg/app/syncd"
	"github.com/staykit/channel-sync/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadSyncd(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting sync daemon",
		zap.String("config", *configPath),
		zap.Int("workers", cfg.Sync.Workers))

	if err := syncd.NewDaemon(cfg, logger).Run(); err != nil {
		logger.Fatal("Sync daemon exited", zap.Error(err))
	}
}
