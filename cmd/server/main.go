package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/app"
	"github.com/medieye/med-reminder/internal/config"
	"github.com/medieye/med-reminder/internal/logger"
	"github.com/medieye/med-reminder/internal/notify"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		if err := keygen(); err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Error("server error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// keygen writes a fresh VAPID key pair to the configured key files.
func keygen() error {
	files, err := config.LoadKeyFiles()
	if err != nil {
		return err
	}
	priv, pub, err := notify.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	if err := config.WriteVAPIDKeys(files.VAPIDPrivateKeyFile, files.VAPIDPublicKeyFile, config.VAPIDKeys{PublicKey: pub, PrivateKey: priv}); err != nil {
		return err
	}
	fmt.Printf("wrote %s and %s\npublic key: %s\n", files.VAPIDPrivateKeyFile, files.VAPIDPublicKeyFile, pub)
	return nil
}
