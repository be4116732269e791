package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"call-intelligence-go/internal/analysis"
	"call-intelligence-go/internal/config"
	"call-intelligence-go/internal/llm"
	"call-intelligence-go/internal/logger"
	"call-intelligence-go/internal/processor"
	"call-intelligence-go/internal/store"
	"call-intelligence-go/internal/transcription"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

func main() {
	// Help needs no credentials or storage
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load() // loads .env

	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	log := logger.New().WithField("service", "call-intelligence-go")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open record store")
	}
	defer repo.Close()

	d := &deps{
		cfg:  cfg,
		repo: repo,
		proc: processor.New(
			transcription.New(cfg),
			analysis.New(llm.New(cfg), cfg.MockLLM),
			repo,
			cfg.MaxUploadBytes,
		),
	}

	if err := newCLIApp(d).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		repo.Close()
		os.Exit(1)
	}
}
