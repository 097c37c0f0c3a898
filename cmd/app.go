package cmd

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/docchat/docchat/config"
	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	"github.com/ZanzyTHEbar/docchat/docchat/harness"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest"
	"github.com/ZanzyTHEbar/docchat/docchat/ingest/extract"
	"github.com/ZanzyTHEbar/docchat/docchat/logging"
	"github.com/ZanzyTHEbar/docchat/docchat/session"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	gateway  *harness.Gateway
	sessions *session.Manager
}

// buildApp loads configuration and wires the gateway, coordinator and session manager.
// A missing credential surfaces here as config.ErrMissingCredential.
func buildApp(logOut io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	logger := logging.New(cfg.App, logOut)

	factory := harness.NewFactory(cfg, logger)
	gw, err := factory.CreateGateway()
	if err != nil {
		return nil, err
	}

	registry := extract.NewDefaultRegistry(nil)
	coord := ingest.NewCoordinator(registry, factory.CreateCache(), ingest.Config{
		MaxUploadBytes:  cfg.Ingest.MaxUploadBytes,
		CacheTTLSeconds: cfg.Ingest.CacheTTLSeconds,
		Concurrency:     cfg.Ingest.Concurrency,
	}, logger)

	sessions := session.NewManager(gw, coord, logger,
		conversation.WithInstructionTemplate(cfg.LLM.InstructionTemplate))

	return &app{cfg: cfg, logger: logger, gateway: gw, sessions: sessions}, nil
}
