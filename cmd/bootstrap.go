package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/samsaffron/aleph/internal/agent"
	"github.com/samsaffron/aleph/internal/analysis"
	"github.com/samsaffron/aleph/internal/config"
	"github.com/samsaffron/aleph/internal/llm"
	"github.com/samsaffron/aleph/internal/logging"
	"github.com/samsaffron/aleph/internal/ui"
)

func runAgent(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("starting", zap.String("version", Version), zap.Int("models", len(catalog.Models())))

	console := ui.NewConsole(os.Stdout, catalog.AgentName(), ui.ThemeFromConfig(cfg.Theme))
	input := ui.NewLineReader(cfg.Input.HistoryFile)
	defer input.Close()
	console.SetLineInput(input.ReadLine)

	backend, err := llm.NewGeminiBackend(ctx, creds.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}
	client := llm.NewClient(backend, llm.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}, logger)
	client.SetWarnFunc(console.Warning)

	analyzer, err := analysis.New(client, analysis.Options{
		Ignore: cfg.Analysis.Ignore,
		Report: console.Info,
	}, logger)
	if err != nil {
		return &config.ConfigError{Msg: "invalid analysis.ignore", Err: err}
	}

	a := agent.New(agent.Deps{
		Catalog:     catalog,
		Client:      client,
		Analyzer:    analyzer,
		UI:          console,
		Input:       input,
		Logger:      logger,
		HistoryFile: cfg.History.DefaultFile,
	})
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}
