package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/samsaffron/aleph/internal/config"
	"github.com/samsaffron/aleph/internal/ui"
)

// Version is set at build time with -ldflags "-X github.com/samsaffron/aleph/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "aleph",
	Short: "Terminal chat agent for Gemini",
	Long: `aleph is an interactive terminal agent for Gemini models.

Everything happens inside the session through slash commands:
  /model                       switch model, keeping the conversation
  /system quant                switch mode (core, quant, debate) or set a custom instruction
  /save notes.json             save the conversation
  /analyze main.go "review"    upload a file and analyze it
  /help                        list every command

The API key is read from GOOGLE_API_KEY (a .env file in the working directory is honored).`,
	Args:              cobra.NoArgs,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	RunE:              runAgent,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		console := ui.NewConsole(os.Stderr, "Aleph", nil)
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			console.Fatal("Configuration Error", err.Error())
		} else {
			console.Fatal("Application Error", err.Error())
		}
		os.Exit(1)
	}
}
