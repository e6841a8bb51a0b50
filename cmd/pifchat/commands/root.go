// Package commands defines all Cobra CLI commands for the pifchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/audit"
	"github.com/ralmansi/pifchat/internal/config"
	"github.com/ralmansi/pifchat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// cfg is the configuration resolved by the persistent pre-run hook.
var cfg *config.Config

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pifchat",
		Short: "pifchat — bilingual Q&A over PIF annual reports",
		Long: `pifchat answers Arabic and English questions about Saudi Arabia's Public
Investment Fund, grounded in the fund's published annual reports.

Questions are embedded locally (Ollama), matched against per-report Qdrant
collections, and answered by an LLM behind an OpenAI-compatible proxy. When
the LLM is unavailable, answers fall back to raw report excerpts.

Configuration comes from ~/.pifchat/config.yaml (or --config), with
environment variables always taking precedence.
See 'pifchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			loaded, path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			cfg = loaded
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pifchat/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewCheckCmd(),
		NewVersionCmd(),
	)

	return root
}
