// Package commands implements the mood CLI.
package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/config"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/internal/logging"
)

// globals shared by the subcommands of one invocation
type globals struct {
	configPath string
	verbose    bool

	cfg *config.Root
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "mood",
		Short: "Emotion analysis backend for the mental health companion app",
		Long: `mood - text, speech and multimodal emotion analysis.

Text is classified into the 28 GoEmotions labels, speech into the eight
RAVDESS emotions, and both can be fused into a single verdict. Every
analysis is recorded in a local mood history.

Configuration is read from config/<CONFIG_ENV>/config.yaml (or --config)
and can be overridden with MOOD_* environment variables, e.g.
MOOD_SERVER_ADDR=:9000.

Examples:
  # Run the HTTP backend and load the models up front
  mood serve --warm

  # Analyze locally, or through a running backend
  mood analyze text "I finally finished my thesis"
  mood analyze audio --remote http://localhost:8000 note.wav

  # Show and export recent history
  mood history --limit 20 --export-session`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (yaml)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(g),
		newAnalyzeCmd(g),
		newHistoryCmd(g),
		newConfigCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// load reads the configuration and builds the logger once per invocation.
func (g *globals) load(cmd *cobra.Command) error {
	if g.cfg != nil {
		return nil
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	level := cfg.Service.LogLvl
	if g.verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Service.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	g.cfg, g.log = cfg, log
	return nil
}
