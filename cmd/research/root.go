package main

import (
	"fmt"
	"os"

	"github.com/researchcli/research/internal/config"
	"github.com/researchcli/research/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "Research CLI",
	Long:  `Research is a conversational agent for the terminal with pluggable model providers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Log.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.research/config.yaml)")
	rootCmd.PersistentFlags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("models.default", config.DefaultModel, "model for new sessions")
	rootCmd.PersistentFlags().String("models.fallback", config.DefaultFallbackModel, "model to fall back to on quota errors")
	rootCmd.PersistentFlags().Bool("session.stream", true, "stream model output")
	rootCmd.PersistentFlags().Int("session.max_turns", config.DefaultMaxTurns, "model call ceiling per user input")
	rootCmd.PersistentFlags().String("session.timeout", config.DefaultSessionTimeout, "wall-clock budget for a non-interactive run")
}
