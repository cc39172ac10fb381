package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/researchcli/research/internal/config"
	"github.com/researchcli/research/internal/orchestrator"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Send one prompt and print the reply",
	Long: `Run sends a single prompt through the agent and exits. The prompt comes
from --prompt, the arguments, or stdin, in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			prompt = strings.TrimSpace(strings.Join(args, " "))
		}
		if prompt == "" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read prompt from stdin: %w", err)
			}
			prompt = strings.TrimSpace(string(data))
		}
		if prompt == "" {
			return fmt.Errorf("no prompt given")
		}

		timeout, err := config.DurationOrDefault(cfg.Session.Timeout, config.DefaultSessionTimeout)
		if err != nil {
			return fmt.Errorf("invalid session timeout: %w", err)
		}

		// Hard wall-clock stop. A wedged provider connection must not keep
		// a scripted invocation alive forever.
		watchdog := time.AfterFunc(timeout, func() {
			slog.Error("Session timeout exceeded", "timeout", timeout)
			fmt.Fprintln(os.Stderr, "session timeout exceeded")
			os.Exit(1)
		})
		defer watchdog.Stop()

		sig := NewSignalHandler(cmd.Context())
		sig.Start()
		defer sig.Stop()

		c, err := buildComponents(sig.Context())
		if err != nil {
			return err
		}
		defer c.Stop()

		sessionID, _ := cmd.Flags().GetString("session")
		var session *orchestrator.Session
		if sessionID != "" {
			session, err = c.store.Load(sessionID)
			if err != nil {
				return fmt.Errorf("resume session %s: %w", sessionID, err)
			}
		} else {
			session = orchestrator.NewSession(cfg.Models.Default)
		}

		_, err = c.engine.RunTurn(sig.Context(), session, prompt, newConsoleSink(os.Stdout))
		fmt.Println()

		if saveErr := c.store.Save(session); saveErr != nil {
			slog.Warn("Failed to persist session", "session", session.ID, "error", saveErr)
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("prompt", "p", "", "prompt text")
	runCmd.Flags().StringP("session", "s", "", "session ID to resume")
}
