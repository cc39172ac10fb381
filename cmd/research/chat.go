package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/researchcli/research/internal/llm"
	"github.com/researchcli/research/internal/orchestrator"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		repl := &REPL{
			components: c,
			session:    session,
			reader:     bufio.NewReader(os.Stdin),
			sink:       newConsoleSink(os.Stdout),
		}
		return repl.Start(sig)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "session ID to resume")
}

type REPL struct {
	components *components
	session    *orchestrator.Session
	reader     *bufio.Reader
	sink       *consoleSink
}

func (r *REPL) Start(sig *SignalHandler) error {
	fmt.Printf("Session %s on %s\n", r.session.ID, r.session.Model)
	fmt.Println("Type '/exit' to quit, '/help' for commands.")

	for {
		select {
		case <-sig.Context().Done():
			return nil
		default:
			if err := r.readLine(sig); err != nil {
				if err == io.EOF {
					return nil
				}
				r.sink.Notice(err.Error())
			}
		}
	}
}

func (r *REPL) readLine(sig *SignalHandler) error {
	fmt.Print("> ")
	text, err := r.reader.ReadString('\n')
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return r.handleCommand(sig, text)
	}

	_, err = r.components.engine.RunTurn(sig.Context(), r.session, text, r.sink)
	fmt.Println()

	if saveErr := r.components.store.Save(r.session); saveErr != nil {
		slog.Warn("Failed to persist session", "session", r.session.ID, "error", saveErr)
	}

	return err
}

func (r *REPL) handleCommand(sig *SignalHandler, line string) error {
	fields, err := shlex.Split(strings.TrimPrefix(line, "/"))
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "exit", "quit":
		return io.EOF

	case "help":
		fmt.Println("/model [id]  show or switch the active model")
		fmt.Println("/tokens      count tokens in the session history")
		fmt.Println("/tools       list available tools")
		fmt.Println("/new         start a fresh session")
		fmt.Println("/exit        quit")
		return nil

	case "model":
		if len(fields) < 2 {
			fmt.Printf("Active model: %s (provider %s)\n", r.session.Model, llm.Classify(r.session.Model))
			return nil
		}
		model := fields[1]
		if _, err := r.components.registry.Resolve(model); err != nil {
			return err
		}
		r.session.Model = model
		r.sink.Notice(fmt.Sprintf("Switched to %s.", model))
		return nil

	case "tokens":
		count, estimated, err := r.components.engine.TokenCount(sig.Context(), r.session)
		if err != nil {
			return err
		}
		if estimated {
			fmt.Printf("~%d tokens (estimated)\n", count)
		} else {
			fmt.Printf("%d tokens\n", count)
		}
		return nil

	case "tools":
		for _, def := range r.components.runner.Declarations() {
			fmt.Printf("%-12s %s\n", def.Name, def.Description)
		}
		return nil

	case "new":
		r.session = orchestrator.NewSession(cfg.Models.Default)
		r.sink.Notice(fmt.Sprintf("New session %s.", r.session.ID))
		return nil

	default:
		return fmt.Errorf("unknown command: /%s", fields[0])
	}
}
