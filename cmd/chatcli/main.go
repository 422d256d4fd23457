// Command chatcli talks to the dialogue engine from a terminal. Replies
// are shown on screen and never sent to WhatsApp.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"sr-chatbot/internal/bootstrap"
	"sr-chatbot/internal/config"
	"sr-chatbot/internal/infra/observability"
	"sr-chatbot/internal/tui"
)

func main() {
	sender := flag.String("sender", "60120000000", "phone number to chat as")
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The screen belongs to the TUI; logs only go to LOG_FILE when set.
	logger := zap.NewNop()
	if cfg.LogFile != "" {
		logger, err = observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, File: cfg.LogFile, FileOnly: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
	}

	app, err := bootstrap.Build(ctx, cfg, bootstrap.WithoutDelivery(), bootstrap.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close(ctx) }()

	p := tea.NewProgram(tui.New(app.Engine, *sender), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running chat: %v\n", err)
		os.Exit(1)
	}
}
