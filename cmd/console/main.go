package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

// defaultActions gives the sandbox NPC something to pick in every known state.
var defaultActions = []decision.Action{
	{Name: "Rest", Description: "Take a break."},
	{Name: "Investigate", Description: "Look around carefully."},
	{Name: "Talk", Description: "Engage in conversation."},
	{Name: "Run", Description: "Flee the scene."},
}

func main() {
	defPath := flag.String("npc", "", "NPC definition JSON file (default: a generic villager)")
	logPath := flag.String("log", "console.log", "file to write logs to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// the terminal belongs to the UI, so logs go to a file
	logFile, err := tea.LogToFile(*logPath, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.LogLevel}))

	agent, err := loadAgent(*defPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load NPC: %v\n", err)
		os.Exit(1)
	}

	dispatcher, err := dialogue.NewFromConfig(cfg, log)
	if err != nil {
		log.Warn("Dialogue disabled", "error", err)
		fmt.Fprintf(os.Stderr, "Dialogue disabled: %v\n", err)
		dispatcher = nil
	} else {
		defer dispatcher.Close()
	}

	p := tea.NewProgram(NewConsoleUI(agent, dispatcher, cfg.ContentRating),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func loadAgent(path string) (*npc.Agent, error) {
	if path == "" {
		return npc.New("Villager", defaultActions), nil
	}
	def, err := npc.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return def.Build()
}
