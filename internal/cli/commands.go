// Package cli implements the planview command-line interface.
// This file contains shared helper functions used across multiple commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/randalmurphal/planview/internal/config"
	"github.com/randalmurphal/planview/internal/engine"
	pverrors "github.com/randalmurphal/planview/internal/errors"
	"github.com/randalmurphal/planview/internal/events"
	"github.com/randalmurphal/planview/internal/item"
)

// statusStyles colors status labels when stdout is a terminal.
var statusStyles = map[item.Status]lipgloss.Style{
	item.StatusNotStarted: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	item.StatusInPlanning: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	item.StatusReady:      lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	item.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	item.StatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	item.StatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	item.StatusArchived:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true),
}

// colorEnabled returns true when stdout is an interactive terminal.
func colorEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// statusBadge renders a status label, colored when possible.
func statusBadge(s item.Status) string {
	label := s.Label()
	if !colorEnabled() {
		return label
	}
	if style, ok := statusStyles[s]; ok {
		return style.Render(label)
	}
	return label
}

// statusIcon returns a compact glyph for a status.
func statusIcon(s item.Status) string {
	switch s {
	case item.StatusNotStarted:
		return "○"
	case item.StatusInPlanning:
		return "◔"
	case item.StatusReady:
		return "◑"
	case item.StatusInProgress:
		return "◕"
	case item.StatusBlocked:
		return "✗"
	case item.StatusCompleted:
		return "●"
	case item.StatusArchived:
		return "◌"
	default:
		return "?"
	}
}

// truncate shortens a string to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// newLogger builds the CLI logger honoring the config level and flags.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine loads config and constructs an engine for the current project.
func newEngine(projectDir string) (*engine.Engine, *config.Config, error) {
	if err := config.RequireInit(projectDir); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(projectDir)
	if err != nil {
		return nil, nil, err
	}
	eng := engine.New(engine.Options{
		WorkDir:      projectDir,
		Markers:      cfg.MarkerPaths(projectDir),
		Logger:       newLogger(cfg),
		Publisher:    events.NewMemoryPublisher(),
		Debounce:     cfg.Debounce(),
		BulkDebounce: cfg.BulkDebounce(),
		BulkTimeout:  cfg.BulkTimeout(),
	})
	return eng, cfg, nil
}

// printError writes a structured error in its user-friendly form.
func printError(err error) {
	var pe *pverrors.Error
	if errors.As(err, &pe) {
		fmt.Fprintln(os.Stderr, pe.UserMessage())
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
}
