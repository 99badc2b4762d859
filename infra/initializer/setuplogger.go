package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/accrual/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

type levelStyle struct {
	level log.Level
	label string
	color lipgloss.AdaptiveColor
}

var levelStyles = []levelStyle{
	{log.DebugLevel, "DEBU", lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#B39DDB"}},
	{log.InfoLevel, "INFO", lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}},
	{log.WarnLevel, "WARN", lipgloss.AdaptiveColor{Light: "#F5A623", Dark: "#F8C471"}},
	{log.ErrorLevel, "ERRO", lipgloss.AdaptiveColor{Light: "#D0021B", Dark: "#FF6B6B"}},
}

// Keys that get their own colour in text output.
var highlightedKeys = map[string]lipgloss.AdaptiveColor{
	"error":      {Light: "#D0021B", Dark: "#FF6B6B"},
	"account_id": {Light: "#1565C0", Dark: "#64B5F6"},
	"round":      {Light: "#1565C0", Dark: "#64B5F6"},
	"service":    {Light: "#616161", Dark: "#9E9E9E"},
}

func setupLogger(cfg *config.Log) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	styles := log.DefaultStyles()
	for _, ls := range levelStyles {
		styles.Levels[ls.level] = lipgloss.NewStyle().
			SetString(ls.label).
			Bold(true).
			MaxWidth(4).
			Foreground(ls.color)
	}
	for key, color := range highlightedKeys {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Level < 0,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(styles)

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
