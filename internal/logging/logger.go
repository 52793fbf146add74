package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/affirmation-studio/backend/internal/config"
)

// Setup builds the process logger from cfg and installs it as the default.
func Setup(cfg config.LogConfig) *log.Logger {
	logger := New(os.Stderr, cfg)
	log.SetDefault(logger)
	return logger
}

// New builds a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

// FromContext returns the default logger tagged with the chi request id, if any.
func FromContext(ctx context.Context) *log.Logger {
	logger := log.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return logger.With("request_id", reqID)
	}
	return logger
}
