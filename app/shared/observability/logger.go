package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"
	slogmulti "github.com/samber/slog-multi"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Level       string
	Format      string // "text" or "json"
	ServiceName string

	LokiURL      string
	LokiTenantID string
	LokiUsername string
	LokiPassword string
}

// NewLogger builds the process logger. When a Loki URL is set, records are shipped to Loki as well as
// stdout. The returned func flushes and stops the Loki client and must be called on shutdown.
func NewLogger(opts LoggerOptions) (*slog.Logger, func(), error) {
	return newLogger(os.Stdout, opts)
}

func newLogger(w io.Writer, opts LoggerOptions) (*slog.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		stdout = slog.NewJSONHandler(w, handlerOpts)
	} else {
		stdout = slog.NewTextHandler(w, handlerOpts)
	}

	if opts.LokiURL == "" {
		return withService(slog.New(stdout), opts.ServiceName), func() {}, nil
	}

	lokiCfg, err := loki.NewDefaultConfig(opts.LokiURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid loki url: %w", err)
	}
	lokiCfg.TenantID = opts.LokiTenantID
	if opts.LokiUsername != "" {
		lokiCfg.Client.BasicAuth = &promconfig.BasicAuth{
			Username: opts.LokiUsername,
			Password: promconfig.Secret(opts.LokiPassword),
		}
	}

	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create loki client: %w", err)
	}

	lokiHandler := slogloki.Option{Level: level, Client: client}.NewLokiHandler()
	logger := slog.New(slogmulti.Fanout(stdout, lokiHandler))

	return withService(logger, opts.ServiceName), client.Stop, nil
}

func withService(logger *slog.Logger, service string) *slog.Logger {
	if service == "" {
		return logger
	}
	return logger.With(slog.String("service", service))
}

// ParseLevel maps the config level names onto slog levels. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
