package marketdata

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/config"
)

// NewProvider creates the configured bar provider.
func NewProvider(cfg config.DataConfig, logger *logrus.Logger) (Provider, error) {
	switch cfg.Source {
	case "csv":
		return NewCSVProvider(cfg.CSVDir, logger)
	case "http":
		httpCfg := DefaultHTTPProviderConfig(cfg.APIURL, cfg.APIKey)
		if cfg.TimeoutSeconds > 0 {
			httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		if cfg.RetryMax > 0 {
			httpCfg.MaxRetries = cfg.RetryMax
		}
		if cfg.RequestsPerSecond > 0 {
			httpCfg.RequestsPerSecond = cfg.RequestsPerSecond
		}
		return NewHTTPProvider(httpCfg, logger)
	default:
		return nil, fmt.Errorf("unknown market data source: %s", cfg.Source)
	}
}
