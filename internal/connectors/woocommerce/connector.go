package woocommerce

import (
	"fmt"
	"strings"

	"catalog/internal/config"
	"catalog/internal/logger"
)

// NewFromConfig builds a client for the store configured in cfg. It fails
// before any network call when the store URL is missing.
func NewFromConfig(cfg *config.Config, logger *logger.Logger) (*Client, error) {
	wc := cfg.WooCommerce
	if err := wc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	if !wc.HasCredentials() {
		logger.Warn("WooCommerce API credentials are not fully configured. Requests may fail if the store is private.")
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = wc.MaxRetries
	retry.InitialBackoff = wc.RetryDelay

	return NewClient(Options{
		BaseURL:        wc.URL,
		ConsumerKey:    wc.ConsumerKey,
		ConsumerSecret: wc.ConsumerSecret,
		Auth:           AuthMode(wc.AuthMode),
		PerPage:        wc.PerPage,
		Timeout:        wc.Timeout,
		VerifyTLS:      wc.VerifyTLS,
		Retry:          retry,
		RateLimit:      wc.RateLimit,
		UserAgent:      UserAgent(cfg.AppName, cfg.AppVersion),
	}, logger)
}

// UserAgent identifies the importer to the store, e.g. "Catalog WooCommerceImporter/1.2".
func UserAgent(appName, appVersion string) string {
	ua := strings.TrimSpace(appName + " WooCommerceImporter")
	if appVersion != "" {
		ua += "/" + appVersion
	}
	return ua
}
