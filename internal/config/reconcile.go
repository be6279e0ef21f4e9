package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/registry"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

// Reconcile holds the reconciliation settings.
type Reconcile struct {
	SkipPolicy     resolve.SkipPolicy
	CountryCode    string
	CacheTTL       time.Duration
	StaleGrace     time.Duration
	AutoAcceptTier match.Tier
	RetryAttempts  int
}

// LoadReconcileConfig reads the reconcile.* and registry.* keys.
func LoadReconcileConfig() (*Reconcile, error) {
	config := &Reconcile{
		CountryCode:   normalize.DefaultCountryCode,
		CacheTTL:      registry.DefaultTTL,
		RetryAttempts: 3,
	}

	tier, ok := match.ParseTier(viper.GetString("reconcile.auto_accept_tier"))
	if !ok || tier == match.TierExact {
		return nil, fmt.Errorf("%w: auto accept tier %q (want high, medium or low)",
			common.ErrInvalidConfig, viper.GetString("reconcile.auto_accept_tier"))
	}
	config.AutoAcceptTier = tier

	policy, err := resolve.ParseSkipPolicy(viper.GetString("reconcile.skip_policy"))
	if err != nil {
		return nil, err
	}
	config.SkipPolicy = policy

	if v := viper.GetString("reconcile.country_code"); v != "" {
		if normalize.Phone(v) == "" {
			return nil, fmt.Errorf("%w: country code %q", common.ErrInvalidConfig, v)
		}
		config.CountryCode = normalize.Phone(v)
	}

	if viper.IsSet("registry.cache_ttl") {
		config.CacheTTL = viper.GetDuration("registry.cache_ttl")
	}
	if viper.IsSet("registry.stale_grace") {
		config.StaleGrace = viper.GetDuration("registry.stale_grace")
	}
	if viper.IsSet("registry.retry_attempts") {
		config.RetryAttempts = viper.GetInt("registry.retry_attempts")
	}

	if config.CacheTTL <= 0 {
		return nil, fmt.Errorf("%w: cache ttl must be positive", common.ErrInvalidConfig)
	}
	if config.StaleGrace < 0 || config.RetryAttempts < 1 {
		return nil, fmt.Errorf("%w: stale grace cannot be negative and retry attempts must be at least 1", common.ErrInvalidConfig)
	}
	return config, nil
}
