package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/match"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("DATA", "/srv/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/home/tester", ExpandPath("~"))
	assert.Equal(t, filepath.Join("/home/tester", "keys", "sa.json"), ExpandPath("~/keys/sa.json"))
	assert.Equal(t, "/srv/data/db.sqlite", ExpandPath("$DATA/db.sqlite"))
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/contactsync", dir)
	assert.Equal(t, "/xdg/contactsync/sheets-token.json", DefaultTokenFile())
}

func TestLoadSheetsConfig(t *testing.T) {
	resetViper(t)
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "from-env")

	_, err := LoadSheetsConfig()
	assert.ErrorContains(t, err, "no authentication method configured")

	viper.Set("sheets.service_account_path", "/keys/sa.json")
	viper.Set("sheets.batch_size", 50)
	viper.Set("reconcile.country_code", "44")

	cfg, err := LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "from-env", cfg.SpreadsheetID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "A:Z", cfg.ReadRange)
	assert.Equal(t, "44", cfg.CountryCode)

	viper.Set("sheets.spreadsheet_id", "from-config")
	cfg, err = LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-config", cfg.SpreadsheetID, "viper wins over the environment")
}

func TestLoadSheetsConfig_OAuthTokenFile(t *testing.T) {
	resetViper(t)
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	viper.Set("sheets.client_id", "id")
	viper.Set("sheets.client_secret", "secret")

	cfg, err := LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "/xdg/contactsync/sheets-token.json", cfg.TokenFile)
}

func TestLoadReconcileConfig(t *testing.T) {
	resetViper(t)

	cfg, err := LoadReconcileConfig()
	require.NoError(t, err)
	assert.Equal(t, match.TierNone, cfg.AutoAcceptTier)
	assert.Equal(t, resolve.SkipRegistryIfMatched, cfg.SkipPolicy)
	assert.Equal(t, "91", cfg.CountryCode)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)

	viper.Set("reconcile.auto_accept_tier", "high")
	viper.Set("reconcile.skip_policy", "imported")
	viper.Set("reconcile.country_code", "+1")
	viper.Set("registry.cache_ttl", "30s")
	viper.Set("registry.stale_grace", "1m")

	cfg, err = LoadReconcileConfig()
	require.NoError(t, err)
	assert.Equal(t, match.TierHigh, cfg.AutoAcceptTier)
	assert.Equal(t, resolve.SkipImported, cfg.SkipPolicy)
	assert.Equal(t, "1", cfg.CountryCode)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, time.Minute, cfg.StaleGrace)
}

func TestLoadReconcileConfig_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"reconcile.auto_accept_tier", "exact"},
		{"reconcile.auto_accept_tier", "sometimes"},
		{"reconcile.skip_policy", "keep_everything"},
		{"reconcile.country_code", "abc"},
		{"registry.cache_ttl", "0s"},
		{"registry.retry_attempts", 0},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.value)
			_, err := LoadReconcileConfig()
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}
