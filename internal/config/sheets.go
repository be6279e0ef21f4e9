package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/contact-sync/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration. Viper keys (config file
// or CSYNC_ env vars) win over the GOOGLE_SHEETS_* variables, which win over
// the defaults.
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	setString := func(dst *string, key, env string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
			return
		}
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	setString(&config.ServiceAccountPath, "sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH")
	setString(&config.ClientID, "sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	setString(&config.ClientSecret, "sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	setString(&config.RefreshToken, "sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	setString(&config.SpreadsheetID, "sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	setString(&config.SpreadsheetName, "sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME")
	setString(&config.ReadRange, "sheets.range", "GOOGLE_SHEETS_RANGE")
	setString(&config.ExportTab, "sheets.export_tab", "GOOGLE_SHEETS_EXPORT_TAB")
	setString(&config.TimeZone, "sheets.time_zone", "GOOGLE_SHEETS_TIME_ZONE")
	setString(&config.TokenFile, "sheets.token_file", "GOOGLE_SHEETS_TOKEN_FILE")

	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)
	if config.TokenFile == "" && config.ClientID != "" && config.RefreshToken == "" {
		config.TokenFile = DefaultTokenFile()
	}
	config.TokenFile = ExpandPath(config.TokenFile)

	if viper.IsSet("sheets.batch_size") {
		config.BatchSize = viper.GetInt("sheets.batch_size")
	}
	if viper.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = viper.GetInt("sheets.retry_attempts")
	}
	if viper.IsSet("sheets.formatting") {
		config.EnableFormatting = viper.GetBool("sheets.formatting")
	}
	config.CountryCode = viper.GetString("reconcile.country_code")

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
