// Package sheets reads import batches from Google Sheets and exports
// reconciled records back to it.
package sheets

import (
	"fmt"
	"time"
)

// Config holds the configuration for the Google Sheets reader and writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TokenFile          string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	// ReadRange is the A1 range read as the import batch, header row first.
	ReadRange string
	// ExportTab is the tab reconciled records are written to.
	ExportTab   string
	TimeZone    string
	CountryCode string
	BatchSize   int
	// RetryAttempts counts every call, so 1 means no retries.
	RetryAttempts    int
	RetryDelay       time.Duration
	EnableFormatting bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Reconciled Contacts",
		ReadRange:        "A:Z",
		ExportTab:        "Reconciled",
		TimeZone:         "Asia/Kolkata",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
		EnableFormatting: true,
	}
}

// HasOAuth reports whether OAuth2 client credentials are configured.
func (c *Config) HasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && (c.RefreshToken != "" || c.TokenFile != "")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	hasOAuth := c.HasOAuth()
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.ExportTab == "" {
		return fmt.Errorf("export tab cannot be empty")
	}
	return nil
}
