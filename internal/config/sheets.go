package config

import (
	"github.com/Veraticus/credit-engine/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or CREDIT_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	// Environment first so that viper values win below.
	_ = config.LoadFromEnv()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		config.ServiceAccountPath = s
	}
	setString(v, "sheets.client_id", &config.ClientID)
	setString(v, "sheets.client_secret", &config.ClientSecret)
	setString(v, "sheets.refresh_token", &config.RefreshToken)
	setString(v, "sheets.spreadsheet_id", &config.SpreadsheetID)
	setString(v, "sheets.spreadsheet_name", &config.SpreadsheetName)
	setString(v, "sheets.time_zone", &config.TimeZone)
	setString(v, "sheets.currency_pattern", &config.CurrencyPattern)

	if v.IsSet("sheets.batch_size") {
		config.BatchSize = v.GetInt("sheets.batch_size")
	}
	if v.IsSet("sheets.retry_attempts") {
		config.RetryAttempts = v.GetInt("sheets.retry_attempts")
	}
	if v.IsSet("sheets.retry_delay") {
		config.RetryDelay = v.GetDuration("sheets.retry_delay")
	}
	if v.IsSet("sheets.enable_formatting") {
		config.EnableFormatting = v.GetBool("sheets.enable_formatting")
	}

	config.ServiceAccountPath = ExpandPath(config.ServiceAccountPath)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}
