package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/rates"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/data")

	cfg, err := Load(newViper(t, nil))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, filepath.Join("/tmp/data", "credit", "credit.db"), cfg.Database.Path)
	assert.True(t, cfg.Analysis.MinimumCredit.IsZero())
	assert.True(t, cfg.Analysis.ApplyCorrection)
	assert.Equal(t, rates.MethodSimple, cfg.Rates.Method)
	assert.Equal(t, rates.SelicMonthlySeries, cfg.Rates.BCB.SeriesCode)
	assert.Equal(t, 75, cfg.Classifier.ReviewThreshold)
	assert.Equal(t, 90, cfg.Classifier.BaseConfidence[model.CategoryMaintenance])
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Server.TLS)
	assert.Equal(t, filepath.Join("/tmp/data", "credit", "certs"), cfg.Server.CertDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load(newViper(t, map[string]any{
		"logging.level":                 "DEBUG",
		"logging.format":                "json",
		"database.path":                 "~/credit/test.db",
		"analysis.minimum_credit":       "10.50",
		"analysis.apply_correction":     false,
		"rates.method":                  "compound",
		"rates.bcb.series":              11,
		"rates.bcb.timeout":             "5s",
		"rates.bcb.max_attempts":        7,
		"classifier.base_confidence":    map[string]any{"Technology": 60, "cleaning": "95"},
		"classifier.review_threshold":   50,
		"classifier.exemption_citation": "exempt",
		"server.addr":                   "127.0.0.1:9090",
		"server.allowed_origins":        []string{"https://app.example.com"},
		"server.shutdown_timeout":       "2s",
	}))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/home/tester/credit/test.db", cfg.Database.Path)
	assert.True(t, decimal.RequireFromString("10.5").Equal(cfg.Analysis.MinimumCredit))
	assert.False(t, cfg.Analysis.ApplyCorrection)
	assert.Equal(t, rates.MethodCompound, cfg.Rates.Method)
	assert.Equal(t, 11, cfg.Rates.BCB.SeriesCode)
	assert.Equal(t, 5*time.Second, cfg.Rates.BCB.Timeout)
	assert.Equal(t, 7, cfg.Rates.BCB.Retry.MaxAttempts)
	assert.Equal(t, map[model.ServiceCategory]int{
		model.CategoryTechnology: 60,
		model.CategoryCleaning:   95,
	}, cfg.Classifier.BaseConfidence)
	assert.Equal(t, 50, cfg.Classifier.ReviewThreshold)
	assert.Equal(t, "exempt", cfg.Classifier.ExemptionCitation)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "log level", values: map[string]any{"logging.level": "loud"}},
		{name: "log format", values: map[string]any{"logging.format": "xml"}},
		{name: "minimum credit not a number", values: map[string]any{"analysis.minimum_credit": "lots"}},
		{name: "negative minimum credit", values: map[string]any{"analysis.minimum_credit": "-1"}},
		{name: "rate method", values: map[string]any{"rates.method": "exotic"}},
		{name: "confidence out of range", values: map[string]any{"classifier.base_confidence": map[string]any{"technology": 120}}},
		{name: "confidence not a number", values: map[string]any{"classifier.base_confidence": map[string]any{"technology": "high"}}},
		{name: "review threshold", values: map[string]any{"classifier.review_threshold": 101}},
		{name: "empty server address", values: map[string]any{"server.addr": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.values))
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("CREDIT_DIR", "/srv/credit")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: "/home/tester"},
		{in: "~/reports", want: "/home/tester/reports"},
		{in: "$CREDIT_DIR/db", want: "/srv/credit/db"},
		{in: "/abs/path", want: "/abs/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDefaultDirs(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	assert.Equal(t, "/home/tester/.config/credit", ConfigDir())
	assert.Equal(t, "/home/tester/.local/share/credit/credit.db", DefaultDatabasePath())

	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg")
	assert.Equal(t, "/etc/xdg/credit", ConfigDir())
}

func TestLoadSheetsConfig(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_SHEETS_CLIENT_ID", "GOOGLE_SHEETS_CLIENT_SECRET", "GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "GOOGLE_SHEETS_SPREADSHEET_ID", "GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(key, "")
	}

	t.Run("missing auth", func(t *testing.T) {
		_, err := LoadSheetsConfig(viper.New())
		require.ErrorIs(t, err, common.ErrMissingConfig)
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/keys/sa.json")
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "env-sheet")

		cfg, err := LoadSheetsConfig(viper.New())
		require.NoError(t, err)
		assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
		assert.Equal(t, "env-sheet", cfg.SpreadsheetID)
		assert.Equal(t, "Tax Credit Report", cfg.SpreadsheetName)
	})

	t.Run("viper wins over environment", func(t *testing.T) {
		t.Setenv("HOME", "/home/tester")
		t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/keys/sa.json")
		t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "env-sheet")

		v := viper.New()
		v.Set("sheets.service_account_path", "~/keys/other.json")
		v.Set("sheets.spreadsheet_id", "config-sheet")
		v.Set("sheets.batch_size", 50)
		v.Set("sheets.enable_formatting", false)

		cfg, err := LoadSheetsConfig(v)
		require.NoError(t, err)
		assert.Equal(t, "/home/tester/keys/other.json", cfg.ServiceAccountPath)
		assert.Equal(t, "config-sheet", cfg.SpreadsheetID)
		assert.Equal(t, 50, cfg.BatchSize)
		assert.False(t, cfg.EnableFormatting)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		v := viper.New()
		v.Set("sheets.service_account_path", "/keys/sa.json")
		v.Set("sheets.batch_size", 0)

		_, err := LoadSheetsConfig(v)
		require.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}
