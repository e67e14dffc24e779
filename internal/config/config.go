package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Veraticus/credit-engine/internal/api"
	"github.com/Veraticus/credit-engine/internal/classifier"
	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/rates"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by viper.
const EnvPrefix = "CREDIT"

// Config is the resolved application configuration.
type Config struct {
	Logging    LoggingConfig
	Database   DatabaseConfig
	Analysis   AnalysisConfig
	Rates      RatesConfig
	Classifier classifier.Config
	Server     api.Config
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Format string
	Level  slog.Level
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// AnalysisConfig holds defaults for analysis runs.
type AnalysisConfig struct {
	MinimumCredit   decimal.Decimal
	ApplyCorrection bool
}

// RatesConfig holds the accumulation method and the central bank client settings.
type RatesConfig struct {
	Method rates.Method
	BCB    rates.BCBConfig
}

// SetDefaults registers default values for every key Load reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", DefaultDatabasePath())

	v.SetDefault("analysis.minimum_credit", "0")
	v.SetDefault("analysis.apply_correction", true)

	cls := classifier.DefaultConfig()
	for category, confidence := range cls.BaseConfidence {
		v.SetDefault("classifier.base_confidence."+string(category), confidence)
	}
	v.SetDefault("classifier.default_confidence", cls.DefaultConfidence)
	v.SetDefault("classifier.full_base_bonus", cls.FullBaseBonus)
	v.SetDefault("classifier.ambiguous_penalty", cls.AmbiguousPenalty)
	v.SetDefault("classifier.review_threshold", cls.ReviewThreshold)
	v.SetDefault("classifier.exemption_citation", cls.ExemptionCitation)

	bcb := rates.DefaultBCBConfig()
	v.SetDefault("rates.method", string(rates.MethodSimple))
	v.SetDefault("rates.bcb.base_url", bcb.BaseURL)
	v.SetDefault("rates.bcb.series", bcb.SeriesCode)
	v.SetDefault("rates.bcb.timeout", bcb.Timeout)
	v.SetDefault("rates.bcb.cache_ttl", bcb.CacheTTL)
	v.SetDefault("rates.bcb.requests_per_second", bcb.RequestsPerSecond)
	v.SetDefault("rates.bcb.burst", bcb.Burst)
	v.SetDefault("rates.bcb.max_attempts", bcb.Retry.MaxAttempts)

	srv := api.DefaultConfig()
	v.SetDefault("server.addr", srv.Addr)
	v.SetDefault("server.allowed_origins", srv.AllowedOrigins)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", filepath.Join(DataDir(), "certs"))
	v.SetDefault("server.tls_hosts", []string{})
}

// Load resolves and validates the configuration held by v.
// Call SetDefaults first so unset keys have usable values.
func Load(v *viper.Viper) (*Config, error) {
	level, err := common.ParseLevel(strings.ToLower(v.GetString("logging.level")))
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(v.GetString("logging.format"))
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, format)
	}

	dbPath := ExpandPath(v.GetString("database.path"))
	if dbPath == "" {
		dbPath = DefaultDatabasePath()
	}

	minimum, err := decimal.NewFromString(strings.TrimSpace(v.GetString("analysis.minimum_credit")))
	if err != nil {
		return nil, fmt.Errorf("%w: analysis.minimum_credit: %w", common.ErrInvalidConfig, err)
	}
	if minimum.IsNegative() {
		return nil, fmt.Errorf("%w: analysis.minimum_credit cannot be negative", common.ErrInvalidConfig)
	}

	method, err := rates.ParseMethod(strings.ToLower(v.GetString("rates.method")))
	if err != nil {
		return nil, err
	}

	cls, err := loadClassifier(v)
	if err != nil {
		return nil, err
	}

	bcb := rates.DefaultBCBConfig()
	bcb.BaseURL = v.GetString("rates.bcb.base_url")
	bcb.SeriesCode = v.GetInt("rates.bcb.series")
	bcb.Timeout = v.GetDuration("rates.bcb.timeout")
	bcb.CacheTTL = v.GetDuration("rates.bcb.cache_ttl")
	bcb.RequestsPerSecond = v.GetFloat64("rates.bcb.requests_per_second")
	bcb.Burst = v.GetInt("rates.bcb.burst")
	if n := v.GetInt("rates.bcb.max_attempts"); n > 0 {
		bcb.Retry.MaxAttempts = n
	}

	srv := api.Config{
		Addr:            v.GetString("server.addr"),
		AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		TLS:             v.GetBool("server.tls"),
		CertDir:         ExpandPath(v.GetString("server.cert_dir")),
		TLSHosts:        v.GetStringSlice("server.tls_hosts"),
	}
	if srv.Addr == "" {
		return nil, fmt.Errorf("%w: server.addr is empty", common.ErrInvalidConfig)
	}

	return &Config{
		Logging:  LoggingConfig{Level: level, Format: format},
		Database: DatabaseConfig{Path: dbPath},
		Analysis: AnalysisConfig{
			MinimumCredit:   minimum,
			ApplyCorrection: v.GetBool("analysis.apply_correction"),
		},
		Rates:      RatesConfig{Method: method, BCB: bcb},
		Classifier: cls,
		Server:     srv,
	}, nil
}

func loadClassifier(v *viper.Viper) (classifier.Config, error) {
	cls := classifier.DefaultConfig()

	base := make(map[model.ServiceCategory]int, len(cls.BaseConfidence))
	for key, raw := range v.GetStringMap("classifier.base_confidence") {
		confidence, err := toPercent(raw)
		if err != nil {
			return cls, fmt.Errorf("%w: classifier.base_confidence.%s: %w", common.ErrInvalidConfig, key, err)
		}
		base[model.ParseCategory(key)] = confidence
	}
	if len(base) > 0 {
		cls.BaseConfidence = base
	}

	cls.DefaultConfidence = v.GetInt("classifier.default_confidence")
	cls.FullBaseBonus = v.GetInt("classifier.full_base_bonus")
	cls.AmbiguousPenalty = v.GetInt("classifier.ambiguous_penalty")
	cls.ReviewThreshold = v.GetInt("classifier.review_threshold")
	cls.ExemptionCitation = v.GetString("classifier.exemption_citation")

	for name, value := range map[string]int{
		"default_confidence": cls.DefaultConfidence,
		"review_threshold":   cls.ReviewThreshold,
	} {
		if value < 0 || value > 100 {
			return cls, fmt.Errorf("%w: classifier.%s must be within 0..100, got %d",
				common.ErrInvalidConfig, name, value)
		}
	}

	return cls, nil
}

func toPercent(raw any) (int, error) {
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("must be within 0..100, got %d", n)
	}
	return n, nil
}
