// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port     string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Store    string `mapstructure:"STORE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	DashboardCacheTTL time.Duration `mapstructure:"DASHBOARD_CACHE_TTL"`

	ImportCostRatio  float64 `mapstructure:"IMPORT_COST_RATIO"`
	ExpiringSoonDays int     `mapstructure:"EXPIRING_SOON_DAYS"`

	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	ReconcileRepair   bool          `mapstructure:"RECONCILE_REPAIR"`
	AlertRules        string        `mapstructure:"ALERT_RULES"`

	// Tables owned by other services, counted for the staff, doctor and patient quotas.
	StaffTable   string `mapstructure:"COUNT_TABLE_STAFF"`
	DoctorTable  string `mapstructure:"COUNT_TABLE_DOCTORS"`
	PatientTable string `mapstructure:"COUNT_TABLE_PATIENTS"`
}

var keys = []string{
	"APP_PORT", "APP_ENV", "LOG_LEVEL", "STORE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "JWT_ISSUER",
	"REDIS_URL", "DASHBOARD_CACHE_TTL",
	"IMPORT_COST_RATIO", "EXPIRING_SOON_DAYS",
	"RECONCILE_INTERVAL", "RECONCILE_REPAIR", "ALERT_RULES",
	"COUNT_TABLE_STAFF", "COUNT_TABLE_DOCTORS", "COUNT_TABLE_PATIENTS",
}

// New returns a viper instance with defaults and environment bindings applied.
// Commands bind their flags into it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "pharmaledger")
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("IMPORT_COST_RATIO", 0.60)
	v.SetDefault("EXPIRING_SOON_DAYS", 30)
	v.SetDefault("RECONCILE_INTERVAL", "1h")
	v.SetDefault("RECONCILE_REPAIR", false)
	v.SetDefault("COUNT_TABLE_STAFF", "staff")
	v.SetDefault("COUNT_TABLE_DOCTORS", "doctors")
	v.SetDefault("COUNT_TABLE_PATIENTS", "patients")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the optional .env file and decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	// A missing .env file is fine; the environment wins anyway.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development (APP_ENV=%q)", c.Env)
	}
	if c.ImportCostRatio <= 0 || c.ImportCostRatio > 1 {
		return fmt.Errorf("IMPORT_COST_RATIO must be in (0, 1], got %v", c.ImportCostRatio)
	}
	if c.ExpiringSoonDays < 0 {
		return fmt.Errorf("EXPIRING_SOON_DAYS must not be negative, got %d", c.ExpiringSoonDays)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", c.ReconcileInterval)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// Secret returns the JWT signing secret, with a fixed fallback in development.
func (c *Config) Secret() string {
	if c.JWTSecret == "" && c.IsDev() {
		return "pharmaledger-dev-secret"
	}
	return c.JWTSecret
}
