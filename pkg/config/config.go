package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (event bus transport)
	Redis RedisConfig

	// Regulatory parameters
	Regulatory RegulatoryConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for event publishing.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	// Stream the calculation events are appended to.
	EventStream string
}

// RegulatoryConfig holds the jurisdiction's numeric thresholds and rates.
// Risk weights, provisioning rates and minimum ratios are percent values
// (20 = 20%); model rates are fractions (0.45 = 45%).
type RegulatoryConfig struct {
	// Jurisdiction whose sovereign exposures carry the sovereign risk weight.
	SovereignCountry string

	// Risk weights (percent)
	SovereignRiskWeight       float64
	BankRiskWeight            float64
	CorporateRiskWeight       float64
	PublicSectorRiskWeight    float64
	RetailMortgageRiskWeight  float64
	HighLTVMortgageRiskWeight float64
	RetailOtherRiskWeight     float64

	// SME retail treatment threshold in local currency.
	SMERetailThreshold float64
	// Mortgage LTV boundary between the standard and the override weight.
	MortgageLTVLimit float64

	// IFRS 9 minimum provisioning rates per stage (percent).
	Stage1MinProvision float64
	Stage2MinProvision float64
	Stage3MinProvision float64

	// Model defaults (fractions).
	Stage1DefaultPD float64
	Stage2DefaultPD float64
	Stage3DefaultPD float64
	UnsecuredLGD    float64

	// Capital minimum ratios (percent).
	MinCET1Ratio  float64
	MinTier1Ratio float64
	MinCARRatio   float64

	// Liquidity.
	MinLCRRatio       float64
	DefaultRunOffRate float64
	DefaultInflowRate float64
	InflowCapRate     float64

	// Per-loan fan-out width inside the calculators.
	CalcWorkers int
}

// SchedulerConfig holds cron expressions for the scheduled launches.
type SchedulerConfig struct {
	Enabled      bool
	PeriodicCron string
	MonthlyCron  string
	AnnualCron   string
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			Enabled:     getEnvAsBool("REDIS_ENABLED", true),
			EventStream: getEnv("REDIS_EVENT_STREAM", "rras:calculation:events"),
		},

		Regulatory: RegulatoryConfig{
			SovereignCountry:          getEnv("REG_SOVEREIGN_COUNTRY", "Lesotho"),
			SovereignRiskWeight:       getEnvAsFloat("REG_SOVEREIGN_RW", 0.0),
			BankRiskWeight:            getEnvAsFloat("REG_BANK_RW", 20.0),
			CorporateRiskWeight:       getEnvAsFloat("REG_CORPORATE_RW", 100.0),
			PublicSectorRiskWeight:    getEnvAsFloat("REG_PUBLIC_SECTOR_RW", 50.0),
			RetailMortgageRiskWeight:  getEnvAsFloat("REG_RETAIL_MORTGAGE_RW", 35.0),
			HighLTVMortgageRiskWeight: getEnvAsFloat("REG_HIGH_LTV_MORTGAGE_RW", 50.0),
			RetailOtherRiskWeight:     getEnvAsFloat("REG_RETAIL_OTHER_RW", 75.0),
			SMERetailThreshold:        getEnvAsFloat("REG_SME_RETAIL_THRESHOLD", 5_000_000),
			MortgageLTVLimit:          getEnvAsFloat("REG_MORTGAGE_LTV_LIMIT", 0.80),
			Stage1MinProvision:        getEnvAsFloat("REG_STAGE1_MIN_PROVISION", 1.0),
			Stage2MinProvision:        getEnvAsFloat("REG_STAGE2_MIN_PROVISION", 25.0),
			Stage3MinProvision:        getEnvAsFloat("REG_STAGE3_MIN_PROVISION", 100.0),
			Stage1DefaultPD:           getEnvAsFloat("REG_STAGE1_DEFAULT_PD", 0.01),
			Stage2DefaultPD:           getEnvAsFloat("REG_STAGE2_DEFAULT_PD", 0.15),
			Stage3DefaultPD:           getEnvAsFloat("REG_STAGE3_DEFAULT_PD", 1.00),
			UnsecuredLGD:              getEnvAsFloat("REG_UNSECURED_LGD", 0.45),
			MinCET1Ratio:              getEnvAsFloat("REG_MIN_CET1_RATIO", 8.0),
			MinTier1Ratio:             getEnvAsFloat("REG_MIN_TIER1_RATIO", 10.0),
			MinCARRatio:               getEnvAsFloat("REG_MIN_CAR_RATIO", 15.0),
			MinLCRRatio:               getEnvAsFloat("REG_MIN_LCR_RATIO", 100.0),
			DefaultRunOffRate:         getEnvAsFloat("REG_DEFAULT_RUN_OFF_RATE", 1.0),
			DefaultInflowRate:         getEnvAsFloat("REG_DEFAULT_INFLOW_RATE", 0.5),
			InflowCapRate:             getEnvAsFloat("REG_INFLOW_CAP_RATE", 0.75),
			CalcWorkers:               getEnvAsInt("REG_CALC_WORKERS", 8),
		},

		Scheduler: SchedulerConfig{
			Enabled:      getEnvAsBool("SCHEDULER_ENABLED", true),
			PeriodicCron: getEnv("SCHEDULER_CRON_PERIODIC", "0 0 2 1,15 * *"),
			MonthlyCron:  getEnv("SCHEDULER_CRON_MONTHLY", "0 0 1 1 * *"),
			AnnualCron:   getEnv("SCHEDULER_CRON_ANNUAL", "0 0 0 1 1 *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Regulatory.SMERetailThreshold <= 0 {
		return fmt.Errorf("REG_SME_RETAIL_THRESHOLD must be positive")
	}
	if c.Regulatory.CalcWorkers < 1 {
		return fmt.Errorf("REG_CALC_WORKERS must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
