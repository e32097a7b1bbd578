package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

// DefaultAllowedMerchants are the merchant ids ingested when nothing else is configured.
var DefaultAllowedMerchants = []int{9, 12, 15, 10}

// PostgresConfig holds the connection settings for the listing store.
type PostgresConfig struct {
	Host         string `validate:"required"`
	Port         string `validate:"required,numeric"`
	User         string `validate:"required"`
	Password     string
	DBName       string `validate:"required"`
	SSLMode      string `validate:"oneof=disable require verify-ca verify-full prefer allow"`
	MaxOpenConns int    `validate:"min=1"`
}

// DSN renders the lib/pq keyword/value connection string.
func (pc PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig is optional; an empty Addr disables caching and readiness tracking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"min=0"`
}

// Config is the full runtime configuration shared by importSepa and getProducto.
type Config struct {
	Postgres PostgresConfig
	Redis    RedisConfig

	AllowedMerchants []int  `validate:"min=1,dive,min=1"`
	ArchivePath      string `validate:"required"`
	ScratchDir       string
	ImportWorkers    int    `validate:"min=1,max=64"`

	// SuspendForeignKeys disables FK triggers during compaction. Needs a superuser.
	SuspendForeignKeys bool

	APIKey         string
	PushgatewayURL string `validate:"omitempty,url"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	PrettyLogs     bool
	Timezone       string `validate:"required"`

	// DownloadURLs maps time.Weekday (0 = Sunday) to the dataset published that day.
	DownloadURLs map[int]string `validate:"dive,url"`
}

// AllowList returns the configured merchant ids as a lookup set.
func (c *Config) AllowList() models.AllowList {
	return models.NewAllowList(c.AllowedMerchants...)
}

type fileOverlay struct {
	AllowedMerchants []int          `yaml:"allowed_merchants"`
	DownloadURLs     map[int]string `yaml:"download_urls"`
}

// Load reads the configuration from the environment, applies the optional
// YAML overlay named by SEPA_CONFIG_FILE and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Postgres: PostgresConfig{
			Host:         envString("DB_HOST", "localhost"),
			Port:         envString("DB_PORT", "5433"),
			User:         envString("DB_USER", "postgres"),
			Password:     envString("DB_PASSWORD", "postgres"),
			DBName:       envString("DB_DATABASE", envString("DB_NAME", "productos_sepa")),
			SSLMode:      envString("DB_SSLMODE", "disable"),
			MaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", ""),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		ArchivePath:    envString("ARCHIVE_PATH", "data/sepa_data.zip"),
		ScratchDir:     envString("SCRATCH_DIR", os.TempDir()),
		ImportWorkers:  envInt("IMPORT_WORKERS", 1),
		APIKey:         strings.Trim(envString("API_KEY", ""), `'"`),
		PushgatewayURL: envString("PUSHGATEWAY_URL", ""),
		LogLevel:       strings.ToLower(envString("LOG_LEVEL", "info")),
		PrettyLogs:     envBool("PRETTY_LOGS", false),
		Timezone:       envString("SEPA_TIMEZONE", "America/Argentina/Buenos_Aires"),
		DownloadURLs:   DefaultDownloadURLs(),

		SuspendForeignKeys: envBool("SUSPEND_FK", true),
	}

	allowed, err := parseIDList(envString("ALLOWED_MERCHANTS", ""))
	if err != nil {
		return nil, fmt.Errorf("ALLOWED_MERCHANTS: %w", err)
	}
	if len(allowed) == 0 {
		allowed = append(allowed, DefaultAllowedMerchants...)
	}
	cfg.AllowedMerchants = allowed

	if path := envString("SEPA_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file %s: %w", path, err)
	}
	defer file.Close()

	var overlay fileOverlay
	if err := yaml.NewDecoder(file).Decode(&overlay); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	if len(overlay.AllowedMerchants) > 0 {
		c.AllowedMerchants = overlay.AllowedMerchants
	}
	for day, url := range overlay.DownloadURLs {
		c.DownloadURLs[day] = url
	}
	return nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func parseIDList(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid merchant id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
