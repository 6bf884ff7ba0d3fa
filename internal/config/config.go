package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MEDVAULT_SERVER_PORT.
const EnvPrefix = "MEDVAULT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" split_words:"true"`
	Store     StoreConfig     `mapstructure:"store" split_words:"true"`
	Database  DatabaseConfig  `mapstructure:"database" split_words:"true"`
	Uploads   UploadsConfig   `mapstructure:"uploads" split_words:"true"`
	Auth      AuthConfig      `mapstructure:"auth" split_words:"true"`
	Redis     RedisConfig     `mapstructure:"redis" split_words:"true"`
	Drugs     DrugsConfig     `mapstructure:"drugs" split_words:"true"`
	Share     ShareConfig     `mapstructure:"share" split_words:"true"`
	SMTP      SMTPConfig      `mapstructure:"smtp" split_words:"true"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	Security  SecurityConfig  `mapstructure:"security" split_words:"true"`
	Log       LogConfig       `mapstructure:"log" split_words:"true"`
	Metrics   MetricsConfig   `mapstructure:"metrics" split_words:"true"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" split_words:"true"`
	Mode           string        `mapstructure:"mode" split_words:"true"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" split_words:"true"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes" split_words:"true"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver       string `mapstructure:"driver" split_words:"true"`
	DataDir      string `mapstructure:"data_dir" split_words:"true"`
	PatientsFile string `mapstructure:"patients_file" split_words:"true"`
	DrugMapFile  string `mapstructure:"drug_map_file" split_words:"true"`
}

func (s StoreConfig) PatientsPath() string {
	return filepath.Join(s.DataDir, s.PatientsFile)
}

func (s StoreConfig) DrugMapPath() string {
	return filepath.Join(s.DataDir, s.DrugMapFile)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" split_words:"true"`
	Port     int    `mapstructure:"port" split_words:"true"`
	User     string `mapstructure:"user" split_words:"true"`
	Password string `mapstructure:"password" split_words:"true"`
	Name     string `mapstructure:"name" split_words:"true"`
	SSLMode  string `mapstructure:"sslmode" split_words:"true"`
}

type UploadsConfig struct {
	Dir          string `mapstructure:"dir" split_words:"true"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" split_words:"true"`
	SessionTTL time.Duration `mapstructure:"session_ttl" split_words:"true"`
}

// RedisConfig enables the shared session revocation store when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url" split_words:"true"`
}

type DrugsConfig struct {
	BaseURL  string        `mapstructure:"base_url" split_words:"true"`
	Timeout  time.Duration `mapstructure:"timeout" split_words:"true"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" split_words:"true"`
}

type ShareConfig struct {
	BaseURL string `mapstructure:"base_url" split_words:"true"`
	QRSize  int    `mapstructure:"qr_size" split_words:"true"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" split_words:"true"`
	Port     int    `mapstructure:"port" split_words:"true"`
	Username string `mapstructure:"username" split_words:"true"`
	Password string `mapstructure:"password" split_words:"true"`
	From     string `mapstructure:"from" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" split_words:"true"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst" split_words:"true"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level" split_words:"true"`
	JSON  bool   `mapstructure:"json" split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" split_words:"true"`
	Path    string `mapstructure:"path" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.data_dir", ".")
	v.SetDefault("store.patients_file", "patients.csv")
	v.SetDefault("store.drug_map_file", "drug_map.csv")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "medvault")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_size_bytes", 200<<20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)

	v.SetDefault("drugs.base_url", "https://api.fda.gov")
	v.SetDefault("drugs.timeout", 10*time.Second)
	v.SetDefault("drugs.cache_ttl", time.Hour)

	v.SetDefault("share.base_url", "https://medvault.streamlit.app")
	v.SetDefault("share.qr_size", 256)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// LoadConfig reads config.yaml (or the file named by CONFIG_FILE), then
// applies MEDVAULT_* environment overrides. A missing config file is not an
// error; the defaults are complete enough to start a CSV-backed server.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "csv", "postgres":
	default:
		return fmt.Errorf("invalid store driver %q: must be csv or postgres", c.Store.Driver)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Drugs.Timeout <= 0 {
		return fmt.Errorf("drugs.timeout must be positive")
	}
	if c.Uploads.MaxSizeBytes <= 0 {
		return fmt.Errorf("uploads.max_size_bytes must be positive")
	}
	return nil
}
