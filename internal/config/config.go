package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrImproperlyConfigured is returned when a setting is present but unusable
var ErrImproperlyConfigured = errors.New("improperly configured")

// Config holds application configuration
type Config struct {
	DB       DBConfig
	Server   ServerConfig
	Tables   TableConfig
	Geocoder GeocoderConfig
	Admin    AdminConfig
	Log      LogConfig
}

// DBType represents database type
type DBType string

const (
	DBTypePostgreSQL DBType = "postgres"
	DBTypeMemory     DBType = "memory"
	DBTypeSQLite     DBType = "sqlite"
)

// DBConfig holds database configuration
type DBConfig struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

// TableConfig names the tables backing cities and postal codes.
// Deployments with their own schema point these at their tables.
type TableConfig struct {
	City       string
	PostalCode string
}

// GeocoderConfig holds settings for the external geocoding API
type GeocoderConfig struct {
	APIKey   string
	URL      string
	MinWait  time.Duration
	MaxWait  time.Duration
	MaxQPS   float64
	CacheURL string
	CacheTTL time.Duration
}

// AdminConfig controls the read-only directory endpoints
type AdminConfig struct {
	Hidden bool
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
}

// DSN returns the database connection string
func (c DBConfig) DSN() string {
	switch c.Type {
	case DBTypeMemory:
		if c.Name != "" && c.Name != "simplegeo" {
			return fmt.Sprintf("file:%s?mode=memory&cache=shared", c.Name)
		}
		return "file::memory:?cache=shared"
	case DBTypeSQLite:
		return fmt.Sprintf("file:%s?_foreign_keys=on", c.Path)
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// IsMemory returns true if using in-memory database
func (c DBConfig) IsMemory() bool {
	return c.Type == DBTypeMemory
}

// IsSQLite returns true for both the in-memory and file backed SQLite setups
func (c DBConfig) IsSQLite() bool {
	return c.Type == DBTypeMemory || c.Type == DBTypeSQLite
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbType := DBType(getEnv("DB_TYPE", string(DBTypeSQLite)))
	if dbType != DBTypePostgreSQL && dbType != DBTypeMemory && dbType != DBTypeSQLite {
		dbType = DBTypeSQLite
	}

	config := &Config{
		DB: DBConfig{
			Type:     dbType,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "simplegeo"),
			Password: getEnv("DB_PASSWORD", "simplegeo_password"),
			Name:     getEnv("DB_NAME", "simplegeo"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "simplegeo.db"),
		},
		Server: ServerConfig{
			Port: getEnv("APP_PORT", "8080"),
		},
		Tables: TableConfig{
			City:       getEnv("CITY_TABLE", "cities"),
			PostalCode: getEnv("POSTALCODE_TABLE", "postal_codes"),
		},
		Geocoder: GeocoderConfig{
			APIKey:   os.Getenv("GEOCODER_API_KEY"),
			URL:      getEnv("GEOCODER_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
			MinWait:  getEnvAsDuration("GEOCODER_MIN_WAIT", time.Second),
			MaxWait:  getEnvAsDuration("GEOCODER_MAX_WAIT", 5*time.Second),
			MaxQPS:   getEnvAsFloat("GEOCODER_MAX_QPS", 0),
			CacheURL: os.Getenv("GEOCODER_CACHE_URL"),
			CacheTTL: getEnvAsDuration("GEOCODER_CACHE_TTL", 30*24*time.Hour),
		},
		Admin: AdminConfig{
			Hidden: getEnvAsBool("HIDE_ADMIN", false),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if !identifierRe.MatchString(c.Tables.City) {
		return fmt.Errorf("%w: CITY_TABLE must be a plain table name, got %q", ErrImproperlyConfigured, c.Tables.City)
	}
	if !identifierRe.MatchString(c.Tables.PostalCode) {
		return fmt.Errorf("%w: POSTALCODE_TABLE must be a plain table name, got %q", ErrImproperlyConfigured, c.Tables.PostalCode)
	}
	if c.Tables.City == c.Tables.PostalCode {
		return fmt.Errorf("%w: CITY_TABLE and POSTALCODE_TABLE must differ", ErrImproperlyConfigured)
	}
	if c.Geocoder.MinWait < 0 || c.Geocoder.MaxWait < c.Geocoder.MinWait {
		return fmt.Errorf("%w: GEOCODER_MIN_WAIT (%s) must not exceed GEOCODER_MAX_WAIT (%s)",
			ErrImproperlyConfigured, c.Geocoder.MinWait, c.Geocoder.MaxWait)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
