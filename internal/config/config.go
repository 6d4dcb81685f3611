package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the main application configuration
type Config struct {
	Database Database `json:"database" mapstructure:"database"`
	Server   Server   `json:"server" mapstructure:"server"`
	JWT      JWT      `json:"jwt" mapstructure:"jwt"`
	HTTP     HTTP     `json:"http" mapstructure:"http"`
	Locale   Locale   `json:"locale" mapstructure:"locale"`
	Search   Search   `json:"search" mapstructure:"search"`
	Cache    Cache    `json:"cache" mapstructure:"cache"`
	Metrics  Metrics  `json:"metrics" mapstructure:"metrics"`
}

// Database represents database configuration
type Database struct {
	// Driver is "postgres" or "sqlite"
	Driver          string        `json:"driver" mapstructure:"driver"`
	SQLitePath      string        `json:"sqlite_path" mapstructure:"sqlite_path"`
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"`
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	// LogQueries routes gorm's SQL log through zerolog at debug level
	LogQueries bool `json:"log_queries" mapstructure:"log_queries"`
}

// Server represents server configuration
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	LogFile  string `json:"log_file" mapstructure:"log_file"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
	// DeveloperMode unlocks administrative actions such as re-running patches
	DeveloperMode bool `json:"developer_mode" mapstructure:"developer_mode"`
}

// JWT represents JWT configuration
type JWT struct {
	Secret string        `json:"secret" mapstructure:"secret"`
	TTL    time.Duration `json:"ttl" mapstructure:"ttl"`
}

// HTTP represents HTTP server configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// Locale controls request language resolution
type Locale struct {
	Default   string   `json:"default" mapstructure:"default"`
	Supported []string `json:"supported" mapstructure:"supported"`
}

// Search holds link search limits
type Search struct {
	DefaultPageLength int `json:"default_page_length" mapstructure:"default_page_length"`
	MaxPageLength     int `json:"max_page_length" mapstructure:"max_page_length"`
}

// Cache configures the translation cache. An empty RedisURL keeps it in memory.
type Cache struct {
	RedisURL string        `json:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
	Prefix   string        `json:"prefix" mapstructure:"prefix"`
}

// Metrics toggles the prometheus endpoint
type Metrics struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	return &Config{
		Database: Database{
			Driver:          "postgres",
			SQLitePath:      "linkdesk.db",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			DBName:          "linkdesk",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
		},
		Server: Server{
			LogLevel: "info",
		},
		JWT: JWT{
			Secret: "change-me-in-production",
			TTL:    24 * time.Hour,
		},
		HTTP: HTTP{
			Port:         8082,
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Locale: Locale{
			Default:   "en",
			Supported: []string{"en", "fr", "de"},
		},
		Search: Search{
			DefaultPageLength: 20,
			MaxPageLength:     500,
		},
		Cache: Cache{
			TTL:    10 * time.Minute,
			Prefix: "linkdesk",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxConnections {
		return fmt.Errorf("max idle connections cannot exceed max connections")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	if c.Locale.Default == "" {
		return fmt.Errorf("default locale is required")
	}

	if c.Search.DefaultPageLength <= 0 {
		return fmt.Errorf("default page length must be greater than 0")
	}
	if c.Search.MaxPageLength < c.Search.DefaultPageLength {
		return fmt.Errorf("max page length cannot be below the default page length")
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	return nil
}

// DatabaseURL constructs a PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	params := url.Values{}
	params.Set("sslmode", c.Database.SSLMode)

	var userInfo *url.Userinfo
	if c.Database.Password == "" {
		userInfo = url.User(c.Database.User)
	} else {
		userInfo = url.UserPassword(c.Database.User, c.Database.Password)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.DBName,
		RawQuery: params.Encode(),
	}

	return u.String()
}
