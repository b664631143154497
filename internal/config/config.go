// Package config loads server settings from the environment and the
// notifybar client settings from its YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/01moynul/servehub/internal/database"
)

// Server is the API server configuration.
type Server struct {
	Port        string        `mapstructure:"port"`
	DBDriver    string        `mapstructure:"db_driver"`
	DBDSN       string        `mapstructure:"db_dsn"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl"`
	CORSOrigin  string        `mapstructure:"cors_origin"`
	MongoURI    string        `mapstructure:"mongo_uri"`
	MongoDBName string        `mapstructure:"mongo_db_name"`

	RetentionDays   int           `mapstructure:"notification_retention_days"`
	MaxPerRecipient int           `mapstructure:"notification_max_per_recipient"`
	PurgeInterval   time.Duration `mapstructure:"notification_purge_interval"`
}

// Retention is the notification retention window.
func (s Server) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

var serverDefaults = map[string]any{
	"port":                           "8080",
	"db_driver":                      database.DriverMySQL,
	"db_dsn":                         "",
	"jwt_secret":                     "",
	"jwt_ttl":                        "72h",
	"cors_origin":                    "http://localhost:5173",
	"mongo_uri":                      "",
	"mongo_db_name":                  "servehub",
	"notification_retention_days":    90,
	"notification_max_per_recipient": 500,
	"notification_purge_interval":    "1h",
}

// LoadServer reads the server configuration from environment variables
// (PORT, DB_DRIVER, DB_DSN, ...). Load a .env file before calling it.
func LoadServer() (Server, error) {
	v := viper.New()
	for key, value := range serverDefaults {
		v.SetDefault(key, value)
		// AutomaticEnv alone does not make Unmarshal see env-only keys.
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return Server{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return Server{}, fmt.Errorf("parsing server config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	switch s.DBDriver {
	case database.DriverMySQL, database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", s.DBDriver)
	}
	if s.DBDSN == "" {
		return fmt.Errorf("DB_DSN environment variable is not set")
	}
	if s.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if s.RetentionDays < 0 || s.MaxPerRecipient < 0 {
		return fmt.Errorf("notification retention settings must not be negative")
	}
	return nil
}
