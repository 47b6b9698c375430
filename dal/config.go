package dal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the connection and pool settings.
type Config struct {
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	User            string `koanf:"user"`
	Password        string `koanf:"password"`
	Database        string `koanf:"database"`
	SSLMode         string `koanf:"sslmode"`
	MaxOpenConns    int    `koanf:"max_open_conns"`
	MaxIdleConns    int    `koanf:"max_idle_conns"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime"` // seconds
	MigrationsDir   string `koanf:"migrations_dir"`
}

// Lifetime returns the maximum connection lifetime.
func (c *Config) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "host=%s port=%d user=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		fmt.Fprintf(&sb, " password=%s", c.Password)
	}
	return sb.String()
}

// LoadConfig loads configuration with the precedence (highest to
// lowest): FOLIO_-prefixed environment variables > YAML config file >
// defaults. If path is empty, folio.yaml / folio.yml in the working
// directory are tried.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"host":            "localhost",
		"port":            5432,
		"user":            "folio",
		"database":        "folio",
		"sslmode":         "disable",
		"max_open_conns":  10,
		"max_idle_conns":  5,
		"migrations_dir":  "migrations",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("folio/dal: load defaults: %w", err)
	}

	if path == "" {
		for _, name := range []string{"folio.yaml", "folio.yml"} {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("folio/dal: read config file %s: %w", path, err)
		}
	}

	// FOLIO_MAX_OPEN_CONNS -> max_open_conns
	if err := k.Load(env.Provider("FOLIO_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FOLIO_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("folio/dal: load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("folio/dal: decode config: %w", err)
	}
	return &cfg, nil
}
