package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/lawnchairsociety/terraingen/internal/config"
)

// Config holds archive connection configuration.
type Config struct {
	// Driver specifies which database to use: "sqlite" or "postgres"
	Driver string

	SQLitePath string

	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a Config for a SQLite archive at sqlitePath.
func DefaultConfig(sqlitePath string) Config {
	return Config{
		Driver:     string(DialectSQLite),
		SQLitePath: sqlitePath,
	}
}

// ConfigFrom converts the archive section of the generator config.
func ConfigFrom(c config.ArchiveConfig) Config {
	return Config{
		Driver:     c.Driver,
		SQLitePath: c.SQLitePath,
		Postgres: PostgresConfig{
			Host:            c.Postgres.Host,
			Port:            c.Postgres.Port,
			User:            c.Postgres.User,
			Password:        c.Postgres.Password,
			Database:        c.Postgres.Database,
			SSLMode:         c.Postgres.SSLMode,
			MaxOpenConns:    c.Postgres.MaxOpenConns,
			MaxIdleConns:    c.Postgres.MaxIdleConns,
			ConnMaxLifetime: c.Postgres.ConnMaxLifetime(),
		},
	}
}

// DSN returns the lib/pq key/value connection string. Empty fields are left out.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{fmt.Sprintf("host=%s port=%d", p.Host, p.Port)}
	if p.User != "" {
		parts = append(parts, "user="+p.User)
	}
	if p.Password != "" {
		parts = append(parts, "password="+p.Password)
	}
	if p.Database != "" {
		parts = append(parts, "dbname="+p.Database)
	}
	parts = append(parts, "sslmode="+sslMode)
	return strings.Join(parts, " ")
}
