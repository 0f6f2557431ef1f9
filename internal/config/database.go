package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Driver selects the storage backend.
type Driver string

const (
	// DriverPostgres is the production database.
	DriverPostgres Driver = "postgres"
	// DriverSQLite is a local single-file database.
	DriverSQLite Driver = "sqlite"
)

// Database holds connection settings. They come from the environment so that the
// same variables serve the application and this tool.
type Database struct {
	Driver         Driver        `envconfig:"DB_DRIVER"          default:"postgres"       yaml:"driver"  validate:"oneof=postgres sqlite" label:"DB_DRIVER"`
	Host           string        `envconfig:"POSTGRES_HOST"      default:"comfy-media-db" yaml:"host"    validate:"required_if=Driver postgres" label:"POSTGRES_HOST"`
	Port           int           `envconfig:"POSTGRES_PORT"      default:"5432"           yaml:"port"    validate:"min=1,max=65535" label:"POSTGRES_PORT"`
	Name           string        `envconfig:"POSTGRES_DB"        default:"comfy_media"    yaml:"name"    validate:"required_if=Driver postgres" label:"POSTGRES_DB"`
	User           string        `envconfig:"POSTGRES_USER"      default:"comfy_user"     yaml:"user"    validate:"required_if=Driver postgres" label:"POSTGRES_USER"`
	Password       string        `envconfig:"POSTGRES_PASSWORD"                           yaml:"-"`
	SSLMode        string        `envconfig:"POSTGRES_SSLMODE"   default:"disable"        yaml:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full" label:"POSTGRES_SSLMODE"`
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"            yaml:"connect-timeout"`
	SQLitePath     string        `envconfig:"SQLITE_PATH"        default:"media.db"       yaml:"sqlite-path" validate:"required_if=Driver sqlite" label:"SQLITE_PATH"`
}

// LoadDatabase reads the connection settings from the environment.
func LoadDatabase() (Database, error) {
	var db Database

	if err := envconfig.Process("", &db); err != nil {
		return Database{}, fmt.Errorf("reading database settings: %w", err)
	}

	return db, nil
}
