package config

import (
	"fmt"

	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"IDM_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"IDM_PG_PORT" env-default:"5432"`
	Database string `env:"IDM_PG_DATABASE" env-default:"idm_db"`
	User     string `env:"IDM_PG_USER" env-default:"idm"`
	Password string `env:"IDM_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"IDM_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

func (d DatabaseConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("IDM_PG_HOST", d.Host),
		RequireValidPort("IDM_PG_PORT", d.Port),
		RequireNonEmpty("IDM_PG_DATABASE", d.Database),
		RequireNonEmpty("IDM_PG_USER", d.User),
	)
}

const (
	PersistencePostgres = "postgres"
	PersistenceFile     = "file"
	PersistenceMemory   = "memory"
)

// PersistenceConfig selects where users, enrollments and codes are stored.
type PersistenceConfig struct {
	Type    string `env:"PERSISTENCE_TYPE" env-default:"postgres"`
	DataDir string `env:"PERSISTENCE_DATA_DIR" env-default:"./data"`
}

func (p PersistenceConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireOneOf("PERSISTENCE_TYPE", p.Type, []string{PersistencePostgres, PersistenceFile, PersistenceMemory}),
	)
	if p.Type == PersistenceFile {
		errs = append(errs, CollectErrors(RequireNonEmpty("PERSISTENCE_DATA_DIR", p.DataDir))...)
	}
	return errs
}
