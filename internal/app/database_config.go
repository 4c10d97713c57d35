package app

import (
	"strings"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/database"
)

// DatabaseSettings converts DatabaseConfig into database.Config, picking the
// host credentials that belong to the selected driver.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   c.Path,
		DSN:    c.DSN,
	}

	var creds DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		creds = c.Postgres
	case "mysql":
		creds = c.MySQL
	default:
		return cfg
	}

	cfg.Host = creds.Host
	cfg.Port = creds.Port
	cfg.Name = creds.Database
	cfg.User = creds.Username
	cfg.Password = creds.Password
	return cfg
}
