package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mickamy/polyorm/orm"
)

// Config is the demo configuration. Flags win over POLYDEMO_* environment
// variables, which win over defaults.
type Config struct {
	Driver      string
	DSN         string
	DealersURL  string
	Codec       string
	LogLevel    string
	MetricsAddr string
}

func bindConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix("polydemo")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", ":memory:")
	v.SetDefault("codec", "json")
	v.SetDefault("log-level", "info")

	return v.BindPFlags(flags) //nolint:wrapcheck // pass through
}

func loadConfig(v *viper.Viper) (*Config, error) {
	c := &Config{
		Driver:      v.GetString("driver"),
		DSN:         v.GetString("dsn"),
		DealersURL:  v.GetString("dealers-url"),
		Codec:       v.GetString("codec"),
		LogLevel:    v.GetString("log-level"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
	if _, _, err := c.Dialect(); err != nil {
		return nil, err
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		return nil, fmt.Errorf("unknown codec %q (use json or msgpack)", c.Codec)
	}
	return c, nil
}

// Dialect returns the database/sql driver name and the orm dialect for the
// configured driver.
func (c *Config) Dialect() (string, orm.Dialect, error) {
	switch c.Driver {
	case "sqlite":
		return "sqlite", orm.SQLite, nil
	case "mysql":
		return "mysql", orm.MySQL, nil
	case "pgx":
		return "pgx", orm.PostgreSQL, nil
	case "postgres", "pq":
		return "postgres", orm.PostgreSQL, nil
	default:
		return "", nil, fmt.Errorf("unknown driver %q (use sqlite, mysql, pgx or postgres)", c.Driver)
	}
}
