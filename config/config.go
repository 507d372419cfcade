// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Database string

	Workers             int
	RootListTimeoutSecs int
	Locale              string

	Loglevel *string
}

func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Database:            "accounts.db",
		Workers:             8,
		RootListTimeoutSecs: 5,
		Locale:              "en",
	}

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) RootListTimeout() time.Duration {
	return time.Duration(c.RootListTimeoutSecs) * time.Second
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database name must not be empty, set to a filename for the sqlite account directory"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Locale, "Locale must not be empty, set to a BCP-47 tag such as en or de-DE"); err != nil {
		return err
	}

	if c.Workers < 1 {
		return fmt.Errorf("Workers must be at least 1")
	}

	if c.RootListTimeoutSecs < 1 {
		return fmt.Errorf("RootListTimeoutSecs must be at least 1")
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
