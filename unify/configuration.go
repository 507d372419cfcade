// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"fmt"
	"time"
)

type ConfigFunc func(c *configuration) error

func Workers(workers int) ConfigFunc {
	return func(c *configuration) error {
		if workers < 1 {
			return fmt.Errorf("Workers must be at least 1")
		}

		c.Workers = workers
		return nil
	}
}

func RootListTimeout(timeout time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if timeout <= 0 {
			return fmt.Errorf("RootListTimeout must be positive")
		}

		c.RootListTimeout = timeout
		return nil
	}
}

func Locale(locale string) ConfigFunc {
	return func(c *configuration) error {
		if len(locale) == 0 {
			return fmt.Errorf("Locale cannot be empty")
		}

		c.Locale = locale
		return nil
	}
}

type configuration struct {
	Workers         int
	RootListTimeout time.Duration
	Locale          string
}

func defaultConfiguration() *configuration {
	return &configuration{
		Workers:         8,
		RootListTimeout: 5 * time.Second,
		Locale:          "en",
	}
}
