// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"testing"
	"time"

	"github.com/unifiedmail/go-inbox-unify/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationOverrides(t *testing.T) {
	log.InitLogging("error")
	inbox, err := NewUnifiedInbox(&fakeDirectory{}, newFakeFactory(), Workers(2), RootListTimeout(time.Second), Locale("de-DE"))
	require.NoError(t, err)

	assert.Equal(t, 2, inbox.configuration.Workers)
	assert.Equal(t, time.Second, inbox.configuration.RootListTimeout)
	assert.Equal(t, "de-DE", inbox.configuration.Locale)
}

func TestConfigurationInvalidWorkers(t *testing.T) {
	_, err := NewUnifiedInbox(&fakeDirectory{}, newFakeFactory(), Workers(0))
	assert.EqualError(t, err, "error applying configuration: Workers must be at least 1")
}

func TestConfigurationInvalidTimeout(t *testing.T) {
	_, err := NewUnifiedInbox(&fakeDirectory{}, newFakeFactory(), RootListTimeout(0))
	assert.EqualError(t, err, "error applying configuration: RootListTimeout must be positive")
}

func TestConfigurationEmptyLocale(t *testing.T) {
	_, err := NewUnifiedInbox(&fakeDirectory{}, newFakeFactory(), Locale(""))
	assert.EqualError(t, err, "error applying configuration: Locale cannot be empty")
}
