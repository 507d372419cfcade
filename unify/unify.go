// SPDX-License-Identifier: GPL-3.0-or-later

// Package unify exposes many backend mail accounts as one virtual mailbox.
// Callers address it like any other account; every operation fans out to the
// eligible backend accounts, results are merged and re-identified through
// the virtual id scheme. One unreachable account degrades its contribution
// to nothing and never fails the aggregate call.
package unify

import (
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/fanout"
	"github.com/unifiedmail/go-inbox-unify/log"

	"github.com/sirupsen/logrus"
)

type UnifiedInbox struct {
	directory   domain.AccountDirectory
	connections domain.ConnectionFactory

	pool *fanout.Pool

	configuration *configuration

	// l carries the aggregator's own log lines, fl is handed to the
	// fan-out executor so its per-task diagnostics keep their prefix.
	l  *logrus.Logger
	fl *logrus.Logger
}

func NewUnifiedInbox(directory domain.AccountDirectory, connections domain.ConnectionFactory, configFunc ...ConfigFunc) (*UnifiedInbox, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &UnifiedInbox{
		directory:     directory,
		connections:   connections,
		pool:          fanout.NewPool(config.Workers),
		configuration: config,
		l:             log.Logger(log.LOG_UNIFY),
		fl:            log.Logger(log.LOG_FANOUT),
	}, nil
}

// connectTask wraps a backend operation into a fan-out task that owns its
// connection: acquired at task start, released on every exit path.
func connectTask[T any](u *UnifiedInbox, account domain.AccountDescriptor, fn func(handle domain.BackendHandle) (T, error)) fanout.Task[T] {
	return fanout.Task[T]{
		Account: account,
		Run: func() (T, error) {
			var zero T
			handle, err := u.connections.Connect(account.ID)
			if err != nil {
				return zero, fmt.Errorf("could not connect account %s: %w", account.String(), err)
			}
			defer handle.Close()

			return fn(handle)
		},
	}
}

// withAccount runs a single-account operation outside the fan-out machinery,
// with the same connection ownership rules. Errors surface to the caller.
func withAccount[T any](u *UnifiedInbox, accountID int, fn func(account domain.AccountDescriptor, handle domain.BackendHandle) (T, error)) (T, error) {
	var zero T

	account, err := u.describeAccount(accountID)
	if err != nil {
		return zero, err
	}

	handle, err := u.connections.Connect(account.ID)
	if err != nil {
		return zero, fmt.Errorf("could not connect account %s: %w", account.String(), err)
	}
	defer handle.Close()

	return fn(account, handle)
}

func (u *UnifiedInbox) describeAccount(id int) (domain.AccountDescriptor, error) {
	account, err := u.directory.Account(id)
	if err != nil {
		return domain.AccountDescriptor{}, fmt.Errorf("could not look up account %d: %w", id, err)
	}
	if account == nil {
		// Unknown to the directory; connecting it will fail and be logged
		// with this bare identity.
		return domain.AccountDescriptor{ID: id}, nil
	}

	return *account, nil
}

func (u *UnifiedInbox) eligibleAccounts() ([]domain.AccountDescriptor, error) {
	accounts, err := u.directory.UnifiedAccounts()
	if err != nil {
		return nil, fmt.Errorf("could not list unified accounts: %w", err)
	}

	return accounts, nil
}
