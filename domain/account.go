// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "fmt"

// AccountDescriptor describes one backend mail account. Server and Login are
// carried for diagnostics only; the aggregation core never dials with them
// itself.
type AccountDescriptor struct {
	ID      int
	Name    string
	Server  string
	Login   string
	Unified bool
}

func (a AccountDescriptor) String() string {
	return fmt.Sprintf("%d (%s@%s)", a.ID, a.Login, a.Server)
}

// AccountDirectory is the source of truth for the accounts of the current
// user. The aggregation core only ever reads from it.
type AccountDirectory interface {
	// UnifiedAccounts lists the accounts that are enabled for unification.
	UnifiedAccounts() ([]AccountDescriptor, error)
	Account(id int) (*AccountDescriptor, error)
}

// ConnectionFactory yields connected backend handles. Whoever calls Connect
// owns the handle and must Close it, under all exit paths.
type ConnectionFactory interface {
	Connect(accountID int) (BackendHandle, error)
}
