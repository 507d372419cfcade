// SPDX-License-Identifier: GPL-3.0-or-later
package imapbackend

import (
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
)

// CredentialSource yields the descriptor and dialing credentials of one
// account. The sqlite account directory implements it.
type CredentialSource interface {
	Account(id int) (*domain.AccountDescriptor, error)
	Credentials(id int) (server, login, password string, err error)
}

// Factory dials a fresh IMAP session per Connect call. Every fan-out task
// gets its own connection; handles are never shared.
type Factory struct {
	source CredentialSource
}

func NewFactory(source CredentialSource) *Factory {
	return &Factory{source: source}
}

func (f *Factory) Connect(accountID int) (domain.BackendHandle, error) {
	account, err := f.source.Account(accountID)
	if err != nil {
		return nil, fmt.Errorf("could not look up account %d: %w", accountID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", accountID, domain.ErrNotConnected)
	}

	server, login, password, err := f.source.Credentials(accountID)
	if err != nil {
		return nil, fmt.Errorf("could not look up credentials for account %d: %w", accountID, err)
	}

	return NewConnection(*account, server, login, password)
}
