// SPDX-License-Identifier: GPL-3.0-or-later

// Package imapbackend implements the backend handle contract on top of a
// plain IMAP session. Optional protocol extensions (UIDPLUS, MOVE) are
// probed once at connect time; missing extensions degrade to the
// compatibility strategies instead of failing operations later.
package imapbackend

import (
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/log"

	"github.com/emersion/go-imap"
	move "github.com/emersion/go-imap-move"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

type Connection struct {
	connection  *client.Client
	mailDeleter deleter
	mailMover   mover

	uidplusClient *uidplus.Client

	account domain.AccountDescriptor

	selectedFolder string

	l *logrus.Logger
}

func NewConnection(account domain.AccountDescriptor, server, login, password string) (*Connection, error) {
	imapClient, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	err = imapClient.Login(login, password)
	if err != nil {
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	uidPlusClient := uidplus.NewClient(imapClient)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return nil, fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	moveClient := move.NewClient(imapClient)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return nil, fmt.Errorf("could not check for MOVE support: %w", err)
	}

	conn := &Connection{
		connection: imapClient,
		account:    account,
		l:          log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"account": account.ID, "server": server})
	baseLogger.Debug("Logged in to server")

	if uidPlusSupported {
		baseLogger.Debug("UIDPLUS supported on server, using UID delete")
		conn.uidplusClient = uidPlusClient
		conn.mailDeleter = &uidPlusDeleter{
			imapConn: conn,
		}
	} else {
		baseLogger.Info("UIDPLUS not supported on server, falling back to flag&expunge")
		conn.mailDeleter = &compatibilityDeleter{
			imapConn: conn,
		}
	}

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		conn.mailMover = &moveMover{
			moveClient: moveClient,
		}
	} else {
		baseLogger.Info("MOVE not supported on server, falling back to copy&delete")
		conn.mailMover = &compatibilityMover{
			imapConn: conn,
		}
	}

	return conn, nil
}

func (c *Connection) Account() domain.AccountDescriptor {
	return c.account
}

func (c *Connection) Capabilities() domain.Capabilities {
	// Plain IMAP has no server-side conversation threading this backend
	// exposes; STATUS makes counters cheap.
	return domain.Capabilities{
		NativeThreading: false,
		EnhancedStatus:  true,
	}
}

// selectFolder selects the folder unless it already is the selected one.
// Mutating commands invalidate nothing here; IMAP keeps the selection until
// the next SELECT.
func (c *Connection) selectFolder(folder string) error {
	if c.selectedFolder == folder {
		return nil
	}

	_, err := c.connection.Select(folder, false)
	if err != nil {
		c.selectedFolder = ""
		return fmt.Errorf("could not select folder %s: %w", folder, err)
	}

	c.selectedFolder = folder
	return nil
}

func (c *Connection) flagDeleted(uids []uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err := c.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could not set delete flag: %w", err)
	}

	return seqset, nil
}

func (c *Connection) UidCopy(seqset *imap.SeqSet, dest string) error {
	return c.connection.UidCopy(seqset, dest)
}

func (c *Connection) delete(uids []uint32) error {
	return c.mailDeleter.delete(uids)
}

func (c *Connection) deleteReady() (error, error) {
	return c.mailDeleter.deleteReady()
}

func (c *Connection) expunge(ch chan uint32) error {
	return c.connection.Expunge(ch)
}

func (c *Connection) UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error {
	return c.uidplusClient.UidExpunge(seqSet, ch)
}

func (c *Connection) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	return c.connection.UidSearch(criteria)
}

func (c *Connection) Close() error {
	return c.connection.Logout()
}
