// SPDX-License-Identifier: GPL-3.0-or-later
package imapbackend

import (
	"fmt"

	"github.com/emersion/go-imap"
)

type mover interface {
	move(uids []uint32, folder string) error
}

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

// moveMover uses the MOVE extension, which transfers atomically on the
// server side.
type moveMover struct {
	moveClient moveClient
}

func (m *moveMover) move(uids []uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return m.moveClient.UidMove(seqset, folder)
}

type copyAndDeleteMoveClient interface {
	UidCopy(seqset *imap.SeqSet, dest string) error
	delete(uids []uint32) error
	deleteReady() (error, error)
}

// compatibilityMover emulates MOVE with copy&delete. The delete half must
// be ready before the copy happens, otherwise a failed delete would leave
// the message duplicated.
type compatibilityMover struct {
	imapConn copyAndDeleteMoveClient
}

func (c *compatibilityMover) move(uids []uint32, folder string) error {
	notDeleteReadyReason, err := c.imapConn.deleteReady()
	if err != nil {
		return fmt.Errorf("could not check for delete readiness to move: %w", err)
	}

	if notDeleteReadyReason != nil {
		return fmt.Errorf("folder is not ready for delete, cannot move (copy&delete): %w", notDeleteReadyReason)
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err = c.imapConn.UidCopy(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not copy mails: %w", err)
	}

	err = c.imapConn.delete(uids)
	if err != nil {
		return fmt.Errorf("could not delete copied mails: %w", err)
	}

	return nil
}
