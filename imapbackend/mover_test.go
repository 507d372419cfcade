// SPDX-License-Identifier: GPL-3.0-or-later
package imapbackend

import (
	"errors"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
)

type fakeMoveClient struct {
	seqset *imap.SeqSet
	dest   string
	err    error
}

func (f *fakeMoveClient) UidMove(seqset *imap.SeqSet, dest string) error {
	f.seqset, f.dest = seqset, dest
	return f.err
}

type fakeCopyDeleteClient struct {
	notReadyReason error
	readyErr       error

	copiedSeqset *imap.SeqSet
	copyDest     string
	copyErr      error

	deletedUids []uint32
	deleteErr   error
}

func (f *fakeCopyDeleteClient) deleteReady() (error, error) {
	return f.notReadyReason, f.readyErr
}

func (f *fakeCopyDeleteClient) UidCopy(seqset *imap.SeqSet, dest string) error {
	f.copiedSeqset, f.copyDest = seqset, dest
	return f.copyErr
}

func (f *fakeCopyDeleteClient) delete(uids []uint32) error {
	f.deletedUids = uids
	return f.deleteErr
}

func TestMoveMover_Move(t *testing.T) {
	conn := &fakeMoveClient{}
	mover := moveMover{conn}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.NoError(t, err)
	assert.Equal(t, seqset, conn.seqset)
	assert.Equal(t, "dest", conn.dest)
}

func TestCompatibilityMover_Move(t *testing.T) {
	conn := &fakeCopyDeleteClient{}
	mover := compatibilityMover{conn}

	seqset := &imap.SeqSet{}
	seqset.AddNum(u32a(1, 2, 3)...)

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.NoError(t, err)
	assert.Equal(t, seqset, conn.copiedSeqset)
	assert.Equal(t, "dest", conn.copyDest)
	assert.Equal(t, u32a(1, 2, 3), conn.deletedUids)
}

func TestCompatibilityMover_MoveButNotDeleteReady(t *testing.T) {
	conn := &fakeCopyDeleteClient{notReadyReason: errors.New("delete not ready")}
	mover := compatibilityMover{conn}

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.EqualError(t, err, "folder is not ready for delete, cannot move (copy&delete): delete not ready")
	assert.Nil(t, conn.copiedSeqset)
}

func TestCompatibilityMover_MoveCopyFails(t *testing.T) {
	conn := &fakeCopyDeleteClient{copyErr: errors.New("copy failed")}
	mover := compatibilityMover{conn}

	err := mover.move(u32a(1, 2, 3), "dest")
	assert.EqualError(t, err, "could not copy mails: copy failed")
	assert.Nil(t, conn.deletedUids)
}
