// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"context"
	"testing"
	"time"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/virtualid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveSameFolderRejected(t *testing.T) {
	factory := newFakeFactory()
	inbox := newTestInbox(t, &fakeDirectory{}, factory)

	src := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	err := inbox.MoveMessages(context.Background(), src, src, []string{virtualid.Encode(1, "INBOX", "10")})

	assert.ErrorIs(t, err, domain.ErrNoEqualMove)
	assert.Zero(t, factory.connects)
}

func TestMoveNestedToKnownResolvingToSameFolderRejected(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleTrash, "Trash")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	src := virtualid.NestedPath(KnownTrash, 1, "Trash")
	err := inbox.MoveMessages(context.Background(), src, KnownTrash, []string{virtualid.Encode(1, "Trash", "10")})

	assert.ErrorIs(t, err, domain.ErrNoEqualMove)
	assert.Empty(t, a.moves)
}

func TestMoveNestedToKnownResolvesDestinationInSameAccount(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleInbox, "INBOX").
		withFolder(domain.RoleTrash, "Trash")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	src := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	err := inbox.MoveMessages(context.Background(), src, KnownTrash, []string{virtualid.Encode(1, "INBOX", "10")})
	require.NoError(t, err)

	require.Len(t, a.moves, 1)
	assert.Equal(t, transferCall{src: "INBOX", dst: "Trash", ids: []string{"10"}}, a.moves[0])
}

func TestMoveKnownToKnownSameMappedFolderRejected(t *testing.T) {
	// Spam and Trash both map to "Junk", so moving between the two known
	// folders resolves to a move within the same real folder.
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleSpam, "Junk").
		withFolder(domain.RoleTrash, "Junk")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	err := inbox.MoveMessages(context.Background(), KnownSpam, KnownTrash, []string{virtualid.Encode(1, "Junk", "10")})

	assert.ErrorIs(t, err, domain.ErrNoEqualMove)
	assert.Empty(t, a.moves)
}

func TestCopyKnownToKnownSameMappedFolderSkipped(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleSpam, "Junk").
		withFolder(domain.RoleTrash, "Junk")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	err := inbox.CopyMessages(context.Background(), KnownSpam, KnownTrash, []string{virtualid.Encode(1, "Junk", "10")})

	// Copying onto itself is a no-op, not an error.
	require.NoError(t, err)
	assert.Empty(t, a.copies)
}

func TestCopyKnownToKnownResolvesPerAccount(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleInbox, "INBOX").
		withFolder(domain.RoleTrash, "Trash")
	b := newFakeHandle(account(2, "bob")).
		withFolder(domain.RoleInbox, "Posteingang").
		withFolder(domain.RoleTrash, "Papierkorb")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	err := inbox.CopyMessages(context.Background(), KnownInbox, KnownTrash, []string{
		virtualid.Encode(1, "INBOX", "10"),
		virtualid.Encode(2, "Posteingang", "20"),
	})
	require.NoError(t, err)

	require.Len(t, a.copies, 1)
	assert.Equal(t, transferCall{src: "INBOX", dst: "Trash", ids: []string{"10"}}, a.copies[0])
	require.Len(t, b.copies, 1)
	assert.Equal(t, transferCall{src: "Posteingang", dst: "Papierkorb", ids: []string{"20"}}, b.copies[0])
}

func TestCopyKnownToNestedSameAccountFastPath(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleInbox, "INBOX").
		withFolder(domain.RoleTrash, "Trash")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	dst := virtualid.NestedPath(KnownTrash, 1, "Trash")
	err := inbox.CopyMessages(context.Background(), KnownInbox, dst, []string{virtualid.Encode(1, "INBOX", "10")})
	require.NoError(t, err)

	require.Len(t, a.copies, 1)
	assert.Equal(t, transferCall{src: "INBOX", dst: "Trash", ids: []string{"10"}}, a.copies[0])
}

func TestMoveCrossAccountTransfers(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX",
		msg("10", "travels", base, domain.FlagSeen),
	)
	b := newFakeHandle(account(2, "bob")).withFolder(domain.RoleInbox, "Posteingang")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	src := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	dst := virtualid.NestedPath(KnownInbox, 2, "Posteingang")
	err := inbox.MoveMessages(context.Background(), src, dst, []string{virtualid.Encode(1, "INBOX", "10")})
	require.NoError(t, err)

	// The full message travelled: appended at the destination, original
	// deleted at the source.
	require.Len(t, b.appends, 1)
	assert.Equal(t, "Posteingang", b.appends[0].folder)
	assert.Equal(t, []byte("raw-10"), b.appends[0].raw)
	assert.Equal(t, domain.FlagSeen, b.appends[0].flags)

	assert.Equal(t, []string{"10"}, a.deleted["INBOX"])
	assert.Empty(t, a.moves)
}

func TestMoveCrossAccountKeepsRawBytes(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte("Message-Id: <m-10@example.org>\r\nSubject: travels\r\n\r\nbody\r\n")
	m := msg("10", "travels", base, 0)
	m.Raw = raw

	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX", m)
	b := newFakeHandle(account(2, "bob")).withFolder(domain.RoleInbox, "Posteingang")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	src := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	dst := virtualid.NestedPath(KnownInbox, 2, "Posteingang")
	err := inbox.MoveMessages(context.Background(), src, dst, []string{virtualid.Encode(1, "INBOX", "10")})
	require.NoError(t, err)

	// Parsing the headers for the transfer log never rewrites the message:
	// the appended copy is byte-identical to the source.
	require.Len(t, b.appends, 1)
	assert.Equal(t, raw, b.appends[0].raw)
	assert.Equal(t, []string{"10"}, a.deleted["INBOX"])
}

func TestCopyCrossAccountKeepsOriginal(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX",
		msg("10", "stays", base, 0),
	)
	b := newFakeHandle(account(2, "bob")).withFolder(domain.RoleInbox, "Posteingang")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	src := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	dst := virtualid.NestedPath(KnownInbox, 2, "Posteingang")
	err := inbox.CopyMessages(context.Background(), src, dst, []string{virtualid.Encode(1, "INBOX", "10")})
	require.NoError(t, err)

	require.Len(t, b.appends, 1)
	assert.Empty(t, a.deleted["INBOX"])
}

func TestTransferEmptyIDListDoesNothing(t *testing.T) {
	factory := newFakeFactory()
	inbox := newTestInbox(t, &fakeDirectory{}, factory)

	err := inbox.CopyMessages(context.Background(), KnownInbox, KnownTrash, []string{})
	require.NoError(t, err)
	assert.Zero(t, factory.connects)
}

func TestTransferToRootRejected(t *testing.T) {
	factory := newFakeFactory()
	inbox := newTestInbox(t, &fakeDirectory{}, factory)

	err := inbox.CopyMessages(context.Background(), KnownInbox, RootFolder, []string{virtualid.Encode(1, "INBOX", "10")})
	assert.ErrorIs(t, err, domain.ErrFolderDoesNotHoldMessages)
	assert.Zero(t, factory.connects)
}
