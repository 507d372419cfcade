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

func TestGetRootFolder(t *testing.T) {
	inbox := newTestInbox(t, &fakeDirectory{}, newFakeFactory())

	root := inbox.GetRootFolder()
	assert.Equal(t, RootFolder, root.FullName)
	assert.False(t, root.HoldsMessages)
	assert.True(t, root.HoldsFolders)
}

func TestRootSubfoldersFixedOrder(t *testing.T) {
	expected := []string{KnownInbox, KnownDrafts, KnownSent, KnownSpam, KnownTrash}

	// The five known folders are a fixed contract, independent of the
	// account set.
	for _, accounts := range [][]domain.AccountDescriptor{
		{},
		{account(1, "alice")},
		{account(2, "bob"), account(1, "alice")},
	} {
		directory := &fakeDirectory{accounts: accounts}
		handles := []*fakeHandle{}
		for _, a := range accounts {
			handles = append(handles, newFakeHandle(a).withFolder(domain.RoleInbox, "INBOX"))
		}
		inbox := newTestInbox(t, directory, newFakeFactory(handles...))

		folders, err := inbox.GetSubfolders(context.Background(), RootFolder)
		require.NoError(t, err)

		names := []string{}
		for _, f := range folders {
			names = append(names, f.FullName)
		}
		assert.Equal(t, expected, names)
	}
}

func TestRootSubfoldersSumCounters(t *testing.T) {
	now := time.Now()
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleInbox, "INBOX", msg("1", "a", now, 0), msg("2", "b", now, domain.FlagSeen))
	b := newFakeHandle(account(2, "bob")).
		withFolder(domain.RoleInbox, "INBOX", msg("1", "c", now, 0))

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	folders, err := inbox.GetSubfolders(context.Background(), RootFolder)
	require.NoError(t, err)

	assert.Equal(t, KnownInbox, folders[0].FullName)
	assert.Equal(t, 3, folders[0].Total)
	assert.Equal(t, 2, folders[0].Unread)
	assert.Equal(t, 0, folders[1].Total)
}

func TestKnownSubfoldersOmitsUnreachableAccount(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX")
	b := account(2, "bob")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b}}
	factory := newFakeFactory(a)
	factory.unreachable[b.ID] = true
	inbox := newTestInbox(t, directory, factory)

	folders, err := inbox.GetSubfolders(context.Background(), KnownInbox)
	require.NoError(t, err)

	require.Len(t, folders, 1)
	assert.Equal(t, virtualid.NestedPath(KnownInbox, 1, "INBOX"), folders[0].FullName)
	assert.Equal(t, "alice", folders[0].Name)
	assert.False(t, folders[0].HasSubfolders)
	assert.False(t, folders[0].HasSubscribedSubfolders)
}

func TestKnownSubfoldersSkipsUnmappedAccount(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleDrafts, "Drafts")
	b := newFakeHandle(account(2, "bob")).withFolder(domain.RoleInbox, "INBOX")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	folders, err := inbox.GetSubfolders(context.Background(), KnownDrafts)
	require.NoError(t, err)

	require.Len(t, folders, 1)
	assert.Equal(t, "alice", folders[0].Name)
}

func TestGetSubfoldersNestedIsEmpty(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	folders, err := inbox.GetSubfolders(context.Background(), virtualid.NestedPath(KnownInbox, 1, "INBOX"))
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestGetFolderNested(t *testing.T) {
	now := time.Now()
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX", msg("1", "hello", now, 0))
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	id := virtualid.NestedPath(KnownInbox, 1, "INBOX")
	folder, err := inbox.GetFolder(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, folder.FullName)
	assert.Equal(t, "alice", folder.Name)
	assert.Equal(t, 1, folder.Total)
	assert.Equal(t, 1, folder.Unread)
}

func TestGetFolderUnknownID(t *testing.T) {
	inbox := newTestInbox(t, &fakeDirectory{}, newFakeFactory())

	_, err := inbox.GetFolder(context.Background(), "no-such-folder")
	assert.ErrorIs(t, err, domain.ErrFolderNotFound)
}

func TestTotalAndUnreadSums(t *testing.T) {
	now := time.Now()
	a := newFakeHandle(account(1, "alice")).
		withFolder(domain.RoleTrash, "Trash", msg("1", "a", now, domain.FlagSeen), msg("2", "b", now, 0))
	b := newFakeHandle(account(2, "bob")).
		withFolder(domain.RoleTrash, "Deleted Items", msg("1", "c", now, 0))

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	total, unread, err := inbox.TotalAndUnread(context.Background(), KnownTrash)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, unread)
}

func TestExists(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleInbox, "INBOX")
	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a))

	for id, expected := range map[string]bool{
		RootFolder: true,
		KnownSpam:  true,
		virtualid.NestedPath(KnownInbox, 1, "INBOX"):   true,
		virtualid.NestedPath(KnownInbox, 1, "Missing"): false,
		"garbage": false,
	} {
		exists, err := inbox.Exists(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, expected, exists, id)
	}
}

func TestExpungeKnownFolderFansOut(t *testing.T) {
	a := newFakeHandle(account(1, "alice")).withFolder(domain.RoleTrash, "Trash")
	b := newFakeHandle(account(2, "bob")).withFolder(domain.RoleTrash, "Deleted Items")

	directory := &fakeDirectory{accounts: []domain.AccountDescriptor{a.account, b.account}}
	inbox := newTestInbox(t, directory, newFakeFactory(a, b))

	err := inbox.ExpungeFolder(context.Background(), KnownTrash)
	require.NoError(t, err)

	assert.Equal(t, []string{"Trash"}, a.expunged)
	assert.Equal(t, []string{"Deleted Items"}, b.expunged)
	assert.Equal(t, 1, a.closes)
	assert.Equal(t, 1, b.closes)
}

func TestStructuralMutationsDenied(t *testing.T) {
	factory := newFakeFactory()
	inbox := newTestInbox(t, &fakeDirectory{}, factory)

	assert.ErrorIs(t, inbox.CreateFolder(RootFolder, "New"), domain.ErrCreateDenied)
	assert.ErrorIs(t, inbox.UpdateFolder(KnownInbox, "Renamed"), domain.ErrUpdateDenied)
	assert.ErrorIs(t, inbox.MoveFolder(KnownInbox, KnownTrash), domain.ErrMoveDenied)
	assert.ErrorIs(t, inbox.DeleteFolder(KnownInbox), domain.ErrDeleteDenied)
	assert.ErrorIs(t, inbox.ClearFolder(KnownInbox), domain.ErrClearNotSupported)

	// Rejections happen before any network activity.
	assert.Zero(t, factory.connects)
}

func TestDefaultFolderTags(t *testing.T) {
	inbox := newTestInbox(t, &fakeDirectory{}, newFakeFactory())

	for role, expected := range map[domain.DefaultFolderRole]string{
		domain.RoleInbox:  KnownInbox,
		domain.RoleDrafts: KnownDrafts,
		domain.RoleSent:   KnownSent,
		domain.RoleSpam:   KnownSpam,
		domain.RoleTrash:  KnownTrash,
	} {
		tag, err := inbox.DefaultFolder(role)
		require.NoError(t, err)
		assert.Equal(t, expected, tag)
	}
}
