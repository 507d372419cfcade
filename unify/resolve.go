// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/fanout"
	"github.com/unifiedmail/go-inbox-unify/virtualid"
)

// RootFolder is the full name of the synthetic root. The five known folders
// live directly beneath it; nested per-account folders beneath those.
const RootFolder = "unified"

const (
	KnownInbox  = RootFolder + virtualid.Separator + "Inbox"
	KnownDrafts = RootFolder + virtualid.Separator + "Drafts"
	KnownSent   = RootFolder + virtualid.Separator + "Sent"
	KnownSpam   = RootFolder + virtualid.Separator + "Spam"
	KnownTrash  = RootFolder + virtualid.Separator + "Trash"
)

type knownFolder struct {
	FullName string
	Name     string
	Role     domain.DefaultFolderRole
}

// knownFolders is the fixed, ordered set of virtual categories. The order is
// part of the caller-visible contract of the root listing.
var knownFolders = []knownFolder{
	{KnownInbox, "Inbox", domain.RoleInbox},
	{KnownDrafts, "Drafts", domain.RoleDrafts},
	{KnownSent, "Sent", domain.RoleSent},
	{KnownSpam, "Spam", domain.RoleSpam},
	{KnownTrash, "Trash", domain.RoleTrash},
}

// DefaultFolder returns the fixed known-folder tag playing the given role.
// The unified mailbox always has all five, independent of any account.
func (u *UnifiedInbox) DefaultFolder(role domain.DefaultFolderRole) (string, error) {
	for _, kf := range knownFolders {
		if kf.Role == role {
			return kf.FullName, nil
		}
	}

	return "", fmt.Errorf("%s: %w", role, domain.ErrUnknownDefaultFolder)
}

type refKind int

const (
	refRoot refKind = iota
	refKnown
	refNested
)

// folderRef is a parsed virtual folder id: the root, one of the known
// folders, or one account's real folder nested beneath a known folder.
type folderRef struct {
	id   string
	kind refKind

	known knownFolder

	accountID  int
	realFolder string
}

func (u *UnifiedInbox) parseFolderID(id string) (folderRef, error) {
	if id == RootFolder {
		return folderRef{id: id, kind: refRoot}, nil
	}

	for _, kf := range knownFolders {
		if id == kf.FullName {
			return folderRef{id: id, kind: refKnown, known: kf}, nil
		}
	}

	for _, kf := range knownFolders {
		if !strings.HasPrefix(id, kf.FullName+virtualid.Separator) {
			continue
		}

		accountID, realFolder, err := virtualid.SplitNested(kf.FullName, id)
		if err != nil {
			return folderRef{}, fmt.Errorf("%s: %w", id, domain.ErrFolderNotFound)
		}

		return folderRef{id: id, kind: refNested, known: kf, accountID: accountID, realFolder: realFolder}, nil
	}

	return folderRef{}, fmt.Errorf("%s: %w", id, domain.ErrFolderNotFound)
}

// resolveMapped resolves which real folder plays the known folder's role in
// this account. An account without a mapping contributes nothing; that is a
// valid empty contribution, not an error.
func resolveMapped(handle domain.BackendHandle, role domain.DefaultFolderRole) (string, error) {
	folder, err := handle.DefaultFolder(role)
	if errors.Is(err, domain.ErrUnknownDefaultFolder) || errors.Is(err, domain.ErrUnsupported) {
		return "", fanout.ErrNoContribution
	}
	if err != nil {
		return "", fmt.Errorf("could not resolve %s folder: %w", role, err)
	}

	return folder, nil
}

// msgRef is one decoded virtual message id, tagged with the caller's
// positional index so scatter-back can restore request order.
type msgRef struct {
	pos       int
	accountID int
	folder    string
	id        string
}

func decodeRefs(ids []string) ([]msgRef, error) {
	refs := make([]msgRef, 0, len(ids))
	for i, id := range ids {
		accountID, folder, messageID, err := virtualid.Decode(id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, msgRef{pos: i, accountID: accountID, folder: folder, id: messageID})
	}

	return refs, nil
}

// groupRefs buckets decoded ids by account, then by real folder within the
// account. One fan-out task per account handles all of its folders.
func groupRefs(refs []msgRef) map[int]map[string][]msgRef {
	groups := map[int]map[string][]msgRef{}
	for _, ref := range refs {
		folders, ok := groups[ref.accountID]
		if !ok {
			folders = map[string][]msgRef{}
			groups[ref.accountID] = folders
		}
		folders[ref.folder] = append(folders[ref.folder], ref)
	}

	return groups
}

func backendIDs(refs []msgRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.id)
	}

	return ids
}
