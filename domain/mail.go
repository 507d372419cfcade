// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "time"

// DefaultFolderRole names one of the standard folders every account is
// expected to provide a mapping for. An account without a mapping for a role
// simply contributes nothing to operations on that role's known folder.
type DefaultFolderRole int

const (
	RoleInbox DefaultFolderRole = iota
	RoleDrafts
	RoleSent
	RoleSpam
	RoleTrash
)

func (r DefaultFolderRole) String() string {
	switch r {
	case RoleInbox:
		return "inbox"
	case RoleDrafts:
		return "drafts"
	case RoleSent:
		return "sent"
	case RoleSpam:
		return "spam"
	case RoleTrash:
		return "trash"
	}
	return "unknown"
}

type SortField int

const (
	SortByDate SortField = iota
	SortByFrom
	SortByTo
	SortBySubject
	SortBySize
	SortByColorLabel
)

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Message flag bitmask values.
const (
	FlagSeen = 1 << iota
	FlagAnswered
	FlagFlagged
	FlagDeleted
	FlagDraft
	FlagRecent
)

// MailFolder is the caller-visible folder structure. For synthetic folders
// the counters are computed by aggregation; backends fill them from their
// own status data.
type MailFolder struct {
	FullName string
	Name     string

	HoldsMessages bool
	HoldsFolders  bool

	HasSubfolders           bool
	HasSubscribedSubfolders bool

	Total  int
	Unread int
}

// MailMessage is one mail message as seen by the caller. Raw is only
// populated by full fetches (needed for cross-account transfers); list
// operations leave it nil.
type MailMessage struct {
	ID          string
	Folder      string
	AccountID   int
	AccountName string

	Subject string
	From    string
	To      string
	Date    time.Time
	Size    int64

	Flags      int
	ColorLabel int

	// ThreadLevel is the nesting depth within a conversation, 0 for a
	// thread root.
	ThreadLevel int

	Raw []byte
}

// SearchTerm is the minimal search contract the aggregator needs: a
// free-text pattern and an unread restriction. Backends interpret the
// pattern against subject and sender.
type SearchTerm struct {
	Pattern    string
	OnlyUnread bool
}
