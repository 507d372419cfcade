// SPDX-License-Identifier: GPL-3.0-or-later
package domain

// Capabilities advertises the optional operations a backend supports. The
// aggregator queries this once per task and branches explicitly instead of
// probing with failing calls.
type Capabilities struct {
	// NativeThreading means ThreadSort returns server-built conversation
	// trees, annotated via MailMessage.ThreadLevel.
	NativeThreading bool

	// EnhancedStatus means Status is cheap and returns exact counters.
	EnhancedStatus bool
}

// BackendHandle is one connected session against one backend account. A
// handle is owned by exactly one fan-out task at a time and must be closed
// by its owner on every exit path. Operations that a backend cannot perform
// return ErrUnsupported; that is a branch for the caller, not a failure.
type BackendHandle interface {
	Account() AccountDescriptor
	Capabilities() Capabilities

	ListFolders() ([]*MailFolder, error)
	GetFolder(fullName string) (*MailFolder, error)
	// DefaultFolder resolves which real folder plays the given role for
	// this account. Returns ErrUnknownDefaultFolder if the account has no
	// such mapping.
	DefaultFolder(role DefaultFolderRole) (string, error)
	Status(folder string) (total int, unread int, err error)
	Expunge(folder string) error

	AllMessages(folder string) ([]*MailMessage, error)
	UnreadMessages(folder string, limit int) ([]*MailMessage, error)
	SearchMessages(folder string, term SearchTerm) ([]*MailMessage, error)
	MessagesByID(folder string, ids []string) ([]*MailMessage, error)
	// FullMessage fetches a single message including its raw body.
	FullMessage(folder, id string) (*MailMessage, error)
	// ThreadSort returns the folder's messages in server thread order,
	// or ErrUnsupported when NativeThreading is not advertised.
	ThreadSort(folder string) ([]*MailMessage, error)

	DeleteMessages(folder string, ids []string) error
	UpdateFlags(folder string, ids []string, flags int, set bool) error
	UpdateColorLabel(folder string, ids []string, label int) error
	CopyMessages(src, dst string, ids []string) ([]string, error)
	MoveMessages(src, dst string, ids []string) ([]string, error)
	AppendMessage(folder string, raw []byte, flags int) (string, error)

	Close() error
}
