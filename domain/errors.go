// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import "errors"

// Errors raised by the aggregation core. Validation errors are returned to
// the caller before any fan-out starts; errors inside a single account's
// task are logged and degrade to an empty contribution instead.
var (
	ErrNotConnected         = errors.New("mail account is not connected")
	ErrFolderNotFound       = errors.New("folder not found")
	ErrUnknownDefaultFolder = errors.New("account has no folder for this role")
	ErrNoEqualMove          = errors.New("source and destination folder are equal")

	ErrCreateDenied = errors.New("creating folders is not supported by the unified mailbox")
	ErrDeleteDenied = errors.New("deleting folders is not supported by the unified mailbox")
	ErrUpdateDenied = errors.New("updating folders is not supported by the unified mailbox")
	ErrMoveDenied   = errors.New("moving folders is not supported by the unified mailbox")

	// ErrClearNotSupported is retained for callers of the legacy clear
	// operation; expunge supersedes it.
	ErrClearNotSupported = errors.New("clearing folders is not supported, use expunge")

	ErrDraftsNotSupported        = errors.New("drafts must be saved to a concrete account folder")
	ErrInvalidDestinationFolder  = errors.New("destination must be a concrete account folder")
	ErrFolderDoesNotHoldMessages = errors.New("folder does not hold messages")

	ErrTimeout            = errors.New("timeout while waiting for account")
	ErrMalformedVirtualID = errors.New("malformed virtual id")

	// ErrUnsupported signals an optional backend operation that this
	// backend does not provide. Callers branch on it; it never aborts an
	// aggregate call.
	ErrUnsupported = errors.New("operation not supported by backend")
)
