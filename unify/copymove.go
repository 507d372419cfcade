// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"context"
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/fanout"
	"github.com/unifiedmail/go-inbox-unify/mail"

	"github.com/sirupsen/logrus"
)

// CopyMessages copies the given messages from the source virtual folder
// into the destination virtual folder. Cross-account destinations are served
// by a full-fetch-and-append transfer.
func (u *UnifiedInbox) CopyMessages(ctx context.Context, sourceID, destinationID string, ids []string) error {
	return u.transfer(ctx, sourceID, destinationID, ids, false)
}

// MoveMessages behaves like CopyMessages and additionally removes the
// originals. A move whose resolved source and destination real folder
// coincide is rejected as ErrNoEqualMove instead of silently succeeding.
func (u *UnifiedInbox) MoveMessages(ctx context.Context, sourceID, destinationID string, ids []string) error {
	return u.transfer(ctx, sourceID, destinationID, ids, true)
}

func (u *UnifiedInbox) transfer(ctx context.Context, sourceID, destinationID string, ids []string, move bool) error {
	if len(ids) == 0 {
		return nil
	}

	src, err := u.parseFolderID(sourceID)
	if err != nil {
		return err
	}
	dst, err := u.parseFolderID(destinationID)
	if err != nil {
		return err
	}
	if src.kind == refRoot || dst.kind == refRoot {
		return fmt.Errorf("%s: %w", RootFolder, domain.ErrFolderDoesNotHoldMessages)
	}

	if move && sourceID == destinationID {
		return fmt.Errorf("%s: %w", sourceID, domain.ErrNoEqualMove)
	}

	refs, err := decodeRefs(ids)
	if err != nil {
		return err
	}

	// A nested source belongs to exactly one account, so its transfers run
	// on a single direct connection and every error surfaces to the caller.
	if src.kind == refNested {
		return u.transferFromNested(ctx, refs, src, dst, move)
	}

	if dst.kind == refNested {
		return u.transferToNested(ctx, refs, dst, move)
	}

	return u.transferToKnown(ctx, refs, dst, move)
}

func (u *UnifiedInbox) transferFromNested(ctx context.Context, refs []msgRef, src, dst folderRef, move bool) error {
	if dst.kind == refNested && dst.accountID != src.accountID {
		return u.crossAccountTransfer(ctx, refs, dst.accountID, dst.realFolder, move)
	}

	_, err := withAccount(u, src.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (struct{}, error) {
		destination := dst.realFolder
		if dst.kind == refKnown {
			var err error
			destination, err = resolveMapped(handle, dst.known.Role)
			if err != nil {
				return struct{}{}, fmt.Errorf("account %d has no %s folder: %w", src.accountID, dst.known.Role, domain.ErrUnknownDefaultFolder)
			}
		}

		if move && destination == src.realFolder {
			return struct{}{}, fmt.Errorf("%s in account %d: %w", src.realFolder, src.accountID, domain.ErrNoEqualMove)
		}

		return struct{}{}, u.inAccountTransfer(handle, src.realFolder, destination, backendIDs(refs), move)
	})
	return err
}

// transferToKnown resolves the destination's mapped folder per message in
// that message's own account: a known folder has no single backing account.
// A move whose source folder turns out to be the destination's mapped folder
// is a caller mistake, not a backend failure, so it travels out of the
// fan-out as the task's value and fails the whole call instead of degrading
// to a logged no-result slot.
func (u *UnifiedInbox) transferToKnown(ctx context.Context, refs []msgRef, dst folderRef, move bool) error {
	groups := groupRefs(refs)
	tasks := make([]fanout.Task[error], 0, len(groups))
	for accountID, folders := range groups {
		folders := folders
		account, err := u.describeAccount(accountID)
		if err != nil {
			return err
		}

		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) (error, error) {
			destination, err := resolveMapped(handle, dst.known.Role)
			if err != nil {
				return nil, err
			}

			for folder, refs := range folders {
				if folder == destination {
					if move {
						return fmt.Errorf("%s in account %d: %w", folder, handle.Account().ID, domain.ErrNoEqualMove), nil
					}
					continue
				}
				err := u.inAccountTransfer(handle, folder, destination, backendIDs(refs), move)
				if err != nil {
					return nil, err
				}
			}
			return nil, nil
		}))
	}

	results, err := fanout.Collect(ctx, u.pool, u.fl, tasks)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.OK && r.Value != nil {
			return r.Value
		}
	}
	return nil
}

// transferToNested splits the messages into the destination account's own
// (in-account copy/move) and foreign ones (cross-account transfer).
func (u *UnifiedInbox) transferToNested(ctx context.Context, refs []msgRef, dst folderRef, move bool) error {
	sameAccount := []msgRef{}
	foreign := []msgRef{}
	for _, ref := range refs {
		if ref.accountID == dst.accountID {
			if move && ref.folder == dst.realFolder {
				return fmt.Errorf("%s in account %d: %w", ref.folder, ref.accountID, domain.ErrNoEqualMove)
			}
			sameAccount = append(sameAccount, ref)
		} else {
			foreign = append(foreign, ref)
		}
	}

	if len(sameAccount) > 0 {
		_, err := withAccount(u, dst.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (struct{}, error) {
			for folder, refs := range groupRefs(sameAccount)[dst.accountID] {
				err := u.inAccountTransfer(handle, folder, dst.realFolder, backendIDs(refs), move)
				if err != nil {
					return struct{}{}, err
				}
			}
			return struct{}{}, nil
		})
		if err != nil {
			return err
		}
	}

	if len(foreign) > 0 {
		return u.crossAccountTransfer(ctx, foreign, dst.accountID, dst.realFolder, move)
	}

	return nil
}

func (u *UnifiedInbox) inAccountTransfer(handle domain.BackendHandle, source, destination string, ids []string, move bool) error {
	if move {
		_, err := handle.MoveMessages(source, destination, ids)
		return err
	}

	_, err := handle.CopyMessages(source, destination, ids)
	return err
}

// crossAccountTransfer reads the full messages from their source accounts,
// appends them to the destination account and, when moving, deletes the
// successfully transferred originals. Each phase owns its own connections.
func (u *UnifiedInbox) crossAccountTransfer(ctx context.Context, refs []msgRef, destAccountID int, destFolder string, move bool) error {
	fetched, err := u.fetchFullMessages(ctx, refs)
	if err != nil {
		return err
	}
	if len(fetched) == 0 {
		return nil
	}

	transferred, err := withAccount(u, destAccountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) ([]msgRef, error) {
		done := []msgRef{}
		for _, f := range fetched {
			// The raw bytes travel verbatim; unparseable headers only
			// degrade the log line to the envelope subject.
			subject, messageID, err := mail.HeaderInfos(f.msg.Raw)
			if err != nil {
				subject = f.msg.Subject
			}

			_, err = handle.AppendMessage(destFolder, f.msg.Raw, f.msg.Flags&^domain.FlagRecent)
			if err != nil {
				u.l.WithFields(logrus.Fields{
					"account":     account.ID,
					"destination": destFolder,
					"subject":     mail.ShortSubject(subject),
					"error":       err,
				}).Warn("Could not append transferred message, skipping")
				continue
			}

			u.l.WithFields(logrus.Fields{
				"account":     account.ID,
				"destination": destFolder,
				"subject":     mail.ShortSubject(subject),
				"messageId":   messageID,
			}).Debug("Transferred message")
			done = append(done, f.ref)
		}
		return done, nil
	})
	if err != nil {
		return err
	}

	if !move || len(transferred) == 0 {
		return nil
	}

	// Only originals that actually arrived at the destination are removed.
	groups := groupRefs(transferred)
	tasks := make([]fanout.Task[struct{}], 0, len(groups))
	for accountID, folders := range groups {
		folders := folders
		account, err := u.describeAccount(accountID)
		if err != nil {
			return err
		}

		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) (struct{}, error) {
			for folder, refs := range folders {
				err := handle.DeleteMessages(folder, backendIDs(refs))
				if err != nil {
					return struct{}{}, err
				}
			}
			return struct{}{}, nil
		}))
	}

	_, err = fanout.Collect(ctx, u.pool, u.fl, tasks)
	return err
}

type fetchedMessage struct {
	ref msgRef
	msg *domain.MailMessage
}

func (u *UnifiedInbox) fetchFullMessages(ctx context.Context, refs []msgRef) ([]fetchedMessage, error) {
	groups := groupRefs(refs)
	tasks := make([]fanout.Task[[]fetchedMessage], 0, len(groups))
	for accountID, folders := range groups {
		folders := folders
		account, err := u.describeAccount(accountID)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) ([]fetchedMessage, error) {
			out := []fetchedMessage{}
			for folder, refs := range folders {
				for _, ref := range refs {
					m, err := handle.FullMessage(folder, ref.id)
					if err != nil {
						return nil, err
					}
					out = append(out, fetchedMessage{ref: ref, msg: m})
				}
			}
			return out, nil
		}))
	}

	results, err := fanout.Collect(ctx, u.pool, u.fl, tasks)
	if err != nil {
		return nil, err
	}

	fetched := []fetchedMessage{}
	for _, r := range results {
		if r.OK {
			fetched = append(fetched, r.Value...)
		}
	}

	return fetched, nil
}
