// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"context"
	"fmt"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/fanout"
	"github.com/unifiedmail/go-inbox-unify/mergesort"
	"github.com/unifiedmail/go-inbox-unify/virtualid"
)

// virtualize rewrites one backend message into its caller-visible form: the
// id becomes the encoded virtual token, the folder the virtual folder, the
// account fields the owning account. Everything else passes through.
func virtualize(m *domain.MailMessage, account domain.AccountDescriptor, realFolder, virtualFolder string) *domain.MailMessage {
	v := *m
	v.ID = virtualid.Encode(account.ID, realFolder, m.ID)
	v.Folder = virtualFolder
	v.AccountID = account.ID
	v.AccountName = account.Name
	return &v
}

func virtualizeAll(msgs []*domain.MailMessage, account domain.AccountDescriptor, realFolder, virtualFolder string) []*domain.MailMessage {
	out := make([]*domain.MailMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, virtualize(m, account, realFolder, virtualFolder))
	}
	return out
}

// collectMessages runs one read operation against every account mapped to a
// known folder, or against the one account of a nested folder, and returns
// the union of the virtualized results. Order is undefined; the caller
// sorts.
func (u *UnifiedInbox) collectMessages(ctx context.Context, ref folderRef, fetch func(handle domain.BackendHandle, realFolder string) ([]*domain.MailMessage, error)) ([]*domain.MailMessage, error) {
	switch ref.kind {
	case refRoot:
		return nil, fmt.Errorf("%s: %w", ref.id, domain.ErrFolderDoesNotHoldMessages)
	case refNested:
		return withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) ([]*domain.MailMessage, error) {
			msgs, err := fetch(handle, ref.realFolder)
			if err != nil {
				return nil, err
			}
			return virtualizeAll(msgs, account, ref.realFolder, ref.id), nil
		})
	}

	accounts, err := u.eligibleAccounts()
	if err != nil {
		return nil, err
	}

	tasks := make([]fanout.Task[[]*domain.MailMessage], 0, len(accounts))
	for _, account := range accounts {
		account := account
		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) ([]*domain.MailMessage, error) {
			realFolder, err := resolveMapped(handle, ref.known.Role)
			if err != nil {
				return nil, err
			}
			msgs, err := fetch(handle, realFolder)
			if err != nil {
				return nil, err
			}
			return virtualizeAll(msgs, account, realFolder, ref.id), nil
		}))
	}

	results, err := fanout.Collect(ctx, u.pool, u.fl, tasks)
	if err != nil {
		return nil, err
	}

	merged := []*domain.MailMessage{}
	for _, r := range results {
		if r.OK {
			merged = append(merged, r.Value...)
		}
	}

	return merged, nil
}

// GetAllMessages returns the folder's messages in the requested order. The
// index window applies after the global sort; windowing per account would be
// incorrect.
func (u *UnifiedInbox) GetAllMessages(ctx context.Context, folderID string, field domain.SortField, order domain.SortOrder, from, to int) ([]*domain.MailMessage, error) {
	ref, err := u.parseFolderID(folderID)
	if err != nil {
		return nil, err
	}

	msgs, err := u.collectMessages(ctx, ref, func(handle domain.BackendHandle, realFolder string) ([]*domain.MailMessage, error) {
		return handle.AllMessages(realFolder)
	})
	if err != nil {
		return nil, err
	}

	mergesort.NewComparator(field, order, u.configuration.Locale).Sort(msgs)
	return mergesort.Window(msgs, from, to), nil
}

func (u *UnifiedInbox) SearchMessages(ctx context.Context, folderID string, term domain.SearchTerm, field domain.SortField, order domain.SortOrder) ([]*domain.MailMessage, error) {
	ref, err := u.parseFolderID(folderID)
	if err != nil {
		return nil, err
	}

	msgs, err := u.collectMessages(ctx, ref, func(handle domain.BackendHandle, realFolder string) ([]*domain.MailMessage, error) {
		return handle.SearchMessages(realFolder, term)
	})
	if err != nil {
		return nil, err
	}

	mergesort.NewComparator(field, order, u.configuration.Locale).Sort(msgs)
	return msgs, nil
}

// GetUnreadMessages returns up to limit unread messages, newest first across
// all accounts. A limit of 0 or less returns all of them.
func (u *UnifiedInbox) GetUnreadMessages(ctx context.Context, folderID string, limit int) ([]*domain.MailMessage, error) {
	ref, err := u.parseFolderID(folderID)
	if err != nil {
		return nil, err
	}

	msgs, err := u.collectMessages(ctx, ref, func(handle domain.BackendHandle, realFolder string) ([]*domain.MailMessage, error) {
		return handle.UnreadMessages(realFolder, limit)
	})
	if err != nil {
		return nil, err
	}

	mergesort.NewComparator(domain.SortByDate, domain.Descending, u.configuration.Locale).Sort(msgs)
	if limit > 0 {
		msgs = mergesort.Window(msgs, 0, limit)
	}

	return msgs, nil
}

type positioned struct {
	pos int
	msg *domain.MailMessage
}

// GetMessages fetches messages by explicit virtual id list. Results come
// back in the caller's positional order; ids whose account or message could
// not be reached leave a nil slot. An empty id list submits zero tasks.
func (u *UnifiedInbox) GetMessages(ctx context.Context, ids []string) ([]*domain.MailMessage, error) {
	result := make([]*domain.MailMessage, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	refs, err := decodeRefs(ids)
	if err != nil {
		return nil, err
	}

	results, err := u.fetchGrouped(ctx, groupRefs(refs))
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if !r.OK {
			continue
		}
		for _, p := range r.Value {
			result[p.pos] = p.msg
		}
	}

	return result, nil
}

// fetchGrouped fans out one task per account that has ids present, fetching
// each account's folders in turn and tagging every message with its caller
// position.
func (u *UnifiedInbox) fetchGrouped(ctx context.Context, groups map[int]map[string][]msgRef) ([]fanout.Result[[]positioned], error) {
	tasks := make([]fanout.Task[[]positioned], 0, len(groups))
	for accountID, folders := range groups {
		folders := folders
		account, err := u.describeAccount(accountID)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) ([]positioned, error) {
			out := []positioned{}
			for folder, refs := range folders {
				msgs, err := handle.MessagesByID(folder, backendIDs(refs))
				if err != nil {
					return nil, err
				}

				// Scatter by backend id; a backend may return fewer messages
				// than requested.
				positions := map[string][]int{}
				for _, ref := range refs {
					positions[ref.id] = append(positions[ref.id], ref.pos)
				}
				for _, m := range msgs {
					for _, pos := range positions[m.ID] {
						out = append(out, positioned{pos: pos, msg: virtualize(m, handle.Account(), folder, folder)})
					}
				}
			}
			return out, nil
		}))
	}

	return fanout.Collect(ctx, u.pool, u.fl, tasks)
}

// GetMessage fetches one message including its raw body.
func (u *UnifiedInbox) GetMessage(ctx context.Context, id string) (*domain.MailMessage, error) {
	accountID, folder, messageID, err := virtualid.Decode(id)
	if err != nil {
		return nil, err
	}

	return withAccount(u, accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (*domain.MailMessage, error) {
		m, err := handle.FullMessage(folder, messageID)
		if err != nil {
			return nil, err
		}
		return virtualize(m, account, folder, folder), nil
	})
}

// GetThreadSortedMessages returns the folder's conversations, searched by
// term, flattened into thread order. Threads are built per account; only the
// root messages compete in the global ordering.
func (u *UnifiedInbox) GetThreadSortedMessages(ctx context.Context, folderID string, term domain.SearchTerm, field domain.SortField, order domain.SortOrder) ([]*domain.MailMessage, error) {
	ref, err := u.parseFolderID(folderID)
	if err != nil {
		return nil, err
	}

	wholeFolder := term.Pattern == "" && !term.OnlyUnread

	msgs, err := u.collectMessages(ctx, ref, func(handle domain.BackendHandle, realFolder string) ([]*domain.MailMessage, error) {
		if wholeFolder && handle.Capabilities().NativeThreading {
			return handle.ThreadSort(realFolder)
		}
		if wholeFolder {
			return handle.AllMessages(realFolder)
		}
		return handle.SearchMessages(realFolder, term)
	})
	if err != nil {
		return nil, err
	}

	return u.threadAndFlatten(msgs, field, order), nil
}

// GetThreadSortedMessagesByID is the explicit id-list variant of the thread
// view.
func (u *UnifiedInbox) GetThreadSortedMessagesByID(ctx context.Context, ids []string, field domain.SortField, order domain.SortOrder) ([]*domain.MailMessage, error) {
	if len(ids) == 0 {
		return []*domain.MailMessage{}, nil
	}

	refs, err := decodeRefs(ids)
	if err != nil {
		return nil, err
	}

	results, err := u.fetchGrouped(ctx, groupRefs(refs))
	if err != nil {
		return nil, err
	}

	msgs := []*domain.MailMessage{}
	for _, r := range results {
		if !r.OK {
			continue
		}
		for _, p := range r.Value {
			msgs = append(msgs, p.msg)
		}
	}

	return u.threadAndFlatten(msgs, field, order), nil
}

// threadAndFlatten builds per-account threads from level annotations and
// orders them globally by their roots.
func (u *UnifiedInbox) threadAndFlatten(msgs []*domain.MailMessage, field domain.SortField, order domain.SortOrder) []*domain.MailMessage {
	perAccount := map[int][]*domain.MailMessage{}
	accountOrder := []int{}
	for _, m := range msgs {
		if _, ok := perAccount[m.AccountID]; !ok {
			accountOrder = append(accountOrder, m.AccountID)
		}
		perAccount[m.AccountID] = append(perAccount[m.AccountID], m)
	}

	threads := []*mergesort.Thread{}
	for _, accountID := range accountOrder {
		threads = append(threads, mergesort.BuildThreads(perAccount[accountID])...)
	}

	return mergesort.SortThreads(threads, mergesort.NewComparator(field, order, u.configuration.Locale))
}

// DeleteMessages deletes the given messages in their own accounts. Partial
// success is expected; per-account failures are logged, never raised.
func (u *UnifiedInbox) DeleteMessages(ctx context.Context, ids []string) error {
	return u.mutateGrouped(ctx, ids, func(handle domain.BackendHandle, folder string, backendIDs []string) error {
		return handle.DeleteMessages(folder, backendIDs)
	})
}

func (u *UnifiedInbox) UpdateMessageFlags(ctx context.Context, ids []string, flags int, set bool) error {
	return u.mutateGrouped(ctx, ids, func(handle domain.BackendHandle, folder string, backendIDs []string) error {
		return handle.UpdateFlags(folder, backendIDs, flags, set)
	})
}

func (u *UnifiedInbox) UpdateMessageColorLabel(ctx context.Context, ids []string, label int) error {
	return u.mutateGrouped(ctx, ids, func(handle domain.BackendHandle, folder string, backendIDs []string) error {
		return handle.UpdateColorLabel(folder, backendIDs, label)
	})
}

func (u *UnifiedInbox) mutateGrouped(ctx context.Context, ids []string, mutate func(handle domain.BackendHandle, folder string, backendIDs []string) error) error {
	if len(ids) == 0 {
		return nil
	}

	refs, err := decodeRefs(ids)
	if err != nil {
		return err
	}

	groups := groupRefs(refs)
	tasks := make([]fanout.Task[struct{}], 0, len(groups))
	for accountID, folders := range groups {
		folders := folders
		account, err := u.describeAccount(accountID)
		if err != nil {
			return err
		}

		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) (struct{}, error) {
			for folder, refs := range folders {
				err := mutate(handle, folder, backendIDs(refs))
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

// AppendMessages stores raw messages into a nested folder and returns their
// virtual ids where the backend reports them, empty strings otherwise.
// Appending to a known folder is rejected; it has no single backing account.
func (u *UnifiedInbox) AppendMessages(ctx context.Context, folderID string, raws [][]byte, flags int) ([]string, error) {
	ref, err := u.parseFolderID(folderID)
	if err != nil {
		return nil, err
	}

	switch ref.kind {
	case refRoot:
		return nil, fmt.Errorf("%s: %w", folderID, domain.ErrFolderDoesNotHoldMessages)
	case refKnown:
		return nil, fmt.Errorf("%s: %w", folderID, domain.ErrInvalidDestinationFolder)
	}

	return withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) ([]string, error) {
		ids := make([]string, 0, len(raws))
		for _, raw := range raws {
			id, err := handle.AppendMessage(ref.realFolder, raw, flags)
			if err != nil {
				return nil, err
			}
			if id == "" {
				ids = append(ids, "")
				continue
			}
			ids = append(ids, virtualid.Encode(account.ID, ref.realFolder, id))
		}
		return ids, nil
	})
}

// SaveDraft is always rejected: drafts must target a concrete nested folder,
// never the unified mailbox itself.
func (u *UnifiedInbox) SaveDraft(raw []byte) error {
	return domain.ErrDraftsNotSupported
}
