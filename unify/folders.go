// SPDX-License-Identifier: GPL-3.0-or-later
package unify

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/fanout"
	"github.com/unifiedmail/go-inbox-unify/virtualid"
)

// GetRootFolder returns the synthetic root. It holds the five known folders
// and never any messages.
func (u *UnifiedInbox) GetRootFolder() *domain.MailFolder {
	return &domain.MailFolder{
		FullName:                RootFolder,
		Name:                    RootFolder,
		HoldsMessages:           false,
		HoldsFolders:            true,
		HasSubfolders:           true,
		HasSubscribedSubfolders: true,
	}
}

func (u *UnifiedInbox) GetFolder(ctx context.Context, id string) (*domain.MailFolder, error) {
	ref, err := u.parseFolderID(id)
	if err != nil {
		return nil, err
	}

	switch ref.kind {
	case refRoot:
		return u.GetRootFolder(), nil
	case refKnown:
		total, unread, err := u.TotalAndUnread(ctx, id)
		if err != nil {
			return nil, err
		}
		return &domain.MailFolder{
			FullName:                ref.known.FullName,
			Name:                    ref.known.Name,
			HoldsMessages:           true,
			HoldsFolders:            true,
			HasSubfolders:           true,
			HasSubscribedSubfolders: true,
			Total:                   total,
			Unread:                  unread,
		}, nil
	}

	return withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (*domain.MailFolder, error) {
		folder, err := handle.GetFolder(ref.realFolder)
		if err != nil {
			return nil, err
		}
		return nestedFolder(ref.known, account, ref.realFolder, folder), nil
	})
}

// Exists reports whether the virtual folder id names anything. The root and
// the known folders always exist; a nested id exists if its backend folder
// does.
func (u *UnifiedInbox) Exists(ctx context.Context, id string) (bool, error) {
	ref, err := u.parseFolderID(id)
	if errors.Is(err, domain.ErrFolderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if ref.kind != refNested {
		return true, nil
	}

	return withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (bool, error) {
		_, err := handle.GetFolder(ref.realFolder)
		if errors.Is(err, domain.ErrFolderNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	})
}

func (u *UnifiedInbox) GetSubfolders(ctx context.Context, parentID string) ([]*domain.MailFolder, error) {
	ref, err := u.parseFolderID(parentID)
	if err != nil {
		return nil, err
	}

	switch ref.kind {
	case refRoot:
		return u.rootSubfolders(ctx)
	case refKnown:
		return u.knownSubfolders(ctx, ref.known)
	}

	// The virtualization is exactly one level deep.
	return []*domain.MailFolder{}, nil
}

type roleCounters struct {
	role   domain.DefaultFolderRole
	total  int
	unread int
}

// rootSubfolders returns the five known folders in their fixed order,
// independent of account count. The per-account counters are gathered with a
// bounded wait so one stuck account cannot stall the whole root listing.
func (u *UnifiedInbox) rootSubfolders(ctx context.Context) ([]*domain.MailFolder, error) {
	accounts, err := u.eligibleAccounts()
	if err != nil {
		return nil, err
	}

	tasks := make([]fanout.Task[[]roleCounters], 0, len(accounts))
	for _, account := range accounts {
		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) ([]roleCounters, error) {
			counters := []roleCounters{}
			for _, kf := range knownFolders {
				folder, err := resolveMapped(handle, kf.Role)
				if err != nil {
					continue
				}
				total, unread, err := handle.Status(folder)
				if err != nil {
					continue
				}
				counters = append(counters, roleCounters{role: kf.Role, total: total, unread: unread})
			}
			return counters, nil
		}))
	}

	results, err := fanout.CollectBounded(ctx, u.pool, u.fl, tasks, u.configuration.RootListTimeout)
	if err != nil {
		return nil, err
	}

	totals := map[domain.DefaultFolderRole]roleCounters{}
	for _, r := range results {
		if !r.OK {
			continue
		}
		for _, c := range r.Value {
			sum := totals[c.role]
			sum.total += c.total
			sum.unread += c.unread
			totals[c.role] = sum
		}
	}

	folders := make([]*domain.MailFolder, 0, len(knownFolders))
	for _, kf := range knownFolders {
		folders = append(folders, &domain.MailFolder{
			FullName:                kf.FullName,
			Name:                    kf.Name,
			HoldsMessages:           true,
			HoldsFolders:            true,
			HasSubfolders:           true,
			HasSubscribedSubfolders: true,
			Total:                   totals[kf.Role].total,
			Unread:                  totals[kf.Role].unread,
		})
	}

	return folders, nil
}

// knownSubfolders returns one synthetic folder per enabled account whose
// mapped real folder exists, named after the account. Unreachable accounts
// are silently omitted.
func (u *UnifiedInbox) knownSubfolders(ctx context.Context, kf knownFolder) ([]*domain.MailFolder, error) {
	accounts, err := u.eligibleAccounts()
	if err != nil {
		return nil, err
	}

	tasks := make([]fanout.Task[*domain.MailFolder], 0, len(accounts))
	for _, account := range accounts {
		account := account
		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) (*domain.MailFolder, error) {
			realFolder, err := resolveMapped(handle, kf.Role)
			if err != nil {
				return nil, err
			}

			folder, err := handle.GetFolder(realFolder)
			if errors.Is(err, domain.ErrFolderNotFound) {
				return nil, fanout.ErrNoContribution
			}
			if err != nil {
				return nil, err
			}

			return nestedFolder(kf, account, realFolder, folder), nil
		}))
	}

	results, err := fanout.Collect(ctx, u.pool, u.fl, tasks)
	if err != nil {
		return nil, err
	}

	folders := []*domain.MailFolder{}
	for _, r := range results {
		if r.OK {
			folders = append(folders, r.Value)
		}
	}

	// Completion order must not show through.
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].Name < folders[j].Name
	})

	return folders, nil
}

// nestedFolder builds the caller-visible view of one account's real folder:
// addressed beneath the known folder, named after the account, explicitly
// one level deep.
func nestedFolder(kf knownFolder, account domain.AccountDescriptor, realFolder string, backend *domain.MailFolder) *domain.MailFolder {
	return &domain.MailFolder{
		FullName:                virtualid.NestedPath(kf.FullName, account.ID, realFolder),
		Name:                    account.Name,
		HoldsMessages:           backend.HoldsMessages,
		HoldsFolders:            false,
		HasSubfolders:           false,
		HasSubscribedSubfolders: false,
		Total:                   backend.Total,
		Unread:                  backend.Unread,
	}
}

// TotalAndUnread sums the counters of every account's mapped folder for a
// known folder; accounts contributing no result count as zero.
func (u *UnifiedInbox) TotalAndUnread(ctx context.Context, id string) (int, int, error) {
	ref, err := u.parseFolderID(id)
	if err != nil {
		return 0, 0, err
	}

	switch ref.kind {
	case refRoot:
		return 0, 0, fmt.Errorf("%s: %w", id, domain.ErrFolderDoesNotHoldMessages)
	case refNested:
		type counters struct{ total, unread int }
		c, err := withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (counters, error) {
			total, unread, err := handle.Status(ref.realFolder)
			return counters{total, unread}, err
		})
		return c.total, c.unread, err
	}

	accounts, err := u.eligibleAccounts()
	if err != nil {
		return 0, 0, err
	}

	tasks := make([]fanout.Task[[2]int], 0, len(accounts))
	for _, account := range accounts {
		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) ([2]int, error) {
			folder, err := resolveMapped(handle, ref.known.Role)
			if err != nil {
				return [2]int{}, err
			}
			total, unread, err := handle.Status(folder)
			if err != nil {
				return [2]int{}, err
			}
			return [2]int{total, unread}, nil
		}))
	}

	results, err := fanout.Collect(ctx, u.pool, u.fl, tasks)
	if err != nil {
		return 0, 0, err
	}

	total, unread := 0, 0
	for _, r := range results {
		if r.OK {
			total += r.Value[0]
			unread += r.Value[1]
		}
	}

	return total, unread, nil
}

// ExpungeFolder removes the deleted-flagged messages from every account's
// mapped folder (known id) or from the one backend folder (nested id).
func (u *UnifiedInbox) ExpungeFolder(ctx context.Context, id string) error {
	ref, err := u.parseFolderID(id)
	if err != nil {
		return err
	}

	switch ref.kind {
	case refRoot:
		return fmt.Errorf("%s: %w", id, domain.ErrFolderDoesNotHoldMessages)
	case refNested:
		_, err := withAccount(u, ref.accountID, func(account domain.AccountDescriptor, handle domain.BackendHandle) (struct{}, error) {
			return struct{}{}, handle.Expunge(ref.realFolder)
		})
		return err
	}

	accounts, err := u.eligibleAccounts()
	if err != nil {
		return err
	}

	tasks := make([]fanout.Task[struct{}], 0, len(accounts))
	for _, account := range accounts {
		tasks = append(tasks, connectTask(u, account, func(handle domain.BackendHandle) (struct{}, error) {
			folder, err := resolveMapped(handle, ref.known.Role)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, handle.Expunge(folder)
		}))
	}

	_, err = fanout.Collect(ctx, u.pool, u.fl, tasks)
	return err
}

// ClearFolder is a legacy operation superseded by ExpungeFolder.
func (u *UnifiedInbox) ClearFolder(id string) error {
	return fmt.Errorf("%s: %w", id, domain.ErrClearNotSupported)
}

// The virtual folder structure is fixed; structural mutations are rejected
// before any network activity.

func (u *UnifiedInbox) CreateFolder(parentID, name string) error {
	return fmt.Errorf("cannot create %s below %s: %w", name, parentID, domain.ErrCreateDenied)
}

func (u *UnifiedInbox) UpdateFolder(id, name string) error {
	return fmt.Errorf("cannot rename %s: %w", id, domain.ErrUpdateDenied)
}

func (u *UnifiedInbox) MoveFolder(id, destinationID string) error {
	return fmt.Errorf("cannot move %s to %s: %w", id, destinationID, domain.ErrMoveDenied)
}

func (u *UnifiedInbox) DeleteFolder(id string) error {
	return fmt.Errorf("cannot delete %s: %w", id, domain.ErrDeleteDenied)
}
