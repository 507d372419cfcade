// SPDX-License-Identifier: GPL-3.0-or-later
package imapbackend

import (
	"fmt"
	"strings"

	"github.com/unifiedmail/go-inbox-unify/domain"

	"github.com/emersion/go-imap"
)

func (c *Connection) ListFolders() ([]*domain.MailFolder, error) {
	infos, err := c.listMailboxes("*")
	if err != nil {
		return nil, err
	}

	folders := []*domain.MailFolder{}
	for _, info := range infos {
		folders = append(folders, folderFromInfo(info))
	}

	return folders, nil
}

func (c *Connection) GetFolder(fullName string) (*domain.MailFolder, error) {
	infos, err := c.listMailboxes(fullName)
	if err != nil {
		return nil, err
	}

	for _, info := range infos {
		if info.Name != fullName {
			continue
		}

		folder := folderFromInfo(info)
		if folder.HoldsMessages {
			total, unread, err := c.Status(fullName)
			if err != nil {
				return nil, err
			}
			folder.Total, folder.Unread = total, unread
		}
		return folder, nil
	}

	return nil, fmt.Errorf("%s: %w", fullName, domain.ErrFolderNotFound)
}

// DefaultFolder resolves the account's real folder for a role: INBOX is
// fixed by protocol, the others are found by SPECIAL-USE attribute first
// and well-known names second.
func (c *Connection) DefaultFolder(role domain.DefaultFolderRole) (string, error) {
	if role == domain.RoleInbox {
		return "INBOX", nil
	}

	infos, err := c.listMailboxes("*")
	if err != nil {
		return "", err
	}

	attr := specialUseAttr(role)
	for _, info := range infos {
		for _, a := range info.Attributes {
			if a == attr {
				return info.Name, nil
			}
		}
	}

	for _, info := range infos {
		name := info.Name
		// Accept both top-level and INBOX-prefixed layouts.
		if idx := strings.LastIndex(name, info.Delimiter); info.Delimiter != "" && idx >= 0 {
			name = name[idx+len(info.Delimiter):]
		}
		for _, candidate := range wellKnownNames(role) {
			if strings.EqualFold(name, candidate) {
				return info.Name, nil
			}
		}
	}

	return "", fmt.Errorf("%s: %w", role, domain.ErrUnknownDefaultFolder)
}

func (c *Connection) Status(folder string) (int, int, error) {
	status, err := c.connection.Status(folder, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen})
	if err != nil {
		return 0, 0, fmt.Errorf("could not get status of folder %s: %w", folder, err)
	}

	return int(status.Messages), int(status.Unseen), nil
}

// Expunge removes the messages flagged as deleted from the folder.
func (c *Connection) Expunge(folder string) error {
	err := c.selectFolder(folder)
	if err != nil {
		return err
	}

	err = c.connection.Expunge(nil)
	if err != nil {
		return fmt.Errorf("could not expunge folder %s: %w", folder, err)
	}

	return nil
}

func (c *Connection) listMailboxes(pattern string) ([]*imap.MailboxInfo, error) {
	ch := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.connection.List("", pattern, ch)
	}()

	infos := []*imap.MailboxInfo{}
	for info := range ch {
		infos = append(infos, info)
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not list folders: %w", err)
	}

	return infos, nil
}

func folderFromInfo(info *imap.MailboxInfo) *domain.MailFolder {
	folder := &domain.MailFolder{
		FullName:      info.Name,
		Name:          info.Name,
		HoldsMessages: true,
		HoldsFolders:  true,
	}

	if info.Delimiter != "" {
		if idx := strings.LastIndex(info.Name, info.Delimiter); idx >= 0 {
			folder.Name = info.Name[idx+len(info.Delimiter):]
		}
	}

	for _, a := range info.Attributes {
		switch a {
		case imap.NoSelectAttr:
			folder.HoldsMessages = false
		case imap.NoInferiorsAttr:
			folder.HoldsFolders = false
		case "\\HasChildren":
			folder.HasSubfolders = true
			folder.HasSubscribedSubfolders = true
		}
	}

	return folder
}

func specialUseAttr(role domain.DefaultFolderRole) string {
	switch role {
	case domain.RoleDrafts:
		return imap.DraftsAttr
	case domain.RoleSent:
		return imap.SentAttr
	case domain.RoleSpam:
		return imap.JunkAttr
	case domain.RoleTrash:
		return imap.TrashAttr
	}
	return ""
}

func wellKnownNames(role domain.DefaultFolderRole) []string {
	switch role {
	case domain.RoleDrafts:
		return []string{"Drafts"}
	case domain.RoleSent:
		return []string{"Sent", "Sent Items", "Sent Messages"}
	case domain.RoleSpam:
		return []string{"Junk", "Spam", "Junk E-Mail"}
	case domain.RoleTrash:
		return []string{"Trash", "Deleted Items", "Deleted Messages"}
	}
	return nil
}
