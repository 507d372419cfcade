// SPDX-License-Identifier: GPL-3.0-or-later
package imapbackend

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/unifiedmail/go-inbox-unify/domain"
	"github.com/unifiedmail/go-inbox-unify/mail"

	"github.com/emersion/go-imap"
)

// Color labels are stored as IMAP keywords so they survive across clients.
const (
	colorLabelPrefix = "$cl_"
	maxColorLabel    = 6
)

var flagMapping = []struct {
	imapFlag string
	bit      int
}{
	{imap.SeenFlag, domain.FlagSeen},
	{imap.AnsweredFlag, domain.FlagAnswered},
	{imap.FlaggedFlag, domain.FlagFlagged},
	{imap.DeletedFlag, domain.FlagDeleted},
	{imap.DraftFlag, domain.FlagDraft},
	{imap.RecentFlag, domain.FlagRecent},
}

func (c *Connection) AllMessages(folder string) ([]*domain.MailMessage, error) {
	err := c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	mbox := c.connection.Mailbox()
	if mbox == nil || mbox.Messages == 0 {
		return []*domain.MailMessage{}, nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddRange(1, mbox.Messages)
	return c.fetchMessages(folder, seqset, false)
}

// UnreadMessages returns the unread messages of the folder, newest first by
// uid. A limit of 0 or less returns all of them.
func (c *Connection) UnreadMessages(folder string, limit int) ([]*domain.MailMessage, error) {
	err := c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for unread in folder %s: %w", folder, err)
	}

	if len(uids) == 0 {
		return []*domain.MailMessage{}, nil
	}

	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return c.fetchMessages(folder, seqset, true)
}

func (c *Connection) SearchMessages(folder string, term domain.SearchTerm) ([]*domain.MailMessage, error) {
	err := c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	uids, err := c.connection.UidSearch(searchCriteria(term))
	if err != nil {
		return nil, fmt.Errorf("could not search in folder %s: %w", folder, err)
	}

	if len(uids) == 0 {
		return []*domain.MailMessage{}, nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return c.fetchMessages(folder, seqset, true)
}

func (c *Connection) MessagesByID(folder string, ids []string) ([]*domain.MailMessage, error) {
	if len(ids) == 0 {
		return []*domain.MailMessage{}, nil
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return nil, err
	}

	err = c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return c.fetchMessages(folder, seqset, true)
}

func (c *Connection) FullMessage(folder, id string) (*domain.MailMessage, error) {
	uids, err := parseUIDs([]string{id})
	if err != nil {
		return nil, err
	}

	err = c.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchRFC822Size, imap.FetchUid, section.FetchItem()}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.connection.UidFetch(seqset, items, ch)
	}()

	var message *domain.MailMessage
	for msg := range ch {
		message = c.messageFromFetch(folder, msg)
		if body := msg.GetBody(section); body != nil {
			raw, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("could not read message body: %w", err)
			}
			message.Raw = raw
		}
	}

	err = <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch message %s in folder %s: %w", id, folder, err)
	}

	if message == nil {
		return nil, fmt.Errorf("message %s does not exist in folder %s", id, folder)
	}

	return message, nil
}

// ThreadSort is not available on plain IMAP, Capabilities advertises that.
func (c *Connection) ThreadSort(folder string) ([]*domain.MailMessage, error) {
	return nil, fmt.Errorf("thread sort in folder %s: %w", folder, domain.ErrUnsupported)
}

func (c *Connection) DeleteMessages(folder string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return err
	}

	err = c.selectFolder(folder)
	if err != nil {
		return err
	}

	return c.mailDeleter.delete(uids)
}

func (c *Connection) UpdateFlags(folder string, ids []string, flags int, set bool) error {
	if len(ids) == 0 {
		return nil
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return err
	}

	err = c.selectFolder(folder)
	if err != nil {
		return err
	}

	var op imap.FlagsOp = imap.RemoveFlags
	if set {
		op = imap.AddFlags
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	err = c.connection.UidStore(seqset, imap.FormatFlagsOp(op, true), imapFlagItems(flags), nil)
	if err != nil {
		return fmt.Errorf("could not update flags in folder %s: %w", folder, err)
	}

	return nil
}

// UpdateColorLabel clears every color keyword on the messages and sets the
// requested one. Label 0 means no label.
func (c *Connection) UpdateColorLabel(folder string, ids []string, label int) error {
	if len(ids) == 0 {
		return nil
	}

	if label < 0 || label > maxColorLabel {
		return fmt.Errorf("color label %d is out of range", label)
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return err
	}

	err = c.selectFolder(folder)
	if err != nil {
		return err
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	all := make([]interface{}, 0, maxColorLabel)
	for i := 1; i <= maxColorLabel; i++ {
		all = append(all, colorLabelKeyword(i))
	}
	err = c.connection.UidStore(seqset, imap.FormatFlagsOp(imap.RemoveFlags, true), all, nil)
	if err != nil {
		return fmt.Errorf("could not clear color labels in folder %s: %w", folder, err)
	}

	if label == 0 {
		return nil
	}

	err = c.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{colorLabelKeyword(label)}, nil)
	if err != nil {
		return fmt.Errorf("could not set color label in folder %s: %w", folder, err)
	}

	return nil
}

// CopyMessages copies the messages into dst. With UIDPLUS the server reports
// the new uids via COPYUID; without it the result ids are unknown and nil is
// returned alongside a nil error.
func (c *Connection) CopyMessages(src, dst string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return nil, err
	}

	err = c.selectFolder(src)
	if err != nil {
		return nil, err
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	if c.uidplusClient != nil {
		_, _, dstUids, err := c.uidplusClient.UidCopy(seqset, dst)
		if err != nil {
			return nil, fmt.Errorf("could not copy messages to folder %s: %w", dst, err)
		}
		return idsFromSeqSet(dstUids), nil
	}

	err = c.connection.UidCopy(seqset, dst)
	if err != nil {
		return nil, fmt.Errorf("could not copy messages to folder %s: %w", dst, err)
	}

	return nil, nil
}

// MoveMessages transfers the messages into dst. The resulting uids are not
// reported by either move strategy.
func (c *Connection) MoveMessages(src, dst string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	uids, err := parseUIDs(ids)
	if err != nil {
		return nil, err
	}

	err = c.selectFolder(src)
	if err != nil {
		return nil, err
	}

	err = c.mailMover.move(uids, dst)
	if err != nil {
		return nil, fmt.Errorf("could not move messages to folder %s: %w", dst, err)
	}

	return nil, nil
}

// AppendMessage stores a raw message into the folder. With UIDPLUS the new
// uid comes back via APPENDUID, otherwise the id is unknown and empty.
func (c *Connection) AppendMessage(folder string, raw []byte, flags int) (string, error) {
	literal := bytes.NewBuffer(raw)
	flagStrings := imapFlagStrings(flags)

	if c.uidplusClient != nil {
		_, uid, err := c.uidplusClient.Append(folder, flagStrings, time.Now(), literal)
		if err != nil {
			return "", fmt.Errorf("could not append message to folder %s: %w", folder, err)
		}
		if uid == 0 {
			return "", nil
		}
		return strconv.FormatUint(uint64(uid), 10), nil
	}

	err := c.connection.Append(folder, flagStrings, time.Now(), literal)
	if err != nil {
		return "", fmt.Errorf("could not append message to folder %s: %w", folder, err)
	}

	return "", nil
}

func (c *Connection) fetchMessages(folder string, seqset *imap.SeqSet, byUID bool) ([]*domain.MailMessage, error) {
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchRFC822Size, imap.FetchUid}

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		if byUID {
			done <- c.connection.UidFetch(seqset, items, ch)
		} else {
			done <- c.connection.Fetch(seqset, items, ch)
		}
	}()

	messages := []*domain.MailMessage{}
	for msg := range ch {
		messages = append(messages, c.messageFromFetch(folder, msg))
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch messages in folder %s: %w", folder, err)
	}

	return messages, nil
}

func (c *Connection) messageFromFetch(folder string, msg *imap.Message) *domain.MailMessage {
	message := &domain.MailMessage{
		ID:          strconv.FormatUint(uint64(msg.Uid), 10),
		Folder:      folder,
		AccountID:   c.account.ID,
		AccountName: c.account.Name,
		Size:        int64(msg.Size),
		Flags:       flagsFromImap(msg.Flags),
		ColorLabel:  colorLabelFromFlags(msg.Flags),
	}

	if env := msg.Envelope; env != nil {
		message.Subject = mail.DecodeSubject(env.Subject)
		message.Date = env.Date
		if len(env.From) > 0 {
			message.From = formatEnvelopeAddress(env.From[0])
		}
		if len(env.To) > 0 {
			message.To = formatEnvelopeAddress(env.To[0])
		}
	}

	return message
}

func formatEnvelopeAddress(address *imap.Address) string {
	return mail.FormatAddress(mail.DecodeSubject(address.PersonalName), address.MailboxName, address.HostName)
}

func searchCriteria(term domain.SearchTerm) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if term.OnlyUnread {
		criteria.WithoutFlags = []string{imap.SeenFlag}
	}

	if term.Pattern != "" {
		subject := imap.NewSearchCriteria()
		subject.Header.Add("Subject", term.Pattern)
		from := imap.NewSearchCriteria()
		from.Header.Add("From", term.Pattern)
		criteria.Or = append(criteria.Or, [2]*imap.SearchCriteria{subject, from})
	}

	return criteria
}

func parseUIDs(ids []string) ([]uint32, error) {
	uids := make([]uint32, 0, len(ids))
	for _, id := range ids {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("message id %q is not a uid: %w", id, err)
		}
		uids = append(uids, uint32(uid))
	}

	return uids, nil
}

func flagsFromImap(flags []string) int {
	result := 0
	for _, flag := range flags {
		for _, mapping := range flagMapping {
			if flag == mapping.imapFlag {
				result |= mapping.bit
			}
		}
	}

	return result
}

func imapFlagItems(flags int) []interface{} {
	items := []interface{}{}
	for _, mapping := range flagMapping {
		if flags&mapping.bit != 0 {
			items = append(items, mapping.imapFlag)
		}
	}

	return items
}

func imapFlagStrings(flags int) []string {
	result := []string{}
	for _, mapping := range flagMapping {
		if flags&mapping.bit != 0 {
			result = append(result, mapping.imapFlag)
		}
	}

	return result
}

func colorLabelKeyword(label int) string {
	return colorLabelPrefix + strconv.Itoa(label)
}

func colorLabelFromFlags(flags []string) int {
	for _, flag := range flags {
		if len(flag) <= len(colorLabelPrefix) || flag[:len(colorLabelPrefix)] != colorLabelPrefix {
			continue
		}
		label, err := strconv.Atoi(flag[len(colorLabelPrefix):])
		if err == nil && label >= 1 && label <= maxColorLabel {
			return label
		}
	}

	return 0
}

func idsFromSeqSet(seqset *imap.SeqSet) []string {
	if seqset == nil {
		return nil
	}

	ids := []string{}
	for _, seq := range seqset.Set {
		stop := seq.Stop
		if stop == 0 {
			stop = seq.Start
		}
		for uid := seq.Start; uid <= stop; uid++ {
			ids = append(ids, strconv.FormatUint(uint64(uid), 10))
		}
	}

	return ids
}
