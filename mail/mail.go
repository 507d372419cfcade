// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"fmt"
	"mime"
	stdmail "net/mail"
	"strings"

	"github.com/emersion/go-message/charset"
)

// DecodeSubject decodes a possibly RFC-2047-encoded subject header into a
// plain string, handling the extended charsets IMAP servers deliver in the
// wild. A subject that cannot be decoded is returned as-is.
func DecodeSubject(raw string) string {
	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}
	subject, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return subject
}

// HeaderInfos extracts the decoded subject and the Message-Id of a raw
// message. Identifies a message in the transfer log when it crosses
// accounts.
func HeaderInfos(rawMail []byte) (subject string, messageID string, err error) {
	msg, err := stdmail.ReadMessage(bytes.NewReader(rawMail))
	if err != nil {
		return "", "", fmt.Errorf("could not parse mail: %w", err)
	}

	return DecodeSubject(msg.Header.Get("Subject")), msg.Header.Get("Message-Id"), nil
}

// FormatAddress renders a single mail address as "Name <addr>" or just the
// address when no display name is present. The result feeds the locale-aware
// sort comparator, so it must be stable for a given input.
func FormatAddress(name, mailbox, host string) string {
	addr := mailbox
	if len(host) > 0 {
		addr = mailbox + "@" + host
	}

	name = strings.TrimSpace(DecodeSubject(name))
	if len(name) == 0 {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
