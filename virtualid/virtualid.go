// SPDX-License-Identifier: GPL-3.0-or-later

// Package virtualid implements the reversible identifier scheme of the
// unified mailbox. Two independent forms exist: a lightweight path form for
// folder full names (no escaping needed, the components are controlled) and
// a byte-escaped token form for message ids, which must survive arbitrary
// backend-assigned folder names and message ids.
package virtualid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unifiedmail/go-inbox-unify/domain"
)

// Separator is the path separator of both the folder path form and the
// message token grammar.
const Separator = "/"

// Encode builds the opaque message token for (accountID, folder, messageID).
// Folder and message id are escaped so that embedded separators cannot
// corrupt decoding. The grammar is stable; callers may persist tokens.
func Encode(accountID int, folder, messageID string) string {
	return strconv.Itoa(accountID) + Separator + escape(folder) + Separator + escape(messageID)
}

// Decode reverses Encode. It fails with domain.ErrMalformedVirtualID on any
// input that Encode cannot have produced; callers must not guess a partial
// result.
func Decode(token string) (accountID int, folder, messageID string, err error) {
	parts := strings.Split(token, Separator)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("%w: expected 3 components, got %d", domain.ErrMalformedVirtualID, len(parts))
	}

	accountID, err = strconv.Atoi(parts[0])
	if err != nil || accountID < 0 {
		return 0, "", "", fmt.Errorf("%w: invalid account id %q", domain.ErrMalformedVirtualID, parts[0])
	}

	folder, err = unescape(parts[1])
	if err != nil {
		return 0, "", "", err
	}

	messageID, err = unescape(parts[2])
	if err != nil {
		return 0, "", "", err
	}

	return accountID, folder, messageID, nil
}

// NestedPath builds the folder path form `known/accountID/realFolder`. The
// real folder name may itself contain the separator; parsing relies on the
// known prefix and the numeric account component, not on escaping.
func NestedPath(knownFolder string, accountID int, realFolder string) string {
	return knownFolder + Separator + strconv.Itoa(accountID) + Separator + realFolder
}

// SplitNested reverses NestedPath for a path known to start with
// knownFolder. It fails with domain.ErrMalformedVirtualID when the remainder
// is not `accountID/realFolder`.
func SplitNested(knownFolder, path string) (accountID int, realFolder string, err error) {
	prefix := knownFolder + Separator
	if !strings.HasPrefix(path, prefix) {
		return 0, "", fmt.Errorf("%w: %q is not nested below %q", domain.ErrMalformedVirtualID, path, knownFolder)
	}

	rest := strings.SplitN(path[len(prefix):], Separator, 2)
	if len(rest) != 2 || len(rest[1]) == 0 {
		return 0, "", fmt.Errorf("%w: missing account or folder component", domain.ErrMalformedVirtualID)
	}

	accountID, err = strconv.Atoi(rest[0])
	if err != nil || accountID < 0 {
		return 0, "", fmt.Errorf("%w: invalid account id %q", domain.ErrMalformedVirtualID, rest[0])
	}

	return accountID, rest[1], nil
}

const escapeHex = "0123456789ABCDEF"

// escape applies a quoted-printable-style transform to the component: the
// separator and the escape character itself are replaced by =XX byte
// sequences, everything else passes through untouched.
func escape(component string) string {
	if !strings.ContainsAny(component, Separator+"=") {
		return component
	}

	var b strings.Builder
	b.Grow(len(component) + 4)
	for i := 0; i < len(component); i++ {
		c := component[i]
		if c == Separator[0] || c == '=' {
			b.WriteByte('=')
			b.WriteByte(escapeHex[c>>4])
			b.WriteByte(escapeHex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func unescape(component string) (string, error) {
	if !strings.Contains(component, "=") {
		return component, nil
	}

	var b strings.Builder
	b.Grow(len(component))
	for i := 0; i < len(component); i++ {
		c := component[i]
		if c != '=' {
			b.WriteByte(c)
			continue
		}

		if i+2 >= len(component) {
			return "", fmt.Errorf("%w: truncated escape sequence", domain.ErrMalformedVirtualID)
		}
		v, err := strconv.ParseUint(component[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("%w: invalid escape sequence %q", domain.ErrMalformedVirtualID, component[i:i+3])
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}
