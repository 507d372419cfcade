// SPDX-License-Identifier: GPL-3.0-or-later

// Package mergesort produces the deterministic caller-visible order of
// aggregated message lists. Ordering is defined solely by (sort field,
// direction, locale collation) over the fully gathered set; completion
// order of the contributing accounts must never show through.
package mergesort

import (
	"sort"

	"github.com/unifiedmail/go-inbox-unify/domain"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator orders messages by one sort field and direction, using
// locale-aware collation for the textual fields.
type Comparator struct {
	field domain.SortField
	order domain.SortOrder
	coll  *collate.Collator
}

func NewComparator(field domain.SortField, order domain.SortOrder, locale string) *Comparator {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}

	return &Comparator{
		field: field,
		order: order,
		coll:  collate.New(tag, collate.IgnoreCase),
	}
}

// Sort orders msgs in place. Ties on the sort field fall back to date, then
// to the (account, id) pair, so a fixed input set always yields the same
// order regardless of how it was assembled.
func (c *Comparator) Sort(msgs []*domain.MailMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return c.Less(msgs[i], msgs[j])
	})
}

func (c *Comparator) Less(a, b *domain.MailMessage) bool {
	cmp := c.compare(a, b)
	if cmp == 0 {
		cmp = tieBreak(a, b)
	}
	if c.order == domain.Descending {
		return cmp > 0
	}
	return cmp < 0
}

func (c *Comparator) compare(a, b *domain.MailMessage) int {
	switch c.field {
	case domain.SortByFrom:
		return c.coll.CompareString(a.From, b.From)
	case domain.SortByTo:
		return c.coll.CompareString(a.To, b.To)
	case domain.SortBySubject:
		return c.coll.CompareString(a.Subject, b.Subject)
	case domain.SortBySize:
		return compareInt64(a.Size, b.Size)
	case domain.SortByColorLabel:
		return compareInt64(int64(a.ColorLabel), int64(b.ColorLabel))
	}

	// Date is the default sort field.
	if a.Date.Before(b.Date) {
		return -1
	}
	if a.Date.After(b.Date) {
		return 1
	}
	return 0
}

// tieBreak is the secondary rule: date first, then account, then id. It is
// direction-agnostic so that it only separates genuine ties.
func tieBreak(a, b *domain.MailMessage) int {
	if a.Date.Before(b.Date) {
		return -1
	}
	if a.Date.After(b.Date) {
		return 1
	}
	if a.AccountID != b.AccountID {
		return compareInt64(int64(a.AccountID), int64(b.AccountID))
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Window applies the caller's index range to an already-sorted result. It
// must run after the global sort; windowing per account would be incorrect.
func Window(msgs []*domain.MailMessage, from, to int) []*domain.MailMessage {
	if from < 0 {
		from = 0
	}
	if to < 0 || to > len(msgs) {
		to = len(msgs)
	}
	if from >= to {
		return []*domain.MailMessage{}
	}
	return msgs[from:to]
}
