// SPDX-License-Identifier: GPL-3.0-or-later
package mergesort

import (
	"sort"

	"github.com/unifiedmail/go-inbox-unify/domain"
)

// Thread is one conversation: a root message and its children. Threads are
// always built per account; messages from different accounts never share a
// conversation.
type Thread struct {
	Root     *domain.MailMessage
	Children []*domain.MailMessage
}

// BuildThreads reconstructs conversations from a level-annotated message
// list: a new thread starts whenever ThreadLevel drops back to zero.
// Backends without native threading deliver everything at level zero, which
// degrades to one single-message thread per message.
func BuildThreads(msgs []*domain.MailMessage) []*Thread {
	threads := []*Thread{}
	var current *Thread
	for _, m := range msgs {
		if m.ThreadLevel <= 0 || current == nil {
			current = &Thread{Root: m}
			threads = append(threads, current)
			continue
		}
		current.Children = append(current.Children, m)
	}
	return threads
}

// SortThreads orders conversations globally by their root message and
// flattens the result. Children stay beneath their own root, ordered by the
// same comparator; their thread levels are preserved.
func SortThreads(threads []*Thread, c *Comparator) []*domain.MailMessage {
	sorted := make([]*Thread, len(threads))
	copy(sorted, threads)

	// Only the roots compete globally; children never leave their thread.
	sort.SliceStable(sorted, func(i, j int) bool {
		return c.Less(sorted[i].Root, sorted[j].Root)
	})

	flat := []*domain.MailMessage{}
	for _, t := range sorted {
		flat = append(flat, t.Root)
		children := make([]*domain.MailMessage, len(t.Children))
		copy(children, t.Children)
		c.Sort(children)
		flat = append(flat, children...)
	}
	return flat
}
