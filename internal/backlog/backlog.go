// Package backlog provides the FIFO of outbound PDUs waiting to open a
// transport session (spec.md §3 "TP/ETP Session... Backlog"). It is built
// on the teacher's intrusive list (ilist), giving O(1) enqueue/dequeue with
// no per-push allocation beyond the entry itself.
package backlog

import (
	"github.com/OpenIsobus/OpenIsobus/ilist"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

type entry struct {
	ilist.Entry
	p pdu.PDU
}

// Backlog is a FIFO of PDUs queued while a transport session is open
// (spec.md §4.3 "re-queue the current PDU at the head of the backlog",
// §5 "Outbound TP/ETP sessions are serialized").
type Backlog struct {
	l ilist.List
}

// PushBack enqueues p at the tail of the backlog.
func (b *Backlog) PushBack(p pdu.PDU) {
	b.l.PushBack(&entry{p: p})
}

// PushFront re-queues p at the head of the backlog (spec.md §4.3 abort
// retry semantics). The backlog is expected to stay short (spec.md §5: "a
// bounded ring buffer is acceptable"), so a full rebuild is cheap and keeps
// ilist's invariants simple rather than open-coding a second insertion
// path.
func (b *Backlog) PushFront(p pdu.PDU) {
	rest := make([]pdu.PDU, 0)
	for n := b.l.Front(); n != nil; n = n.Next() {
		rest = append(rest, n.(*entry).p)
	}
	b.l.Reset()
	b.l.PushBack(&entry{p: p})
	for _, r := range rest {
		b.l.PushBack(&entry{p: r})
	}
}

// PopFront removes and returns the PDU at the head of the backlog, or
// ok=false if the backlog is empty.
func (b *Backlog) PopFront() (p pdu.PDU, ok bool) {
	front := b.l.Front()
	if front == nil {
		return pdu.PDU{}, false
	}
	e := front.(*entry)
	b.l.Remove(front)
	return e.p, true
}

// Empty reports whether the backlog has no queued PDUs.
func (b *Backlog) Empty() bool {
	return b.l.Empty()
}
