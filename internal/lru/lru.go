// Package lru implements an intrusive, array-indexed doubly-linked list for
// fixed-capacity LRU caches. Per the design note in SPEC_FULL.md §9, links
// are slice indices rather than pointers, which avoids any ownership
// ambiguity between the backing array and the list threaded through it.
package lru

// None is the sentinel index meaning "no link".
const None = -1

// Node is one element of the list. Embed it in a fixed-size slice of cache
// entries and drive the list through List.
type Node struct {
	Prev, Next int
}

// List threads a doubly-linked list through indices into an external,
// fixed-size array of Nodes. It does not own the array; callers pass the
// backing slice to every operation.
type List struct {
	Head, Tail int
	Len        int
}

// New returns an empty list.
func New() List {
	return List{Head: None, Tail: None}
}

// PushFront links index i at the front of the list (most recently used).
func (l *List) PushFront(nodes []Node, i int) {
	nodes[i].Prev = None
	nodes[i].Next = l.Head

	if l.Head != None {
		nodes[l.Head].Prev = i
	}
	l.Head = i

	if l.Tail == None {
		l.Tail = i
	}
	l.Len++
}

// Remove unlinks index i from the list without clearing the array slot.
func (l *List) Remove(nodes []Node, i int) {
	n := nodes[i]

	if n.Prev != None {
		nodes[n.Prev].Next = n.Next
	} else {
		l.Head = n.Next
	}

	if n.Next != None {
		nodes[n.Next].Prev = n.Prev
	} else {
		l.Tail = n.Prev
	}

	nodes[i].Prev = None
	nodes[i].Next = None
	l.Len--
}

// MoveToFront moves an already-linked index i to the front of the list.
func (l *List) MoveToFront(nodes []Node, i int) {
	if l.Head == i {
		return
	}
	l.Remove(nodes, i)
	l.PushFront(nodes, i)
}

// RemoveTail unlinks and returns the least-recently-used index, or None if
// the list is empty.
func (l *List) RemoveTail(nodes []Node) int {
	if l.Tail == None {
		return None
	}
	tail := l.Tail
	l.Remove(nodes, tail)
	return tail
}

// Reset clears the list's head/tail/len. It does not touch the backing
// array; callers resetting a whole cache should also re-initialize nodes.
func (l *List) Reset() {
	l.Head = None
	l.Tail = None
	l.Len = 0
}
