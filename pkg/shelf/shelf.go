// Package shelf provides a rank tracker for a double-ended sequence that only
// grows at its two ends. Every item receives a virtual rank when inserted:
// prepends take ranks below the current left bound, appends take ranks above
// the current right bound. Because ranks never change, the distance of an item
// from either end is a pure function of its rank and the two bounds, so
// Prepend, Append and Query all run in O(1).
package shelf

import (
	"errors"
	"fmt"
)

// Sentinel errors for contract violations.
var (
	// ErrDuplicateIdentifier indicates an insertion of an id that already has a rank.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	// ErrUnknownIdentifier indicates a lookup of an id that was never inserted.
	ErrUnknownIdentifier = errors.New("unknown identifier")
)

// Tracker assigns virtual ranks to items inserted at either end of a sequence
// and answers how many items separate an item from the nearest end.
//
// A Tracker is not safe for concurrent use. Streams that run in parallel must
// each own a Tracker.
type Tracker[ID comparable] struct {
	ranks map[ID]int64
	left  int64
	right int64
	count int64
}

// New creates an empty tracker.
func New[ID comparable]() *Tracker[ID] {
	return &Tracker[ID]{ranks: make(map[ID]int64)}
}

// NewWithCapacity creates an empty tracker with room for sizeHint items.
func NewWithCapacity[ID comparable](sizeHint int) *Tracker[ID] {
	if sizeHint < 0 {
		sizeHint = 0
	}

	return &Tracker[ID]{ranks: make(map[ID]int64, sizeHint)}
}

// Prepend places id to the left of the current leftmost item.
func (t *Tracker[ID]) Prepend(id ID) error {
	if _, ok := t.ranks[id]; ok {
		return fmt.Errorf("prepend %v: %w", id, ErrDuplicateIdentifier)
	}

	if t.count > 0 {
		t.left--
	}

	t.insert(id, t.left)

	return nil
}

// Append places id to the right of the current rightmost item.
func (t *Tracker[ID]) Append(id ID) error {
	if _, ok := t.ranks[id]; ok {
		return fmt.Errorf("append %v: %w", id, ErrDuplicateIdentifier)
	}

	if t.count > 0 {
		t.right++
	}

	t.insert(id, t.right)

	return nil
}

// Query returns the minimum number of items that must be removed from one end
// of the sequence before id becomes that end's item.
func (t *Tracker[ID]) Query(id ID) (int64, error) {
	left, right, err := t.Sides(id)
	if err != nil {
		return 0, err
	}

	return min(left, right), nil
}

// Sides returns the number of items strictly to the left and strictly to the
// right of id. The two always add up to Len()-1.
func (t *Tracker[ID]) Sides(id ID) (left, right int64, err error) {
	rank, ok := t.ranks[id]
	if !ok {
		return 0, 0, fmt.Errorf("query %v: %w", id, ErrUnknownIdentifier)
	}

	return rank - t.left, t.right - rank, nil
}

// Rank returns the virtual rank assigned to id.
func (t *Tracker[ID]) Rank(id ID) (int64, bool) {
	rank, ok := t.ranks[id]

	return rank, ok
}

// Contains reports whether id has been inserted.
func (t *Tracker[ID]) Contains(id ID) bool {
	_, ok := t.ranks[id]

	return ok
}

// Len returns the number of items in the sequence.
func (t *Tracker[ID]) Len() int64 {
	return t.count
}

// Empty reports whether nothing has been inserted yet.
func (t *Tracker[ID]) Empty() bool {
	return t.count == 0
}

// Bounds returns the lowest and highest assigned ranks. Both are zero for an
// empty tracker, which is indistinguishable from a single item; use Empty.
func (t *Tracker[ID]) Bounds() (left, right int64) {
	return t.left, t.right
}

// insert records rank for id. The first insertion always lands on rank 0,
// which is where both bounds already sit.
func (t *Tracker[ID]) insert(id ID, rank int64) {
	t.ranks[id] = rank
	t.count++
}
