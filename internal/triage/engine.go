package triage

import "fmt"

// Engine is the triage state machine over a fixed working set.
type Engine struct {
	items   []Item
	cursor  int
	log     []Decision
	kept    partition
	deleted partition
}

// New creates an engine positioned at the first item. The slice is copied;
// later changes to items do not affect the engine.
func New(items []Item) (*Engine, error) {
	e := &Engine{}
	if err := e.Reset(items); err != nil {
		return nil, err
	}
	return e, nil
}

// Restore rebuilds an engine by replaying a tag log over items. It is the
// inverse of reading Log() and is used to reload persisted sessions.
func Restore(items []Item, tags []Tag) (*Engine, error) {
	e, err := New(items)
	if err != nil {
		return nil, err
	}
	for i, tag := range tags {
		if _, _, err := e.Decide(tag); err != nil {
			return nil, fmt.Errorf("replay decision %d: %w", i, err)
		}
	}
	return e, nil
}

// Reset replaces the working set and clears the cursor, log, and partitions.
// On error the engine is left unchanged.
func (e *Engine) Reset(items []Item) error {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	e.items = append([]Item(nil), items...)
	e.cursor = 0
	e.log = nil
	e.kept = newPartition()
	e.deleted = newPartition()
	return nil
}

// Decide tags the current item and advances the cursor. It returns the new
// cursor and whether triage is now complete. Once every item has been decided
// it fails with *OutOfRangeError and changes nothing.
func (e *Engine) Decide(tag Tag) (int, bool, error) {
	if !tag.Valid() {
		return e.cursor, e.Complete(), fmt.Errorf("%w: %d", ErrInvalidTag, int(tag))
	}
	if e.cursor >= len(e.items) {
		return e.cursor, true, &OutOfRangeError{Cursor: e.cursor, Len: len(e.items)}
	}

	item := e.items[e.cursor]
	e.log = append(e.log, Decision{Item: item, Tag: tag, Index: e.cursor})
	e.partitionFor(tag).add(item)
	e.cursor++

	return e.cursor, e.Complete(), nil
}

// Undo reverts the most recent decision. With an empty history it is a no-op
// and reports false.
func (e *Engine) Undo() (Decision, bool) {
	if len(e.log) == 0 {
		return Decision{}, false
	}

	last := e.log[len(e.log)-1]
	e.log = e.log[:len(e.log)-1]
	e.partitionFor(last.Tag).remove(last.Item.ID)
	e.cursor = last.Index

	return last, true
}

// Stats returns counts consistent with the current decision log.
func (e *Engine) Stats() Stats {
	return Stats{
		Kept:      len(e.kept.items),
		Deleted:   len(e.deleted.items),
		Remaining: len(e.items) - e.cursor,
		Total:     len(e.items),
	}
}

// Cursor returns the index of the next undecided item.
func (e *Engine) Cursor() int { return e.cursor }

// Len returns the size of the working set.
func (e *Engine) Len() int { return len(e.items) }

// Complete reports whether every item has been decided. An empty working set
// is complete from the start.
func (e *Engine) Complete() bool { return e.cursor == len(e.items) }

// Current returns the item awaiting a decision.
func (e *Engine) Current() (Item, bool) {
	if e.Complete() {
		return Item{}, false
	}
	return e.items[e.cursor], true
}

// Upcoming returns up to n items starting at the cursor (the card stack).
func (e *Engine) Upcoming(n int) []Item {
	end := min(e.cursor+n, len(e.items))
	if n <= 0 || e.cursor >= end {
		return nil
	}
	return append([]Item(nil), e.items[e.cursor:end]...)
}

// Items returns a copy of the working set.
func (e *Engine) Items() []Item { return append([]Item(nil), e.items...) }

// Kept returns the kept items in processing order.
func (e *Engine) Kept() []Item { return append([]Item(nil), e.kept.items...) }

// Deleted returns the deleted items in processing order.
func (e *Engine) Deleted() []Item { return append([]Item(nil), e.deleted.items...) }

// Log returns a copy of the decision log.
func (e *Engine) Log() []Decision { return append([]Decision(nil), e.log...) }

// Tags returns just the tags of the decision log, in order. Together with
// Items it is everything Restore needs.
func (e *Engine) Tags() []Tag {
	tags := make([]Tag, len(e.log))
	for i, d := range e.log {
		tags[i] = d.Tag
	}
	return tags
}

// LastDecision returns the most recent decision, if any.
func (e *Engine) LastDecision() (Decision, bool) {
	if len(e.log) == 0 {
		return Decision{}, false
	}
	return e.log[len(e.log)-1], true
}

// TagOf reports which partition currently holds the item with the given ID.
func (e *Engine) TagOf(id int) (Tag, bool) {
	switch {
	case e.kept.contains(id):
		return Keep, true
	case e.deleted.contains(id):
		return Delete, true
	default:
		return 0, false
	}
}

func (e *Engine) partitionFor(tag Tag) *partition {
	if tag == Keep {
		return &e.kept
	}
	return &e.deleted
}

// partition is an ordered item list with an ID index for constant-time
// membership checks and removal.
type partition struct {
	items []Item
	index map[int]int
}

func newPartition() partition {
	return partition{index: make(map[int]int)}
}

func (p *partition) add(it Item) {
	p.index[it.ID] = len(p.items)
	p.items = append(p.items, it)
}

// remove drops the item with the given ID. Undo always unwinds the newest
// decision, so the item is normally at the tail and removal is O(1); any
// other position shifts the tail down and reindexes it.
func (p *partition) remove(id int) bool {
	pos, ok := p.index[id]
	if !ok {
		return false
	}
	delete(p.index, id)

	last := len(p.items) - 1
	if pos != last {
		copy(p.items[pos:], p.items[pos+1:])
		for i := pos; i < last; i++ {
			p.index[p.items[i].ID] = i
		}
	}
	p.items[last] = Item{}
	p.items = p.items[:last]
	return true
}

func (p *partition) contains(id int) bool {
	_, ok := p.index[id]
	return ok
}
