package authority

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
)

// Ownership is one row of the ownership table.
type Ownership struct {
	Entity string `json:"entity"`
	Owner  string `json:"owner"`
}

type pendingChange struct {
	owner   string
	release bool
}

// Table maps entity ids to the peer that simulates them. Rows keep
// insertion order so ownership announcements are deterministic.
//
// A pinned entity keeps its current owner: assignments and releases made
// while any pin is held are deferred and applied when the last pin is
// released, so classification never changes inside one action.
type Table struct {
	mu       sync.RWMutex
	owners   *orderedmap.OrderedMap[string, string]
	pins     map[string]int
	deferred map[string]pendingChange
}

func NewTable() *Table {
	return &Table{
		owners:   orderedmap.NewOrderedMap[string, string](),
		pins:     make(map[string]int),
		deferred: make(map[string]pendingChange),
	}
}

// Owner returns the peer that owns entity.
func (t *Table) Owner(entity string) (string, bool) {
	if t == nil {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owners.Get(entity)
}

// Assign sets the owner of entity. It reports false when the change was
// deferred because the entity is pinned.
func (t *Table) Assign(entity, owner string) bool {
	if t == nil || entity == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pins[entity] > 0 {
		t.deferred[entity] = pendingChange{owner: owner}
		return false
	}
	t.owners.Set(entity, owner)
	return true
}

// Release drops the ownership row of entity, deferring while pinned.
func (t *Table) Release(entity string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pins[entity] > 0 {
		t.deferred[entity] = pendingChange{release: true}
		return false
	}
	return t.owners.Delete(entity)
}

// ReleasePeer drops every row owned by peer and returns the affected
// entities. Pinned rows are released once unpinned.
func (t *Table) ReleasePeer(peer string) []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var released []string
	for el := t.owners.Front(); el != nil; el = el.Next() {
		if el.Value == peer {
			released = append(released, el.Key)
		}
	}
	for _, entity := range released {
		if t.pins[entity] > 0 {
			t.deferred[entity] = pendingChange{release: true}
			continue
		}
		t.owners.Delete(entity)
	}
	return released
}

// Pin freezes the owner of entity until a matching Unpin.
func (t *Table) Pin(entity string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pins[entity]++
}

// Unpin releases one pin and applies any deferred change once the entity is
// no longer pinned.
func (t *Table) Unpin(entity string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pins[entity] == 0 {
		return
	}
	t.pins[entity]--
	if t.pins[entity] > 0 {
		return
	}
	delete(t.pins, entity)
	change, ok := t.deferred[entity]
	if !ok {
		return
	}
	delete(t.deferred, entity)
	if change.release {
		t.owners.Delete(entity)
		return
	}
	t.owners.Set(entity, change.owner)
}

// Pinned reports whether entity has an outstanding pin.
func (t *Table) Pinned(entity string) bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pins[entity] > 0
}

// Entries lists ownership rows in insertion order.
func (t *Table) Entries() []Ownership {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]Ownership, 0, t.owners.Len())
	for el := t.owners.Front(); el != nil; el = el.Next() {
		rows = append(rows, Ownership{Entity: el.Key, Owner: el.Value})
	}
	return rows
}
