package entity

// ConditionUnset marks an item stack whose condition was never assigned and
// should fall back to the record's default.
const ConditionUnset int32 = -1

// InvalidItemID is returned by inventory index lookups past the current count.
const InvalidItemID = "invalid"

// ItemStack represents a quantity of a single item record.
type ItemStack struct {
	RefID     string `json:"refId"`
	Count     uint32 `json:"count"`
	Condition int32  `json:"condition"`
}

// Empty reports whether the stack references no item.
func (s ItemStack) Empty() bool {
	return s.RefID == ""
}

// ItemList is an ordered inventory. Order is significant on the wire and
// must be preserved when stacks are merged or removed.
type ItemList []ItemStack

// Len reports the number of stacks.
func (l ItemList) Len() int {
	return len(l)
}

// At returns the stack at i, or false when i lies past the end.
func (l ItemList) At(i int) (ItemStack, bool) {
	if i < 0 || i >= len(l) {
		return ItemStack{}, false
	}
	return l[i], true
}

// Clone returns a copy that shares no backing array with l.
func (l ItemList) Clone() ItemList {
	if len(l) == 0 {
		return nil
	}
	cloned := make(ItemList, len(l))
	copy(cloned, l)
	return cloned
}

// Add merges the stack into an existing entry with the same record and
// condition, appending a new entry otherwise.
func (l ItemList) Add(stack ItemStack) ItemList {
	if stack.Empty() || stack.Count == 0 {
		return l
	}
	for i := range l {
		if l[i].RefID == stack.RefID && l[i].Condition == stack.Condition {
			l[i].Count += stack.Count
			return l
		}
	}
	return append(l, stack)
}

// Remove takes up to stack.Count items of the record out of the list,
// walking entries in order and dropping entries that reach zero. It returns
// the updated list and the number of items actually removed.
func (l ItemList) Remove(stack ItemStack) (ItemList, uint32) {
	remaining := stack.Count
	out := l[:0]
	for _, entry := range l {
		if remaining > 0 && entry.RefID == stack.RefID {
			if entry.Count <= remaining {
				remaining -= entry.Count
				continue
			}
			entry.Count -= remaining
			remaining = 0
		}
		out = append(out, entry)
	}
	return out, stack.Count - remaining
}

// Total sums the counts of every stack of the record.
func (l ItemList) Total(refID string) uint32 {
	var total uint32
	for _, entry := range l {
		if entry.RefID == refID {
			total += entry.Count
		}
	}
	return total
}
