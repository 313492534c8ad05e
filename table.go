// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package kuroko

const tableMaxLoad = 0.75

// TableEntry is a single key/value slot. An entry whose key is a kwargs
// marker is unused: value None means empty, value True means tombstone.
type TableEntry struct {
	Key   Value
	Value Value
}

// Table is an open-addressed hash table keyed by language values. It backs
// instance fields, class methods, dicts, sets, the module table, and the
// string intern table. Capacity is always a power of two.
type Table struct {
	Count   int
	Entries []TableEntry
}

func (t *Table) isUnused(e *TableEntry) bool { return e.Key.Type == ValKwargs }

func (t *Table) findEntry(entries []TableEntry, key Value) *TableEntry {
	index := int(hashValue(key)) & (len(entries) - 1)
	var tombstone *TableEntry
	for {
		entry := &entries[index]
		if entry.Key.Type == ValKwargs {
			if entry.Value.IsNone() {
				if tombstone != nil {
					return tombstone
				}
				return entry
			}
			if tombstone == nil {
				tombstone = entry
			}
		} else if ValuesEqual(entry.Key, key) {
			return entry
		}
		index = (index + 1) & (len(entries) - 1)
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]TableEntry, capacity)
	for i := range entries {
		entries[i].Key = KwargsVal(0)
	}
	old := t.Entries
	t.Count = 0
	for i := range old {
		entry := &old[i]
		if t.isUnused(entry) {
			continue
		}
		dest := t.findEntry(entries, entry.Key)
		dest.Key = entry.Key
		dest.Value = entry.Value
		t.Count++
	}
	t.Entries = entries
}

// Set stores key = value and reports whether the key was new.
func (t *Table) Set(key, value Value) bool {
	if float64(t.Count+1) > float64(len(t.Entries))*tableMaxLoad {
		capacity := len(t.Entries) * 2
		if capacity < 8 {
			capacity = 8
		}
		t.adjustCapacity(capacity)
	}
	entry := t.findEntry(t.Entries, key)
	isNew := t.isUnused(entry)
	if isNew && entry.Value.IsNone() {
		t.Count++
	}
	entry.Key = key
	entry.Value = value
	return isNew
}

// Get looks up key and reports whether it was present.
func (t *Table) Get(key Value) (Value, bool) {
	if t.Count == 0 {
		return NoneVal(), false
	}
	entry := t.findEntry(t.Entries, key)
	if t.isUnused(entry) {
		return NoneVal(), false
	}
	return entry.Value, true
}

// GetString looks up an interned string key.
func (t *Table) GetString(key *String) (Value, bool) {
	return t.Get(ObjectVal(key))
}

// Delete removes key, leaving a tombstone, and reports whether it existed.
func (t *Table) Delete(key Value) bool {
	if t.Count == 0 {
		return false
	}
	entry := t.findEntry(t.Entries, key)
	if t.isUnused(entry) {
		return false
	}
	entry.Key = KwargsVal(0)
	entry.Value = BooleanVal(true)
	return true
}

// AddAll copies every live entry of t into to.
func (t *Table) AddAll(to *Table) {
	for i := range t.Entries {
		entry := &t.Entries[i]
		if !t.isUnused(entry) {
			to.Set(entry.Key, entry.Value)
		}
	}
}

// FindString searches for an existing string object with the given contents;
// used by the intern table before allocating a new string.
func (t *Table) FindString(chars string, hash uint32) *String {
	if t.Count == 0 {
		return nil
	}
	index := int(hash) & (len(t.Entries) - 1)
	for {
		entry := &t.Entries[index]
		if entry.Key.Type == ValKwargs {
			if entry.Value.IsNone() {
				return nil
			}
		} else if s, ok := entry.Key.Obj.(*String); ok {
			if s.hash == hash && s.Value == chars {
				return s
			}
		}
		index = (index + 1) & (len(t.Entries) - 1)
	}
}

// Range calls fn for every live entry until it returns false.
func (t *Table) Range(fn func(key, value Value) bool) {
	for i := range t.Entries {
		entry := &t.Entries[i]
		if t.isUnused(entry) {
			continue
		}
		if !fn(entry.Key, entry.Value) {
			return
		}
	}
}
