package models

// Ledger is the snapshot of all persons and items at a point in time.
// Person order is insertion order and is used only as a deterministic
// tie-break; it carries no other meaning.
type Ledger struct {
	// ID is the unique identifier for the ledger (UUID format).
	// Empty for transient snapshots such as decoded share links.
	ID string `json:"id,omitempty"`

	// Name is an optional display name for the ledger.
	Name string `json:"name,omitempty"`

	Persons []Person `json:"persons"`
	Items   []Item   `json:"items"`

	// CreatedAt is the Unix timestamp when the ledger was created.
	// Zero for transient snapshots.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// HasPerson reports whether a person with the given ID exists.
func (l *Ledger) HasPerson(personID string) bool {
	for _, p := range l.Persons {
		if p.ID == personID {
			return true
		}
	}
	return false
}

// FindItem returns the index of the item with the given ID, or -1.
func (l *Ledger) FindItem(itemID string) int {
	for i, it := range l.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// RemovePerson deletes a person and cascades: the person is dropped from
// every item's SharedBy, items they paid for lose their payer, and any item
// left payer-less or sharer-empty is dropped entirely (it can no longer be
// settled). Returns false if no such person exists.
func (l *Ledger) RemovePerson(personID string) bool {
	idx := -1
	for i, p := range l.Persons {
		if p.ID == personID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	l.Persons = append(l.Persons[:idx], l.Persons[idx+1:]...)

	kept := l.Items[:0]
	for _, it := range l.Items {
		sharers := it.SharedBy[:0:0]
		for _, id := range it.SharedBy {
			if id != personID {
				sharers = append(sharers, id)
			}
		}
		it.SharedBy = sharers
		if it.PaidBy == personID {
			it.PaidBy = ""
		}
		if len(it.SharedBy) == 0 || it.PaidBy == "" {
			continue
		}
		kept = append(kept, it)
	}
	l.Items = kept
	return true
}

// Normalize enforces referential integrity over the whole snapshot, applying
// the same cascading rules as RemovePerson. It is the validation step run on
// untrusted input (a decoded share link): unknown sharer references are
// dropped, an unknown payer clears the payer, and items that end up invalid
// are removed. Reports whether anything was changed.
func (l *Ledger) Normalize() bool {
	known := make(map[string]bool, len(l.Persons))
	for _, p := range l.Persons {
		known[p.ID] = true
	}

	changed := false
	kept := l.Items[:0]
	for _, it := range l.Items {
		sharers := it.SharedBy[:0:0]
		for _, id := range it.SharedBy {
			if known[id] {
				sharers = append(sharers, id)
			} else {
				changed = true
			}
		}
		it.SharedBy = sharers
		if it.PaidBy != "" && !known[it.PaidBy] {
			it.PaidBy = ""
			changed = true
		}
		if !it.Valid() {
			changed = true
			continue
		}
		kept = append(kept, it)
	}
	l.Items = kept
	return changed
}

// Clone returns a deep copy of the ledger. Used to hand the engine an
// immutable-per-computation snapshot while the service keeps editing.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		ID:        l.ID,
		Name:      l.Name,
		CreatedAt: l.CreatedAt,
	}
	if l.Persons != nil {
		c.Persons = make([]Person, len(l.Persons))
		copy(c.Persons, l.Persons)
	}
	if l.Items != nil {
		c.Items = make([]Item, len(l.Items))
		for i, it := range l.Items {
			if it.SharedBy != nil {
				shared := make([]string, len(it.SharedBy))
				copy(shared, it.SharedBy)
				it.SharedBy = shared
			}
			c.Items[i] = it
		}
	}
	return c
}
