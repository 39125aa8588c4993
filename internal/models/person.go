package models

import (
	"strings"

	"github.com/google/uuid"
)

// Person represents a participant in a ledger.
type Person struct {
	// ID is the unique identifier for the person (UUID format).
	// Stable for the lifetime of the ledger.
	ID string `json:"id"`

	// Name is the display name. Must be non-empty after trimming.
	Name string `json:"name"`
}

// NewPerson creates a Person with a fresh ID and a trimmed name.
// Returns false if the name is empty after trimming.
func NewPerson(name string) (Person, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Person{}, false
	}
	return Person{ID: uuid.New().String(), Name: name}, true
}
