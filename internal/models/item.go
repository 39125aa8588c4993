package models

import "strings"

// Item represents a single shared expense on the ledger.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string `json:"id"`

	// Name is the description of the expense (e.g., "Dinner").
	Name string `json:"name"`

	// BaseAmount is the pre-surcharge price. Never negative; zero is legal
	// and contributes no obligation.
	BaseAmount float64 `json:"baseAmount"`

	// SharedBy lists the IDs of the persons splitting this item equally.
	// The payer may appear here; their share then reduces what the others
	// owe, since the divisor is the full sharer count.
	SharedBy []string `json:"sharedBy"`

	// PaidBy is the ID of the person who paid for the item.
	PaidBy string `json:"paidBy"`

	// VATEnabled applies a 7% surcharge to the base amount.
	VATEnabled bool `json:"vatEnabled"`

	// ServiceChargeEnabled applies a 10% surcharge to the base amount.
	// Composes multiplicatively with VAT.
	ServiceChargeEnabled bool `json:"serviceChargeEnabled"`
}

// Valid reports whether the item can enter settlement: a non-empty name,
// a non-negative amount, at least one sharer and a payer.
func (it Item) Valid() bool {
	return strings.TrimSpace(it.Name) != "" &&
		it.BaseAmount >= 0 &&
		len(it.SharedBy) > 0 &&
		it.PaidBy != ""
}

// SharedByPerson reports whether the given person shares this item.
func (it Item) SharedByPerson(personID string) bool {
	for _, id := range it.SharedBy {
		if id == personID {
			return true
		}
	}
	return false
}
