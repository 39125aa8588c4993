package engine

import "github.com/checkbill/checkbill/internal/models"

// Pair is an ordered (debtor, creditor) key for aggregated obligations.
type Pair struct {
	Debtor   string
	Creditor string
}

// BuildObligations expands each valid item into per-sharer debts toward the
// payer and sums them per ordered (debtor, creditor) pair. Items with an
// empty sharer set or a missing/unknown payer are skipped; they never enter
// settlement. A sharer equal to the payer owes nothing, but still counts in
// the divisor, so their share reduces what the others owe.
func BuildObligations(ledger *models.Ledger) map[Pair]float64 {
	obligations := make(map[Pair]float64)
	for _, item := range ledger.Items {
		if !item.Valid() || !ledger.HasPerson(item.PaidBy) {
			continue
		}
		share := AdjustedAmount(item) / float64(len(item.SharedBy))
		if share == 0 {
			continue
		}
		for _, sharer := range item.SharedBy {
			if sharer == item.PaidBy || !ledger.HasPerson(sharer) {
				continue
			}
			obligations[Pair{Debtor: sharer, Creditor: item.PaidBy}] += share
		}
	}
	return obligations
}
