package engine

import (
	"math"
	"sort"

	"github.com/checkbill/checkbill/internal/models"
)

// Algorithm selects how obligations are reduced into transfers.
type Algorithm string

const (
	// AlgorithmGreedy is the canonical global net-balance form: it matches
	// the largest outstanding creditor against the largest outstanding
	// debtor and terminates in at most creditors+debtors-1 transfers.
	AlgorithmGreedy Algorithm = "greedy"

	// AlgorithmPairwise is the historical form kept for compatibility with
	// old shared links: it cancels mutual debts between each pair and keeps
	// the remainder between that pair only. It can leave more transfers
	// outstanding than the greedy form and is never the default.
	AlgorithmPairwise Algorithm = "pairwise"
)

// PersonBalance is one person's net position across the whole ledger.
type PersonBalance struct {
	PersonID   string  `json:"personId"`
	Name       string  `json:"name"`
	TotalPaid  float64 `json:"totalPaid"`  // sum of adjusted amounts this person paid
	TotalOwed  float64 `json:"totalOwed"`  // sum of this person's item shares
	NetBalance float64 `json:"netBalance"` // positive = owed money, negative = owes money
}

// Transfer is a final instruction to move money from one person to another.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"` // rounded to 2 decimal places
}

// Round2 rounds to 2 decimal places, the precision of every emitted transfer.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Balances computes each person's net position: total adjusted amount paid
// minus total owed share, over all valid items. The result follows the
// ledger's person insertion order, and its net balances sum to zero within
// floating tolerance.
func Balances(ledger *models.Ledger) []PersonBalance {
	paid := make(map[string]float64, len(ledger.Persons))
	owed := make(map[string]float64, len(ledger.Persons))

	for _, item := range ledger.Items {
		if !item.Valid() || !ledger.HasPerson(item.PaidBy) {
			continue
		}
		amount := AdjustedAmount(item)
		share := amount / float64(len(item.SharedBy))
		paid[item.PaidBy] += amount
		for _, sharer := range item.SharedBy {
			if ledger.HasPerson(sharer) {
				owed[sharer] += share
			}
		}
	}

	balances := make([]PersonBalance, len(ledger.Persons))
	for i, p := range ledger.Persons {
		balances[i] = PersonBalance{
			PersonID:   p.ID,
			Name:       p.Name,
			TotalPaid:  paid[p.ID],
			TotalOwed:  owed[p.ID],
			NetBalance: paid[p.ID] - owed[p.ID],
		}
	}
	return balances
}

// Resolve reduces the ledger's obligations into an ordered transfer list
// using the canonical greedy algorithm.
func Resolve(ledger *models.Ledger) []Transfer {
	return ResolveWith(ledger, AlgorithmGreedy)
}

// ResolveWith is Resolve with an explicit algorithm choice. An unknown
// algorithm falls back to the greedy form.
func ResolveWith(ledger *models.Ledger, algo Algorithm) []Transfer {
	if algo == AlgorithmPairwise {
		return resolvePairwise(ledger)
	}
	return resolveGreedy(ledger)
}

// resolveGreedy matches the largest outstanding creditor against the largest
// outstanding debtor until both sides are exhausted. Ties in balance break by
// person insertion order so identical ledgers always produce identical output.
func resolveGreedy(ledger *models.Ledger) []Transfer {
	balances := Balances(ledger)

	// indexed keeps the insertion position for deterministic tie-breaks.
	type indexed struct {
		id      string
		balance float64
		pos     int
	}

	var creditors, debtors []indexed
	for i, b := range balances {
		switch {
		case b.NetBalance > Epsilon:
			creditors = append(creditors, indexed{b.PersonID, b.NetBalance, i})
		case b.NetBalance < -Epsilon:
			debtors = append(debtors, indexed{b.PersonID, b.NetBalance, i})
		}
	}

	// Creditors descending, debtors ascending (most negative first).
	sort.Slice(creditors, func(i, j int) bool {
		if creditors[i].balance != creditors[j].balance {
			return creditors[i].balance > creditors[j].balance
		}
		return creditors[i].pos < creditors[j].pos
	})
	sort.Slice(debtors, func(i, j int) bool {
		if debtors[i].balance != debtors[j].balance {
			return debtors[i].balance < debtors[j].balance
		}
		return debtors[i].pos < debtors[j].pos
	})

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		if -debtors[i].balance < Epsilon {
			i++
			continue
		}
		if creditors[j].balance < Epsilon {
			j++
			continue
		}

		amount := math.Min(creditors[j].balance, -debtors[i].balance)
		if amount > Epsilon {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: Round2(amount),
			})
		}

		debtors[i].balance += amount
		creditors[j].balance -= amount
	}
	return transfers
}

// resolvePairwise nets only mutual debts between each ordered pair and emits
// the remainder. Output order follows the debtor's, then the creditor's,
// insertion order.
func resolvePairwise(ledger *models.Ledger) []Transfer {
	obligations := BuildObligations(ledger)

	pos := make(map[string]int, len(ledger.Persons))
	for i, p := range ledger.Persons {
		pos[p.ID] = i
	}

	var transfers []Transfer
	for pair, amount := range obligations {
		net := amount - obligations[Pair{Debtor: pair.Creditor, Creditor: pair.Debtor}]
		if net > Epsilon {
			transfers = append(transfers, Transfer{
				From:   pair.Debtor,
				To:     pair.Creditor,
				Amount: Round2(net),
			})
		}
	}

	sort.Slice(transfers, func(i, j int) bool {
		if pos[transfers[i].From] != pos[transfers[j].From] {
			return pos[transfers[i].From] < pos[transfers[j].From]
		}
		return pos[transfers[i].To] < pos[transfers[j].To]
	})
	return transfers
}
