package engine

import "github.com/checkbill/checkbill/internal/models"

// Surcharge multipliers. VAT and service charge compose multiplicatively,
// with no rounding between the two; rounding happens only at the transfer
// boundary.
const (
	vatRate           = 1.07
	serviceChargeRate = 1.10
)

// Epsilon is the settlement noise floor: balances within this of zero are
// considered settled, and transfers at or below it are not emitted. It is
// one minor unit of the reference currency; changing precision means
// changing this constant and the 2-decimal rounding in Round2.
const Epsilon = 0.01

// AdjustedAmount returns the effective chargeable amount of an item after
// applying its surcharge flags. Always non-negative; zero only for a zero
// base amount.
func AdjustedAmount(item models.Item) float64 {
	amount := item.BaseAmount
	if item.VATEnabled {
		amount *= vatRate
	}
	if item.ServiceChargeEnabled {
		amount *= serviceChargeRate
	}
	return amount
}
