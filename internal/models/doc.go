// Package models defines the core domain records for CheckBill.
//
// # Models
//
//   - Person: a participant in the shared ledger
//   - Item: a single expense, paid by one person and shared by several
//   - Ledger: the snapshot of all persons and items at a point in time
//
// # Design Principles
//
// 1. **Snapshot semantics**: the Ledger is rebuilt on every edit and passed
// by value into the settlement engine; the engine never mutates it.
//
// 2. **Derived balances**: no numeric state is stored on Person. Balances,
// obligations and transfers are always recomputed from the current Ledger.
//
// 3. **Explicit optionals**: surcharge flags (VATEnabled,
// ServiceChargeEnabled) are closed booleans defaulting to false, never
// absence-as-false.
//
// 4. **Referential integrity by cascade**: removing a Person prunes every
// reference to it; an Item that loses its payer or its last sharer is dropped
// entirely. See Ledger.RemovePerson and Ledger.Normalize.
package models
