// Package engine computes settlements for a ledger snapshot.
//
// The pipeline is: surcharge adjustment per item, expansion into pairwise
// obligations, then reduction into a minimal ordered transfer list via
// global net-balance matching. Every exported function is a pure function of
// its input: the engine holds no state between calls, never mutates the
// ledger, and is safe for concurrent use.
package engine
