// Package campaign provides the campaign aggregate and its lifecycle rules.
//
// A campaign is a funding goal with a deadline, an owner, and a ledger of
// contributions. Transitions are pure functions: each takes the current state,
// the caller and the current time, and returns the updated state or a domain
// error. Nothing here touches storage, clocks or transfers; the registry and
// the settlement coordinator supply those.
//
// # Lifecycle
//
// Campaigns start active and move to completed exactly once, by the owner.
// The deadline is never enforced by a timer. Each operation compares the
// caller-supplied time against the stored deadline when it runs.
//
// # Funds
//
// TotalFunds only changes inside a validated transition: contribute, refund,
// or a confirmed withdrawal. ReservedFunds tracks withdrawals that were
// requested but not yet confirmed.
package campaign
