// Package ledger implements the watchtracker use cases on top of an
// EntryStore: listing service namespaces, find-or-create of a single
// entry, and batch lookup of entries by ID.
//
// The ledger holds no state of its own. Uniqueness of (service, entry_id)
// is enforced by the store; when two AddEntry calls race for the same key,
// the loser's insert fails with storage.ErrConflict and the ledger returns
// the winner's record with Added set to false. No application-level locks
// are taken.
package ledger
