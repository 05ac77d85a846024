// Package api defines the core protocol types for the watchtracker ledger.
//
// The ledger records, per service namespace, which opaque entry identifiers
// have already been seen. This package provides the data types exchanged
// between the transport layer, the ledger service, and the storage adapters:
// the Entry record, the request/response shapes of the three operations,
// request validation, and the structured error taxonomy.
//
// The package has no external dependencies and performs no I/O.
//
// Core types:
//   - [Entry]: one (service, entry_id) record plus arbitrary attributes
//   - [AddEntryRequest] / [AddEntryResult]: find-or-create input and output
//   - [GetEntriesRequest]: batch lookup input
//   - [ServiceList]: distinct namespace listing
//   - [APIError]: structured error with type, param, and message
//
// Entries serialize as flat JSON objects: the identifying fields "service"
// and "entry_id" sit next to the caller-supplied attributes, exactly as they
// were submitted.
package api
