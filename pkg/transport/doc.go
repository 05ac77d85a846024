// Package transport defines the operation interfaces and middleware chain
// that connect inbound requests to the watchtracker ledger.
//
// The transport layer decodes a request into one of three operation calls,
// dispatches it to the EntryService, and encodes the result. It never holds
// ledger state.
//
// # Interfaces
//
//   - EntryService is the use-case contract: list services, add-or-get an
//     entry, and batch lookup by entry ID. pkg/ledger implements it.
//   - EntryStore is the persistence contract the EntryService is built on.
//     The adapters under pkg/storage implement it.
//
// # Middleware
//
// Middleware wraps a Handler, the per-call closure the HTTP adapter builds
// around an EntryService method. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), and structured logging via
// log/slog. Custom middleware can be added for application-specific
// concerns.
//
// # Errors
//
// APIErrorFrom folds service errors into the api.APIError taxonomy:
// validation failures stay invalid_request, storage.ErrUnavailable becomes
// service_unavailable, and everything else is a server_error.
package transport
