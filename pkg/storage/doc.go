// Package storage provides utilities shared across entry store
// implementations: the sentinel errors every backend returns and the
// uniqueness key helpers.
//
// Storage adapters (memory, postgres, mongo, badger) implement the
// transport.EntryStore interface defined in pkg/transport/handler.go. This
// package contains only shared types and helpers, not the interface itself.
package storage
