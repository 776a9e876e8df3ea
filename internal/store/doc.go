// Package store persists certificate authority, agent and session records.
//
// Records are opaque byte values addressed by slash-separated keys such as
// "ca/root.crt" or "agents/agent-1/metadata.json". A Backend provides the
// primitive operations; two implementations exist:
//
//   - FileBackend stores each record as a file below a root directory.
//     Writes go to a temporary file that is renamed into place, so readers
//     never observe a partially written record.
//   - SQLiteBackend stores records in the "records" table of the agentca
//     database.
//
// Both backends provide PutIfAbsent, an atomic create-if-absent primitive
// used to guarantee a single root authority per deployment.
//
// CertStore and SessionStore layer typed accessors for the record layout
// on top of a Backend.
package store
