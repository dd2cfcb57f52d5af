// Package repositories implements SQL persistence for the service's entities.
//
// [CredentialRepository] stores one row per successful authorization. Rows are never updated or
// deleted and there is no uniqueness constraint on the Spotify user id.
//
// Queries are written with "?" placeholders and rebound for postgres via [shared.Rebind], so the same
// repository runs against sqlite3 (default) and postgres.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
