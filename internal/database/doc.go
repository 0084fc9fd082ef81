// Package database opens the producer's data sources strictly read-only.
//
// Two backends are supported:
//   - SQLite: the embedded signals database, opened mode=ro with a bounded busy wait
//     so queries never block the live writer
//   - PostgreSQL/TimescaleDB: a pgx pool whose sessions default to read-only
//     transactions with a bounded lock wait
package database
