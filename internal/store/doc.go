// Package store executes resource queries against the producer's local data.
//
// Stores are read-only: they never write, never take exclusive locks, and give
// up after a short bounded wait if the live writer holds the database.
package store
