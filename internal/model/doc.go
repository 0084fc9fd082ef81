// Package model defines the data shapes shared by the relay, the producer and its stores.
//
// Conventions:
//   - Resources are named, read-only views over one table each
//   - Columns are fixed per resource and always returned in catalog order
//   - Rows are returned newest first (ts DESC)
package model
