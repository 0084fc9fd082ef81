// Package metrics provides Prometheus metrics for monitoring the relay.
//
// Key metrics:
//   - Authenticated connections by role, and whether a producer is attached
//   - Pending-request table size
//   - Request outcomes by resource and latency to resolution
//   - Auth failures, protocol violations and discarded producer responses
//
// A nil *Relay is valid and records nothing.
package metrics
