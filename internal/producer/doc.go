// Package producer runs the data-side client that answers relay requests
// from the local read-only store.
//
// The producer keeps one outbound connection to the relay. A reader
// goroutine decodes request frames into a queue drained by a fixed set of
// workers; each worker runs one store query per request and writes the
// response back. When the session drops the producer reconnects with
// exponential backoff and authenticates again.
//
// Store failures never end the session. They are reported to the relay as
// error responses carrying the failure text, or unknown_resource.
package producer
