// Package protocol defines the JSON messages exchanged over the relay's /ws endpoint.
//
// Every frame is a UTF-8 JSON object with a "type" discriminator:
//   - auth / auth_ok: role handshake, first message on every connection
//   - get: consumer asks the relay for a resource
//   - request: relay forwards a get to the producer under a correlation id
//   - response: producer answers a request; relay delivers it to the consumer
package protocol
