// Package connection implements the outbound WebSocket client used by the
// producer and by consumers to reach the relay.
//
// The client:
//   - Dials the relay's /ws endpoint
//   - Serializes writes under a deadline
//   - Answers server pings and sends its own keepalives
//   - Detects stale connections and reports them on Errors()
//   - Performs the auth / auth_ok handshake
package connection
