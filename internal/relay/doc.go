// Package relay implements the public relay that bridges consumers to the
// single firewalled producer.
//
// Every websocket connection is run through the auth gate before any domain
// message is processed. Authenticated consumers send get messages; the router
// assigns a correlation id, records a pending entry and forwards a request to
// the active producer. The producer's response is matched by id, removed from
// the pending table and delivered to the originating consumer.
//
// Each pending entry is resolved exactly once. A matching response, the
// timeout sweep, producer loss and consumer loss all remove the entry from
// the table before acting on it, so only the first of them does anything.
//
// Usage:
//
//	srv, err := relay.NewServer(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package relay
