// Package consumer is a client library for querying the producer's data
// through the relay.
//
// A Client holds one authenticated consumer connection and multiplexes
// concurrent Get calls over it. Each call carries its own request_id, which
// the relay echoes on the matching response.
//
//	c, err := consumer.Dial(ctx, consumer.Config{URL: url, Token: token}, logger)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	resp, err := c.Get(ctx, "trades", protocol.WithLimit(20))
package consumer
