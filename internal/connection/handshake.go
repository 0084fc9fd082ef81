package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

// Authenticate sends the auth message and waits for auth_ok. The relay closes
// the socket on a bad token, which surfaces here as ErrAuthRejected.
func Authenticate(ctx context.Context, c Client, role protocol.Role, token string, timeout time.Duration) error {
	data, err := protocol.Encode(protocol.NewAuth(role, token))
	if err != nil {
		return fmt.Errorf("encode auth: %w", err)
	}
	if err := c.Send(data); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("await auth_ok: %w", ErrTimeout)
	case err := <-c.Errors():
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	case msg, ok := <-c.Messages():
		if !ok {
			return ErrAuthRejected
		}
		reply, err := protocol.Decode[protocol.AuthOK](msg.Data)
		if err != nil {
			return fmt.Errorf("decode auth reply: %w", err)
		}
		if reply.Type != protocol.TypeAuthOK || reply.Role != role {
			return fmt.Errorf("%w: unexpected reply %q", ErrAuthRejected, reply.Type)
		}
		return nil
	}
}
