package relay

import (
	"crypto/subtle"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

// Gate checks auth messages against the per-role secrets.
type Gate struct {
	producerToken []byte
	consumerToken []byte
}

// NewGate creates a gate. An empty token disables that role.
func NewGate(producerToken, consumerToken string) *Gate {
	return &Gate{
		producerToken: []byte(producerToken),
		consumerToken: []byte(consumerToken),
	}
}

// Check reports whether auth carries the secret for its role.
func (g *Gate) Check(auth protocol.Auth) bool {
	var want []byte
	switch auth.Role {
	case protocol.RoleProducer:
		want = g.producerToken
	case protocol.RoleConsumer:
		want = g.consumerToken
	default:
		return false
	}
	if len(want) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(auth.Token), want) == 1
}
