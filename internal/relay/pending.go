package relay

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

// ErrDuplicateID is returned when a correlation id is already pending.
var ErrDuplicateID = errors.New("duplicate correlation id")

// PendingRequest is an in-flight get awaiting a producer response.
type PendingRequest struct {
	ID         string // Relay correlation id sent to the producer
	ReplyID    string // request_id echoed to the consumer
	Consumer   Conn
	ProducerID string // Session the request was forwarded to
	Resource   string
	Params     protocol.Params
	StartedAt  time.Time
	Deadline   time.Time
}

// PendingTable maps correlation ids to pending requests. Every removal
// hands the entry to exactly one caller.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*PendingRequest
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]*PendingRequest)}
}

// Insert adds an entry.
func (t *PendingTable) Insert(req *PendingRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[req.ID]; exists {
		return ErrDuplicateID
	}
	t.entries[req.ID] = req
	return nil
}

// Take removes and returns the entry for id.
func (t *PendingTable) Take(id string) (*PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return req, ok
}

// TakeExpired removes and returns every entry whose deadline is not after
// now, oldest deadline first.
func (t *PendingTable) TakeExpired(now time.Time) []*PendingRequest {
	return t.takeWhere(func(req *PendingRequest) bool {
		return !req.Deadline.After(now)
	})
}

// TakeByProducer removes and returns every entry forwarded to the given
// producer session.
func (t *PendingTable) TakeByProducer(producerID string) []*PendingRequest {
	return t.takeWhere(func(req *PendingRequest) bool {
		return req.ProducerID == producerID
	})
}

// TakeByConsumer removes and returns every entry owned by the given consumer.
func (t *PendingTable) TakeByConsumer(consumerID string) []*PendingRequest {
	return t.takeWhere(func(req *PendingRequest) bool {
		return req.Consumer.ID() == consumerID
	})
}

// Len returns the number of pending entries.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *PendingTable) takeWhere(match func(*PendingRequest) bool) []*PendingRequest {
	t.mu.Lock()
	var taken []*PendingRequest
	for id, req := range t.entries {
		if match(req) {
			taken = append(taken, req)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	sort.Slice(taken, func(i, j int) bool {
		return taken[i].Deadline.Before(taken[j].Deadline)
	})
	return taken
}
