package protocol

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrMalformed   = errors.New("malformed message")
	ErrInvalidRole = errors.New("invalid role")
)

// MessageType discriminates frames.
type MessageType string

const (
	TypeAuth     MessageType = "auth"
	TypeAuthOK   MessageType = "auth_ok"
	TypeGet      MessageType = "get"
	TypeRequest  MessageType = "request"
	TypeResponse MessageType = "response"
)

// Role is the authenticated identity of a connection.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleConsumer
}

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes delivered in response.error. Producers may also send
// free-text errors for store failures.
const (
	ErrCodeProducerOffline = "producer_offline"
	ErrCodeTimeout         = "timeout"
	ErrCodeSendFailed      = "send_failed"
	ErrCodeUnknownResource = "unknown_resource"
	ErrCodeRateLimited     = "rate_limited"
)

// WebSocket close codes used by the relay.
const (
	CloseAuthFailed    = 4000
	CloseProtocolError = 4001
	CloseSuperseded    = 4002
)

// Envelope is used for fast type extraction.
type Envelope struct {
	Type MessageType `json:"type"`
}

// Auth is the first message a client sends.
type Auth struct {
	Type  MessageType `json:"type"`
	Role  Role        `json:"role"`
	Token string      `json:"token"`
}

// AuthOK acknowledges a successful handshake.
type AuthOK struct {
	Type MessageType `json:"type"`
	Role Role        `json:"role"`
}

// Get is a consumer query. RequestID is optional; when set it is echoed on
// the matching response.
type Get struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Resource  string      `json:"resource"`
	Params    Params      `json:"params"`
}

// Request is a query forwarded to the producer.
type Request struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id"`
	Resource  string      `json:"resource"`
	Params    Params      `json:"params"`
}

// Response answers a request (producer -> relay) or a get (relay -> consumer).
type Response struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// OK reports whether the response carries data.
func (r Response) OK() bool {
	return r.Status == StatusOK
}

// NewAuth builds an auth message.
func NewAuth(role Role, token string) Auth {
	return Auth{Type: TypeAuth, Role: role, Token: token}
}

// NewAuthOK builds an auth_ok message.
func NewAuthOK(role Role) AuthOK {
	return AuthOK{Type: TypeAuthOK, Role: role}
}

// NewRequest builds a request for the producer.
func NewRequest(id, resource string, params Params) Request {
	return Request{Type: TypeRequest, RequestID: id, Resource: resource, Params: params}
}

// NewDataResponse builds a successful response.
func NewDataResponse(id string, data json.RawMessage) Response {
	return Response{Type: TypeResponse, RequestID: id, Status: StatusOK, Data: data}
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(id, code string) Response {
	return Response{Type: TypeResponse, RequestID: id, Status: StatusError, Error: code}
}
