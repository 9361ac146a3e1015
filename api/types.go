package api

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

const (
	// SignatureHeader carries the caller's 65-byte secp256k1 signature over the
	// EIP-191 personal-message hash of the request body, hex encoded.
	SignatureHeader = "X-Registrar-Signature"

	// MaxBodySize bounds request bodies accepted by the registrar API.
	MaxBodySize = 64 * 1024

	// MaxAuthorizationLifetime bounds how far past the server's clock a
	// signed request's deadline may lie.
	MaxAuthorizationLifetime = 10 * time.Minute
)

// Operations a signed request can authorize.
const (
	OpCommit   = "commit"
	OpRegister = "register"
	OpRenew    = "renew"
	OpWithdraw = "withdraw"
)

// Authorization is carried by every signed request body. The server accepts
// a body only on the route named by Operation, until Deadline (unix seconds),
// and at most once per signer and Nonce.
type Authorization struct {
	Operation string `json:"op"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
}

// CommitmentRequest asks the server to compute a commitment. Address defaults
// to the signer when the request is signed.
type CommitmentRequest struct {
	Name    string              `json:"name"`
	Salt    interfaces.Salt     `json:"salt"`
	Address *interfaces.Address `json:"address,omitempty"`
}

type CommitmentResponse struct {
	Commitment interfaces.Digest `json:"commitment"`
}

type CommitRequest struct {
	Authorization
	Commitment interfaces.Digest `json:"commitment"`
}

// RegisterRequest reveals a committed name. Payment is a hex quantity in wei.
type RegisterRequest struct {
	Authorization
	Name    string          `json:"name"`
	Salt    interfaces.Salt `json:"salt"`
	Payment *hexutil.Big    `json:"payment"`
}

// NameRequest is the body of renew and withdraw.
type NameRequest struct {
	Authorization
	Name string `json:"name"`
}

type StatusResponse struct {
	Status string              `json:"status"`
	Caller *interfaces.Address `json:"caller,omitempty"`
}

// NameLockResponse describes a lock. Times are unix seconds.
type NameLockResponse struct {
	Name     string             `json:"name"`
	NameHash interfaces.Digest  `json:"name_hash"`
	Owner    interfaces.Address `json:"owner"`
	Escrow   *hexutil.Big       `json:"escrow"`
	EndDate  int64              `json:"end_date"`
	Expired  bool               `json:"expired"`
}

func NewNameLockResponse(name string, lock interfaces.NameLock, now time.Time) NameLockResponse {
	return NameLockResponse{
		Name:     name,
		NameHash: lock.NameHash,
		Owner:    lock.Owner,
		Escrow:   toHexBig(lock.Escrow),
		EndDate:  lock.EndDate.Unix(),
		Expired:  lock.Expired(now),
	}
}

// NameLock converts the response back into a lock record.
func (r NameLockResponse) NameLock() interfaces.NameLock {
	return interfaces.NameLock{
		NameHash: r.NameHash,
		Owner:    r.Owner,
		Escrow:   fromHexBig(r.Escrow),
		EndDate:  time.Unix(r.EndDate, 0).UTC(),
	}
}

// EventMessage is the wire form of an event, shared by the HTTP API and the
// Redis publisher.
type EventMessage struct {
	Seq     uint64               `json:"seq"`
	Kind    interfaces.EventKind `json:"kind"`
	Name    string               `json:"name"`
	Amount  *hexutil.Big         `json:"amount,omitempty"`
	Address interfaces.Address   `json:"address"`
	EndDate int64                `json:"end_date,omitempty"`
	Time    int64                `json:"time"`
}

func NewEventMessage(event interfaces.Event) EventMessage {
	msg := EventMessage{
		Seq:     event.Seq,
		Kind:    event.Kind,
		Name:    event.Name,
		Address: event.Address,
		Time:    event.Time.Unix(),
	}
	if event.Amount != nil {
		msg.Amount = toHexBig(event.Amount)
	}
	if !event.EndDate.IsZero() {
		msg.EndDate = event.EndDate.Unix()
	}
	return msg
}

func (m EventMessage) Event() interfaces.Event {
	event := interfaces.Event{
		Seq:     m.Seq,
		Kind:    m.Kind,
		Name:    m.Name,
		Address: m.Address,
		Time:    time.Unix(m.Time, 0).UTC(),
	}
	if m.Amount != nil {
		event.Amount = m.Amount.ToInt()
	}
	if m.EndDate != 0 {
		event.EndDate = time.Unix(m.EndDate, 0).UTC()
	}
	return event
}

type EventsResponse struct {
	Events []EventMessage `json:"events"`
}

type AccountResponse struct {
	Address interfaces.Address `json:"address"`
	Balance *hexutil.Big       `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func toHexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return (*hexutil.Big)(new(big.Int))
	}
	return (*hexutil.Big)(new(big.Int).Set(v))
}

func fromHexBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v.ToInt())
}
