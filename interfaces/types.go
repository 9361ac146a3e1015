package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a registrant. It is the 20-byte Ethereum account address.
type Address = common.Address

// Digest is a 32-byte keccak256 hash (commitments and name hashes).
type Digest [32]byte

// Salt is the 32-byte secret mixed into a commitment.
type Salt [32]byte

// NewDigestFromHex parses a 64-char hex string, with or without 0x prefix.
func NewDigestFromHex(s string) (Digest, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Digest{}, err
	}
	return Digest(b), nil
}

// NewSaltFromHex parses a 64-char hex string, with or without 0x prefix.
func NewSaltFromHex(s string) (Salt, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Salt{}, err
	}
	return Salt(b), nil
}

func decodeFixedHex(s string, size int) ([32]byte, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != size*2 {
		return [32]byte{}, fmt.Errorf("invalid length: hex string must be %d characters", size*2)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res [32]byte
	copy(res[:], raw)
	return res, nil
}

// String returns the 0x-prefixed hex representation.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// Bytes returns the raw 32-byte digest.
func (d Digest) Bytes() []byte {
	return d[:]
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := NewDigestFromHex(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// String returns the 0x-prefixed hex representation.
func (s Salt) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Salt) UnmarshalText(text []byte) error {
	parsed, err := NewSaltFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NameHash returns the key under which a name's lock is stored.
func NameHash(name string) Digest {
	return Digest(crypto.Keccak256Hash([]byte(name)))
}

// ComputeCommitment binds name, salt and committer into one digest:
// keccak256(name ‖ salt ‖ committer), the packed encoding used by the
// Solidity registrar.
func ComputeCommitment(name string, salt Salt, committer Address) Digest {
	return Digest(crypto.Keccak256Hash([]byte(name), salt[:], committer.Bytes()))
}

// Commitment is a sealed, unrevealed intention to register a name.
type Commitment struct {
	Committer   Address   `json:"committer"`
	Value       Digest    `json:"value"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NameLock is the current custody record of a name.
type NameLock struct {
	NameHash Digest    `json:"name_hash"`
	Owner    Address   `json:"owner"`
	Escrow   *big.Int  `json:"escrow"`
	EndDate  time.Time `json:"end_date"`
}

// Expired reports whether the lock lapsed strictly before now.
func (l NameLock) Expired(now time.Time) bool {
	return now.After(l.EndDate)
}

// Copy returns a deep copy safe to hand out to callers.
func (l NameLock) Copy() NameLock {
	l.Escrow = new(big.Int).Set(escrowOrZero(l.Escrow))
	return l
}

// StrandedEscrow is escrow left behind by an owner whose expired lock was
// taken over by a new registration. Only that owner can withdraw it.
type StrandedEscrow struct {
	NameHash Digest   `json:"name_hash"`
	Owner    Address  `json:"owner"`
	Amount   *big.Int `json:"amount"`
}

func escrowOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// EventKind names an entry in the registrar's event log.
type EventKind string

const (
	EventRegistered EventKind = "Registered"
	EventRenewed    EventKind = "Renewed"
	EventWithdrawn  EventKind = "Withdrawn"
)

// Event is one append-only event log entry.
//
// Registered carries Name, Amount (payment) and Address (owner).
// Renewed carries Name, EndDate (new end date) and Address (caller).
// Withdrawn carries Name, Amount (released) and Address (recipient).
type Event struct {
	Seq     uint64    `json:"seq"`
	Kind    EventKind `json:"kind"`
	Name    string    `json:"name"`
	Amount  *big.Int  `json:"amount,omitempty"`
	Address Address   `json:"address"`
	EndDate time.Time `json:"end_date"`
	Time    time.Time `json:"time"`
}

// Snapshot is the full persisted registrar state. Balances is filled by the
// owner of the escrow ledger when the ledger is in-process.
type Snapshot struct {
	TakenAt     time.Time            `json:"taken_at"`
	Commitments []Commitment         `json:"commitments"`
	Locks       []NameLock           `json:"locks"`
	Stranded    []StrandedEscrow     `json:"stranded"`
	Events      []Event              `json:"events"`
	Balances    map[Address]*big.Int `json:"balances,omitempty"`
}

var (
	// ErrNoValidCommitment is returned when the revealed name and salt do not
	// match the caller's stored commitment, or there is none.
	ErrNoValidCommitment = errors.New("no valid commitment")

	// ErrCommitmentTooRecent is returned when a reveal comes before the
	// minimum commitment age has passed.
	ErrCommitmentTooRecent = errors.New("commitment too recent")

	// ErrNameUnavailable is returned when the name is held by an unexpired lock.
	ErrNameUnavailable = errors.New("this name is not available")

	// ErrNameExpired is returned when renewing a lock past its end date.
	ErrNameExpired = errors.New("name is expired")

	// ErrNameNotFound is returned for names with no lock record.
	ErrNameNotFound = errors.New("name not found")

	// ErrCannotWithdraw is returned when withdrawing before the lock expires.
	ErrCannotWithdraw = errors.New("cannot withdraw")

	// ErrNothingToWithdraw is returned when the escrow was already released.
	ErrNothingToWithdraw = errors.New("nothing to withdraw")

	// ErrInvalidPayment is returned for negative payment amounts.
	ErrInvalidPayment = errors.New("invalid payment amount")

	// ErrInsufficientFunds is returned by escrow implementations when the payer
	// cannot cover a deposit.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
