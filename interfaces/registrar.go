package interfaces

import (
	"context"
	"math/big"
)

// Escrow moves currency between registrants and the registrar's custody.
// A failed call must leave balances unchanged.
type Escrow interface {
	// Deposit takes amount from payer into registrar custody.
	Deposit(ctx context.Context, payer Address, amount *big.Int) error

	// Release pays amount out of registrar custody to recipient.
	Release(ctx context.Context, recipient Address, amount *big.Int) error
}

// EventSink observes events emitted by the registrar after they are committed.
// Sink failures never roll back the operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// NameRegistrar is the caller-bound registrar surface used by clients.
// The caller identity is fixed by the implementation (a signing key, a
// transactor or an explicit session address).
type NameRegistrar interface {
	// CreateCommitment returns keccak256(name ‖ salt ‖ caller).
	CreateCommitment(ctx context.Context, name string, salt Salt) (Digest, error)

	// Commit records the sealed commitment for the caller.
	Commit(ctx context.Context, commitment Digest) error

	// Register reveals name and salt and escrows payment.
	Register(ctx context.Context, name string, salt Salt, payment *big.Int) error

	// RenewName extends an active lock by one lock period.
	RenewName(ctx context.Context, name string) error

	// Withdraw releases escrow of an expired lock to its owner.
	Withdraw(ctx context.Context, name string) error

	// NameLock returns the lock record for name.
	NameLock(ctx context.Context, name string) (*NameLock, error)
}
