// Package registrar implements the commit-reveal name registration state
// machine.
//
// A registrant first computes a commitment over the desired name, a secret
// salt and their own address, and submits it with Commit. After the minimum
// commitment age has passed, Register reveals the name and salt, escrows the
// payment and locks the name for the lock period. Locks can be renewed by one
// period at a time while active. Once a lock expires anyone can register the
// name again, and the escrow of the expired lock becomes withdrawable by its
// owner.
//
// Per-name lifecycle:
//
//	AVAILABLE --Register--> REGISTERED --RenewName--> REGISTERED (endDate += period)
//	REGISTERED --time--> EXPIRED --Register--> REGISTERED (new owner, old escrow kept)
//	EXPIRED --Withdraw--> EXPIRED (escrow = 0)
//
// Currency movement is delegated to an interfaces.Escrow and committed events
// are fanned out to interfaces.EventSink implementations.
package registrar
