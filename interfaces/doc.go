// Package interfaces defines core interfaces and types for the name registrar,
// separating interface definitions from implementations.
//
// # Registrar Types
//
// Commitment: a sealed keccak256(name ‖ salt ‖ committer) digest recorded by
// commit and consumed by a successful register.
//
// NameLock: custody record of a name keyed by keccak256(name), holding the
// owner, the escrowed payment and the end date of the lock.
//
// StrandedEscrow: escrow of an expired lock that was taken over by a new
// registration before its owner withdrew it.
//
// Event: append-only log entry (Registered, Renewed, Withdrawn).
//
// # Collaborator Interfaces
//
// Escrow: moves currency between registrants and registrar custody.
//
// EventSink: observes committed events (metrics, Redis, logs).
//
// NameRegistrar: caller-bound client surface implemented by the in-process
// session, the HTTP client and the on-chain client.
//
// # Storage Interfaces
//
// StorageBackend: snapshot storage addressed by ContentID, with file, S3,
// IPFS and Vault implementations selected by StorageBackendLocation URIs.
package interfaces
