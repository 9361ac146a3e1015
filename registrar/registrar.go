package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

type strandedKey struct {
	nameHash interfaces.Digest
	owner    interfaces.Address
}

// Registrar is the commit-reveal name registration state machine.
//
// Every mutating operation runs under one mutex: all preconditions are
// checked and the escrow transfer is requested before any table is written,
// so a failed call leaves no trace. Committed events are appended to the log
// under the same mutex and handed to sinks after it is released.
type Registrar struct {
	cfg    Config
	clock  clock.Clock
	escrow interfaces.Escrow
	sinks  []interfaces.EventSink
	log    *slog.Logger

	mu          sync.RWMutex
	commitments map[interfaces.Address]interfaces.Commitment
	locks       map[interfaces.Digest]*interfaces.NameLock
	stranded    map[strandedKey]*big.Int
	events      []interfaces.Event
}

// New creates an empty registrar. Zero config fields fall back to defaults.
func New(cfg Config, clk clock.Clock, escrow interfaces.Escrow, log *slog.Logger, sinks ...interfaces.EventSink) *Registrar {
	return &Registrar{
		cfg:         cfg.withDefaults(),
		clock:       clk,
		escrow:      escrow,
		sinks:       sinks,
		log:         log,
		commitments: make(map[interfaces.Address]interfaces.Commitment),
		locks:       make(map[interfaces.Digest]*interfaces.NameLock),
		stranded:    make(map[strandedKey]*big.Int),
	}
}

// Config returns the active timing parameters.
func (r *Registrar) Config() Config {
	return r.cfg
}

// Now returns the registrar's notion of current time.
func (r *Registrar) Now() time.Time {
	return r.clock.Now()
}

// CreateCommitment computes the commitment caller must submit to later
// register name with salt. It has no side effects.
func (r *Registrar) CreateCommitment(caller interfaces.Address, name string, salt interfaces.Salt) interfaces.Digest {
	return interfaces.ComputeCommitment(name, salt, caller)
}

// Commit records commitment for caller, replacing any previous one.
func (r *Registrar) Commit(ctx context.Context, caller interfaces.Address, commitment interfaces.Digest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.commitments[caller] = interfaces.Commitment{
		Committer:   caller,
		Value:       commitment,
		SubmittedAt: now,
	}

	r.log.Debug("Commitment recorded",
		slog.String("committer", caller.Hex()),
		slog.String("commitment", commitment.String()))
}

// Register reveals name and salt, escrows payment and locks the name for
// caller for one lock period.
//
// Fails with ErrNoValidCommitment, ErrCommitmentTooRecent or
// ErrNameUnavailable, in that order of precedence, or with the escrow's
// deposit error.
func (r *Registrar) Register(ctx context.Context, caller interfaces.Address, name string, salt interfaces.Salt, payment *big.Int) error {
	if payment == nil {
		payment = new(big.Int)
	}
	if payment.Sign() < 0 {
		return interfaces.ErrInvalidPayment
	}

	event, err := r.register(ctx, caller, name, salt, new(big.Int).Set(payment))
	if err != nil {
		return err
	}

	r.publish(ctx, event)
	return nil
}

func (r *Registrar) register(ctx context.Context, caller interfaces.Address, name string, salt interfaces.Salt, payment *big.Int) (interfaces.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	commitment, ok := r.commitments[caller]
	if !ok || commitment.Value != interfaces.ComputeCommitment(name, salt, caller) {
		return interfaces.Event{}, interfaces.ErrNoValidCommitment
	}

	if now.Sub(commitment.SubmittedAt) < r.cfg.MinCommitmentAge {
		return interfaces.Event{}, interfaces.ErrCommitmentTooRecent
	}

	nameHash := interfaces.NameHash(name)
	previous, exists := r.locks[nameHash]
	if exists && !previous.Expired(now) {
		return interfaces.Event{}, interfaces.ErrNameUnavailable
	}

	if err := r.escrow.Deposit(ctx, caller, payment); err != nil {
		return interfaces.Event{}, fmt.Errorf("escrow deposit failed: %w", err)
	}

	// Nothing below can fail.
	if exists && previous.Escrow.Sign() > 0 {
		r.strandLocked(nameHash, previous.Owner, previous.Escrow)
	}

	endDate := now.Add(r.cfg.LockPeriod)
	r.locks[nameHash] = &interfaces.NameLock{
		NameHash: nameHash,
		Owner:    caller,
		Escrow:   payment,
		EndDate:  endDate,
	}
	delete(r.commitments, caller)

	r.log.Info("Name registered",
		slog.String("name", name),
		slog.String("owner", caller.Hex()),
		slog.String("escrow", payment.String()),
		slog.Time("endDate", endDate))

	return r.appendEventLocked(interfaces.Event{
		Kind:    interfaces.EventRegistered,
		Name:    name,
		Amount:  new(big.Int).Set(payment),
		Address: caller,
		EndDate: endDate,
		Time:    now,
	}), nil
}

// RenewName extends an unexpired lock by one lock period counted from its
// current end date. Any caller may renew.
func (r *Registrar) RenewName(ctx context.Context, caller interfaces.Address, name string) error {
	event, err := r.renew(caller, name)
	if err != nil {
		return err
	}

	r.publish(ctx, event)
	return nil
}

func (r *Registrar) renew(caller interfaces.Address, name string) (interfaces.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	lock, ok := r.locks[interfaces.NameHash(name)]
	if !ok {
		return interfaces.Event{}, interfaces.ErrNameNotFound
	}
	if lock.Expired(now) {
		return interfaces.Event{}, interfaces.ErrNameExpired
	}

	lock.EndDate = lock.EndDate.Add(r.cfg.LockPeriod)

	r.log.Info("Name renewed",
		slog.String("name", name),
		slog.String("caller", caller.Hex()),
		slog.Time("endDate", lock.EndDate))

	return r.appendEventLocked(interfaces.Event{
		Kind:    interfaces.EventRenewed,
		Name:    name,
		Address: caller,
		EndDate: lock.EndDate,
		Time:    now,
	}), nil
}

// Withdraw releases escrow held for name.
//
// If caller has stranded escrow for name (their expired lock was taken over),
// that amount is paid to caller regardless of the name's current lock.
// Otherwise the lock must be expired and its escrow non-zero; the full escrow
// is paid to the lock's recorded owner and zeroed. The lock record is kept.
func (r *Registrar) Withdraw(ctx context.Context, caller interfaces.Address, name string) error {
	event, err := r.withdraw(ctx, caller, name)
	if err != nil {
		return err
	}

	r.publish(ctx, event)
	return nil
}

func (r *Registrar) withdraw(ctx context.Context, caller interfaces.Address, name string) (interfaces.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	nameHash := interfaces.NameHash(name)

	key := strandedKey{nameHash: nameHash, owner: caller}
	if amount, ok := r.stranded[key]; ok {
		if err := r.escrow.Release(ctx, caller, amount); err != nil {
			return interfaces.Event{}, fmt.Errorf("escrow release failed: %w", err)
		}
		delete(r.stranded, key)

		r.log.Info("Stranded escrow withdrawn",
			slog.String("name", name),
			slog.String("owner", caller.Hex()),
			slog.String("amount", amount.String()))

		return r.appendEventLocked(interfaces.Event{
			Kind:    interfaces.EventWithdrawn,
			Name:    name,
			Amount:  new(big.Int).Set(amount),
			Address: caller,
			Time:    now,
		}), nil
	}

	lock, ok := r.locks[nameHash]
	if !ok {
		return interfaces.Event{}, interfaces.ErrNameNotFound
	}
	if !lock.Expired(now) {
		return interfaces.Event{}, interfaces.ErrCannotWithdraw
	}
	if lock.Escrow.Sign() == 0 {
		return interfaces.Event{}, interfaces.ErrNothingToWithdraw
	}

	amount := lock.Escrow
	if err := r.escrow.Release(ctx, lock.Owner, amount); err != nil {
		return interfaces.Event{}, fmt.Errorf("escrow release failed: %w", err)
	}
	lock.Escrow = new(big.Int)

	r.log.Info("Escrow withdrawn",
		slog.String("name", name),
		slog.String("owner", lock.Owner.Hex()),
		slog.String("caller", caller.Hex()),
		slog.String("amount", amount.String()))

	return r.appendEventLocked(interfaces.Event{
		Kind:    interfaces.EventWithdrawn,
		Name:    name,
		Amount:  new(big.Int).Set(amount),
		Address: lock.Owner,
		EndDate: lock.EndDate,
		Time:    now,
	}), nil
}

// NameLock returns a copy of the lock record for name, expired or not.
func (r *Registrar) NameLock(name string) (interfaces.NameLock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lock, ok := r.locks[interfaces.NameHash(name)]
	if !ok {
		return interfaces.NameLock{}, false
	}
	return lock.Copy(), true
}

// Resolve returns the lock for name only while it is active.
func (r *Registrar) Resolve(name string) (interfaces.NameLock, bool) {
	lock, ok := r.NameLock(name)
	if !ok || lock.Expired(r.clock.Now()) {
		return interfaces.NameLock{}, false
	}
	return lock, true
}

// Commitment returns the live commitment of committer, if any.
func (r *Registrar) Commitment(committer interfaces.Address) (interfaces.Commitment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.commitments[committer]
	return c, ok
}

// EscrowHeld returns everything still owed for name: the lock's escrow plus
// any stranded escrow of previous owners.
func (r *Registrar) EscrowHeld(name string) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nameHash := interfaces.NameHash(name)
	total := new(big.Int)
	if lock, ok := r.locks[nameHash]; ok {
		total.Add(total, lock.Escrow)
	}
	for key, amount := range r.stranded {
		if key.nameHash == nameHash {
			total.Add(total, amount)
		}
	}
	return total
}

// TotalEscrowHeld returns the escrow owed across all names.
func (r *Registrar) TotalEscrowHeld() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.totalEscrowLocked()
}

func (r *Registrar) totalEscrowLocked() *big.Int {
	total := new(big.Int)
	for _, lock := range r.locks {
		total.Add(total, lock.Escrow)
	}
	for _, amount := range r.stranded {
		total.Add(total, amount)
	}
	return total
}

// Events returns log entries with a sequence number greater than since.
func (r *Registrar) Events(since uint64) []interfaces.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Sequence numbers start at 1 and are dense.
	if since >= uint64(len(r.events)) {
		return []interfaces.Event{}
	}
	out := make([]interfaces.Event, 0, uint64(len(r.events))-since)
	for _, ev := range r.events[since:] {
		out = append(out, copyEvent(ev))
	}
	return out
}

func (r *Registrar) strandLocked(nameHash interfaces.Digest, owner interfaces.Address, amount *big.Int) {
	key := strandedKey{nameHash: nameHash, owner: owner}
	total := new(big.Int).Set(amount)
	if existing, ok := r.stranded[key]; ok {
		total.Add(total, existing)
	}
	r.stranded[key] = total

	r.log.Info("Escrow of expired lock left for previous owner",
		slog.String("nameHash", nameHash.String()),
		slog.String("owner", owner.Hex()),
		slog.String("amount", total.String()))
}

func (r *Registrar) appendEventLocked(event interfaces.Event) interfaces.Event {
	event.Seq = uint64(len(r.events)) + 1
	r.events = append(r.events, event)
	return copyEvent(event)
}

func (r *Registrar) publish(ctx context.Context, event interfaces.Event) {
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			r.log.Warn("Failed to publish event",
				slog.String("kind", string(event.Kind)),
				slog.Uint64("seq", event.Seq),
				"err", err)
		}
	}
}

func copyEvent(event interfaces.Event) interfaces.Event {
	if event.Amount != nil {
		event.Amount = new(big.Int).Set(event.Amount)
	}
	return event
}
