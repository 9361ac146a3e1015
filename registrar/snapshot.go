package registrar

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// balanceExporter is implemented by escrow backends whose account balances
// are persisted with the registrar, such as escrow.Ledger.
type balanceExporter interface {
	Export() map[interfaces.Address]*big.Int
}

// Snapshot captures the full registrar state in a deterministic order, so
// identical state always serializes to identical bytes. Escrow balances are
// read under the same lock that guards deposits and releases, so they always
// agree with the captured locks.
func (r *Registrar) Snapshot() interfaces.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := interfaces.Snapshot{
		TakenAt:     r.clock.Now(),
		Commitments: make([]interfaces.Commitment, 0, len(r.commitments)),
		Locks:       make([]interfaces.NameLock, 0, len(r.locks)),
		Stranded:    make([]interfaces.StrandedEscrow, 0, len(r.stranded)),
		Events:      make([]interfaces.Event, 0, len(r.events)),
	}

	for _, c := range r.commitments {
		snap.Commitments = append(snap.Commitments, c)
	}
	sort.Slice(snap.Commitments, func(i, j int) bool {
		return bytes.Compare(snap.Commitments[i].Committer.Bytes(), snap.Commitments[j].Committer.Bytes()) < 0
	})

	for _, lock := range r.locks {
		snap.Locks = append(snap.Locks, lock.Copy())
	}
	sort.Slice(snap.Locks, func(i, j int) bool {
		return bytes.Compare(snap.Locks[i].NameHash[:], snap.Locks[j].NameHash[:]) < 0
	})

	for key, amount := range r.stranded {
		snap.Stranded = append(snap.Stranded, interfaces.StrandedEscrow{
			NameHash: key.nameHash,
			Owner:    key.owner,
			Amount:   new(big.Int).Set(amount),
		})
	}
	sort.Slice(snap.Stranded, func(i, j int) bool {
		if c := bytes.Compare(snap.Stranded[i].NameHash[:], snap.Stranded[j].NameHash[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(snap.Stranded[i].Owner.Bytes(), snap.Stranded[j].Owner.Bytes()) < 0
	})

	for _, ev := range r.events {
		snap.Events = append(snap.Events, copyEvent(ev))
	}

	if exporter, ok := r.escrow.(balanceExporter); ok {
		snap.Balances = exporter.Export()
	}

	return snap
}

// Restore replaces the registrar state with snap. It is meant to be called
// once at startup, before the registrar serves requests.
func (r *Registrar) Restore(snap interfaces.Snapshot) error {
	commitments := make(map[interfaces.Address]interfaces.Commitment, len(snap.Commitments))
	for _, c := range snap.Commitments {
		commitments[c.Committer] = c
	}

	locks := make(map[interfaces.Digest]*interfaces.NameLock, len(snap.Locks))
	for _, lock := range snap.Locks {
		if lock.Escrow != nil && lock.Escrow.Sign() < 0 {
			return fmt.Errorf("negative escrow for name hash %s", lock.NameHash)
		}
		if _, dup := locks[lock.NameHash]; dup {
			return fmt.Errorf("duplicate lock for name hash %s", lock.NameHash)
		}
		restored := lock.Copy()
		locks[lock.NameHash] = &restored
	}

	stranded := make(map[strandedKey]*big.Int, len(snap.Stranded))
	for _, s := range snap.Stranded {
		if s.Amount == nil || s.Amount.Sign() <= 0 {
			return fmt.Errorf("invalid stranded escrow for name hash %s", s.NameHash)
		}
		key := strandedKey{nameHash: s.NameHash, owner: s.Owner}
		total := new(big.Int).Set(s.Amount)
		if existing, ok := stranded[key]; ok {
			total.Add(total, existing)
		}
		stranded[key] = total
	}

	events := make([]interfaces.Event, 0, len(snap.Events))
	for i, ev := range snap.Events {
		if ev.Seq != uint64(i)+1 {
			return fmt.Errorf("event log gap: expected seq %d, got %d", i+1, ev.Seq)
		}
		events = append(events, copyEvent(ev))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.commitments = commitments
	r.locks = locks
	r.stranded = stranded
	r.events = events
	return nil
}
