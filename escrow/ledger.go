// Package escrow provides an in-memory currency ledger that backs the
// registrar's payment collaborator.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// ErrCustodyShortfall is returned when a release exceeds what the ledger holds
// on the registrar's behalf. It indicates an accounting bug upstream.
var ErrCustodyShortfall = errors.New("release exceeds funds held in custody")

// Ledger tracks spendable balances per address and the amount held in
// registrar custody. It implements interfaces.Escrow.
type Ledger struct {
	mu       sync.Mutex
	balances map[interfaces.Address]*big.Int
	held     *big.Int
	log      *slog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(log *slog.Logger) *Ledger {
	return &Ledger{
		balances: make(map[interfaces.Address]*big.Int),
		held:     new(big.Int),
		log:      log,
	}
}

// Credit adds funds to an account, e.g. from a genesis allocation.
func (l *Ledger) Credit(addr interfaces.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return interfaces.ErrInvalidPayment
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[addr] = new(big.Int).Add(l.balanceLocked(addr), amount)
	return nil
}

// Balance returns the spendable balance of addr.
func (l *Ledger) Balance(addr interfaces.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.balanceLocked(addr))
}

// Held returns the total amount in registrar custody.
func (l *Ledger) Held() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.held)
}

// Deposit moves amount from payer into custody.
func (l *Ledger) Deposit(ctx context.Context, payer interfaces.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return interfaces.ErrInvalidPayment
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balanceLocked(payer)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, required %s", interfaces.ErrInsufficientFunds, balance, amount)
	}

	l.balances[payer] = new(big.Int).Sub(balance, amount)
	l.held = new(big.Int).Add(l.held, amount)

	l.log.Debug("Escrow deposit",
		slog.String("payer", payer.Hex()),
		slog.String("amount", amount.String()))
	return nil
}

// Release pays amount out of custody to recipient.
func (l *Ledger) Release(ctx context.Context, recipient interfaces.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return interfaces.ErrInvalidPayment
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held.Cmp(amount) < 0 {
		return fmt.Errorf("%w: held %s, requested %s", ErrCustodyShortfall, l.held, amount)
	}

	l.held = new(big.Int).Sub(l.held, amount)
	l.balances[recipient] = new(big.Int).Add(l.balanceLocked(recipient), amount)

	l.log.Debug("Escrow release",
		slog.String("recipient", recipient.Hex()),
		slog.String("amount", amount.String()))
	return nil
}

// Export returns a copy of all non-zero account balances.
func (l *Ledger) Export() map[interfaces.Address]*big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[interfaces.Address]*big.Int, len(l.balances))
	for addr, balance := range l.balances {
		if balance.Sign() == 0 {
			continue
		}
		out[addr] = new(big.Int).Set(balance)
	}
	return out
}

// Restore replaces the ledger contents. held must equal the escrow the
// registrar still owes, which is not part of any account balance.
func (l *Ledger) Restore(balances map[interfaces.Address]*big.Int, held *big.Int) error {
	if held == nil || held.Sign() < 0 {
		return fmt.Errorf("invalid custody amount: %v", held)
	}

	restored := make(map[interfaces.Address]*big.Int, len(balances))
	for addr, balance := range balances {
		if balance == nil || balance.Sign() < 0 {
			return fmt.Errorf("invalid balance for %s: %v", addr.Hex(), balance)
		}
		restored[addr] = new(big.Int).Set(balance)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = restored
	l.held = new(big.Int).Set(held)
	return nil
}

func (l *Ledger) balanceLocked(addr interfaces.Address) *big.Int {
	if balance, ok := l.balances[addr]; ok {
		return balance
	}
	return new(big.Int)
}
