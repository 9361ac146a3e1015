package registrar

import (
	"context"
	"math/big"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// Session binds a registrar to one caller and implements
// interfaces.NameRegistrar for in-process use.
type Session struct {
	registrar *Registrar
	caller    interfaces.Address
}

// Session returns a caller-bound view of the registrar.
func (r *Registrar) Session(caller interfaces.Address) *Session {
	return &Session{registrar: r, caller: caller}
}

// Caller returns the address the session acts as.
func (s *Session) Caller() interfaces.Address {
	return s.caller
}

func (s *Session) CreateCommitment(ctx context.Context, name string, salt interfaces.Salt) (interfaces.Digest, error) {
	return s.registrar.CreateCommitment(s.caller, name, salt), nil
}

func (s *Session) Commit(ctx context.Context, commitment interfaces.Digest) error {
	s.registrar.Commit(ctx, s.caller, commitment)
	return nil
}

func (s *Session) Register(ctx context.Context, name string, salt interfaces.Salt, payment *big.Int) error {
	return s.registrar.Register(ctx, s.caller, name, salt, payment)
}

func (s *Session) RenewName(ctx context.Context, name string) error {
	return s.registrar.RenewName(ctx, s.caller, name)
}

func (s *Session) Withdraw(ctx context.Context, name string) error {
	return s.registrar.Withdraw(ctx, s.caller, name)
}

func (s *Session) NameLock(ctx context.Context, name string) (*interfaces.NameLock, error) {
	lock, ok := s.registrar.NameLock(name)
	if !ok {
		return nil, interfaces.ErrNameNotFound
	}
	return &lock, nil
}

var _ interfaces.NameRegistrar = (*Session)(nil)
