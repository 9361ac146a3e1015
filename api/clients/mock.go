package clients

import (
	"context"
	"math/big"

	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockNameRegistrar is a testify mock of interfaces.NameRegistrar.
type MockNameRegistrar struct {
	mock.Mock
}

func (m *MockNameRegistrar) CreateCommitment(ctx context.Context, name string, salt interfaces.Salt) (interfaces.Digest, error) {
	args := m.Called(ctx, name, salt)
	return args.Get(0).(interfaces.Digest), args.Error(1)
}

func (m *MockNameRegistrar) Commit(ctx context.Context, commitment interfaces.Digest) error {
	args := m.Called(ctx, commitment)
	return args.Error(0)
}

func (m *MockNameRegistrar) Register(ctx context.Context, name string, salt interfaces.Salt, payment *big.Int) error {
	args := m.Called(ctx, name, salt, payment)
	return args.Error(0)
}

func (m *MockNameRegistrar) RenewName(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockNameRegistrar) Withdraw(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockNameRegistrar) NameLock(ctx context.Context, name string) (*interfaces.NameLock, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.NameLock), args.Error(1)
}
