package registrar

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/vanity-name-registrar/escrow"
	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	bob   = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	carol = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
)

// recordingSink collects published events
type recordingSink struct {
	mu     sync.Mutex
	events []interfaces.Event
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []interfaces.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interfaces.Event(nil), s.events...)
}

type testEnv struct {
	registrar *Registrar
	clock     *clock.Mock
	ledger    *escrow.Ledger
	sink      *recordingSink
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func randomSalt(t *testing.T) interfaces.Salt {
	var salt interfaces.Salt
	_, err := rand.Read(salt[:])
	require.NoError(t, err)
	return salt
}

// setupRegistrar creates a registrar with funded accounts and a mock clock
func setupRegistrar(t *testing.T) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ledger := escrow.NewLedger(logger)
	for _, addr := range []interfaces.Address{alice, bob, carol} {
		require.NoError(t, ledger.Credit(addr, ether(10)))
	}

	sink := &recordingSink{}
	return &testEnv{
		registrar: New(DefaultConfig(), clk, ledger, logger, sink),
		clock:     clk,
		ledger:    ledger,
		sink:      sink,
	}
}

// commitAndWait commits for name/salt as caller and advances past the minimum age
func (e *testEnv) commitAndWait(caller interfaces.Address, name string, salt interfaces.Salt) {
	commitment := e.registrar.CreateCommitment(caller, name, salt)
	e.registrar.Commit(context.Background(), caller, commitment)
	e.clock.Add(DefaultMinCommitmentAge)
}

func (e *testEnv) registerName(t *testing.T, caller interfaces.Address, name string, payment *big.Int) interfaces.Salt {
	salt := randomSalt(t)
	e.commitAndWait(caller, name, salt)
	require.NoError(t, e.registrar.Register(context.Background(), caller, name, salt, payment))
	return salt
}

func TestCreateCommitment(t *testing.T) {
	env := setupRegistrar(t)
	salt := randomSalt(t)

	c1 := env.registrar.CreateCommitment(alice, "dhruv", salt)
	c2 := env.registrar.CreateCommitment(alice, "dhruv", salt)
	assert.Equal(t, c1, c2, "commitment should be deterministic")

	// Packed encoding: name ‖ salt ‖ address
	expected := crypto.Keccak256([]byte("dhruv"), salt[:], alice.Bytes())
	assert.Equal(t, expected, c1.Bytes())

	assert.NotEqual(t, c1, env.registrar.CreateCommitment(bob, "dhruv", salt), "caller must be bound into the commitment")
	assert.NotEqual(t, c1, env.registrar.CreateCommitment(alice, "dhruv2", salt))
	assert.NotEqual(t, c1, env.registrar.CreateCommitment(alice, "dhruv", randomSalt(t)))

	// Pure: nothing stored
	_, ok := env.registrar.Commitment(alice)
	assert.False(t, ok)
}

func TestCommit_Overwrites(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()

	first := env.registrar.CreateCommitment(alice, "first", randomSalt(t))
	second := env.registrar.CreateCommitment(alice, "second", randomSalt(t))

	env.registrar.Commit(ctx, alice, first)
	env.clock.Add(time.Minute)
	env.registrar.Commit(ctx, alice, second)

	stored, ok := env.registrar.Commitment(alice)
	require.True(t, ok)
	assert.Equal(t, second, stored.Value)
	assert.Equal(t, alice, stored.Committer)
	assert.Equal(t, env.clock.Now(), stored.SubmittedAt)
}

func TestRegister_Success(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	salt := randomSalt(t)

	env.commitAndWait(alice, "dhruv", salt)
	registeredAt := env.clock.Now()

	err := env.registrar.Register(ctx, alice, "dhruv", salt, ether(5))
	require.NoError(t, err)

	lock, ok := env.registrar.NameLock("dhruv")
	require.True(t, ok)
	assert.Equal(t, alice, lock.Owner)
	assert.Equal(t, ether(5), lock.Escrow)
	assert.Equal(t, registeredAt.Add(30*24*time.Hour), lock.EndDate)
	assert.Equal(t, interfaces.NameHash("dhruv"), lock.NameHash)

	// Commitment consumed
	_, ok = env.registrar.Commitment(alice)
	assert.False(t, ok)

	// Funds moved into custody
	assert.Equal(t, ether(5), env.ledger.Balance(alice))
	assert.Equal(t, ether(5), env.ledger.Held())
	assert.Equal(t, ether(5), env.registrar.EscrowHeld("dhruv"))

	events := env.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, interfaces.EventRegistered, events[0].Kind)
	assert.Equal(t, "dhruv", events[0].Name)
	assert.Equal(t, ether(5), events[0].Amount)
	assert.Equal(t, alice, events[0].Address)
	assert.Equal(t, uint64(1), events[0].Seq)
}

func TestRegister_CommitmentCannotBeReplayed(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	salt := env.registerName(t, alice, "dhruv", ether(1))

	env.clock.Add(31 * 24 * time.Hour)
	err := env.registrar.Register(ctx, alice, "dhruv", salt, ether(1))
	assert.ErrorIs(t, err, interfaces.ErrNoValidCommitment)
}

func TestRegister_NoValidCommitment(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *testEnv, salt interfaces.Salt)
	}{
		{
			name:  "no commitment at all",
			setup: func(env *testEnv, salt interfaces.Salt) {},
		},
		{
			name: "commitment for a different name",
			setup: func(env *testEnv, salt interfaces.Salt) {
				env.commitAndWait(alice, "other", salt)
			},
		},
		{
			name: "commitment with a different salt",
			setup: func(env *testEnv, salt interfaces.Salt) {
				var otherSalt interfaces.Salt
				otherSalt[0] = salt[0] + 1
				env.commitAndWait(alice, "dhruv", otherSalt)
			},
		},
		{
			name: "commitment replayed from another address",
			setup: func(env *testEnv, salt interfaces.Salt) {
				// bob observes alice's commitment and submits it as his own
				observed := env.registrar.CreateCommitment(alice, "dhruv", salt)
				env.registrar.Commit(context.Background(), bob, observed)
				env.clock.Add(DefaultMinCommitmentAge)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRegistrar(t)
			salt := randomSalt(t)
			tt.setup(env, salt)

			caller := alice
			if tt.name == "commitment replayed from another address" {
				caller = bob
			}

			err := env.registrar.Register(context.Background(), caller, "dhruv", salt, ether(5))
			assert.ErrorIs(t, err, interfaces.ErrNoValidCommitment)

			_, ok := env.registrar.NameLock("dhruv")
			assert.False(t, ok, "failed register must not create a lock")
			assert.Equal(t, ether(10), env.ledger.Balance(caller), "failed register must not move funds")
			assert.Empty(t, env.sink.Events())
		})
	}
}

func TestRegister_CommitmentTooRecent(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	salt := randomSalt(t)

	env.registrar.Commit(ctx, alice, env.registrar.CreateCommitment(alice, "dhruv", salt))
	env.clock.Add(DefaultMinCommitmentAge - time.Second)

	err := env.registrar.Register(ctx, alice, "dhruv", salt, ether(5))
	assert.ErrorIs(t, err, interfaces.ErrCommitmentTooRecent)

	// Commitment survives the failed attempt
	_, ok := env.registrar.Commitment(alice)
	assert.True(t, ok)

	// Exactly the minimum age is enough
	env.clock.Add(time.Second)
	assert.NoError(t, env.registrar.Register(ctx, alice, "dhruv", salt, ether(5)))
}

func TestRegister_NameUnavailableWhileActive(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))
	lock, _ := env.registrar.NameLock("dhruv")

	salt := randomSalt(t)
	env.commitAndWait(bob, "dhruv", salt)
	err := env.registrar.Register(ctx, bob, "dhruv", salt, ether(3))
	assert.ErrorIs(t, err, interfaces.ErrNameUnavailable)

	// Still unavailable at the exact end date
	env.clock.Set(lock.EndDate)
	err = env.registrar.Register(ctx, bob, "dhruv", salt, ether(3))
	assert.ErrorIs(t, err, interfaces.ErrNameUnavailable)
	assert.Equal(t, ether(10), env.ledger.Balance(bob))

	current, _ := env.registrar.NameLock("dhruv")
	assert.Equal(t, alice, current.Owner)
}

func TestRegister_TakeoverAfterExpiryKeepsOldEscrow(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))

	env.clock.Add(30*24*time.Hour + time.Second)

	salt := randomSalt(t)
	env.commitAndWait(bob, "dhruv", salt)
	require.NoError(t, env.registrar.Register(ctx, bob, "dhruv", salt, ether(2)))

	lock, ok := env.registrar.NameLock("dhruv")
	require.True(t, ok)
	assert.Equal(t, bob, lock.Owner)
	assert.Equal(t, ether(2), lock.Escrow)

	events := env.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, interfaces.EventRegistered, events[1].Kind)
	assert.Equal(t, bob, events[1].Address)
	assert.Equal(t, ether(2), events[1].Amount)

	// Both escrows are still held
	assert.Equal(t, ether(7), env.registrar.EscrowHeld("dhruv"))
	assert.Equal(t, ether(7), env.ledger.Held())

	// alice reclaims her original escrow while bob's lock is active
	require.NoError(t, env.registrar.Withdraw(ctx, alice, "dhruv"))
	assert.Equal(t, ether(10), env.ledger.Balance(alice))
	assert.Equal(t, ether(2), env.registrar.EscrowHeld("dhruv"))

	// bob's lock is untouched and his withdraw is still too early
	assert.ErrorIs(t, env.registrar.Withdraw(ctx, bob, "dhruv"), interfaces.ErrCannotWithdraw)

	// alice has nothing more to claim for this name
	assert.ErrorIs(t, env.registrar.Withdraw(ctx, alice, "dhruv"), interfaces.ErrCannotWithdraw)
}

func TestRegister_OwnerReRegistersExpiredName(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))
	env.clock.Add(31 * 24 * time.Hour)

	env.registerName(t, alice, "dhruv", ether(1))
	assert.Equal(t, ether(4), env.ledger.Balance(alice))

	// The earlier escrow is claimable immediately
	require.NoError(t, env.registrar.Withdraw(ctx, alice, "dhruv"))
	assert.Equal(t, ether(9), env.ledger.Balance(alice))
	assert.Equal(t, ether(1), env.registrar.EscrowHeld("dhruv"))
}

func TestRegister_EscrowFailureRollsBack(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	salt := randomSalt(t)
	env.commitAndWait(alice, "dhruv", salt)

	err := env.registrar.Register(ctx, alice, "dhruv", salt, ether(11))
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFunds)

	_, ok := env.registrar.NameLock("dhruv")
	assert.False(t, ok)
	_, ok = env.registrar.Commitment(alice)
	assert.True(t, ok, "commitment must survive a failed register")
	assert.Empty(t, env.registrar.Events(0))

	// Retrying with an affordable payment works
	assert.NoError(t, env.registrar.Register(ctx, alice, "dhruv", salt, ether(10)))
}

func TestRegister_InvalidPayment(t *testing.T) {
	env := setupRegistrar(t)
	salt := randomSalt(t)
	env.commitAndWait(alice, "dhruv", salt)

	err := env.registrar.Register(context.Background(), alice, "dhruv", salt, big.NewInt(-1))
	assert.ErrorIs(t, err, interfaces.ErrInvalidPayment)
}

func TestRegister_ZeroPayment(t *testing.T) {
	env := setupRegistrar(t)
	env.registerName(t, alice, "free", nil)

	lock, ok := env.registrar.NameLock("free")
	require.True(t, ok)
	assert.Equal(t, 0, lock.Escrow.Sign())

	env.clock.Add(31 * 24 * time.Hour)
	err := env.registrar.Withdraw(context.Background(), alice, "free")
	assert.ErrorIs(t, err, interfaces.ErrNothingToWithdraw)
}

func TestRenewName(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))
	original, _ := env.registrar.NameLock("dhruv")

	// Renew well before expiry: extension counts from the prior end date
	env.clock.Add(10 * 24 * time.Hour)
	require.NoError(t, env.registrar.RenewName(ctx, alice, "dhruv"))

	renewed, _ := env.registrar.NameLock("dhruv")
	assert.Equal(t, original.EndDate.Add(30*24*time.Hour), renewed.EndDate)
	assert.Equal(t, original.Escrow, renewed.Escrow, "renewal must not touch escrow")

	events := env.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, interfaces.EventRenewed, events[1].Kind)
	assert.Equal(t, "dhruv", events[1].Name)
	assert.Equal(t, renewed.EndDate, events[1].EndDate)

	// Anyone may renew an active lock
	require.NoError(t, env.registrar.RenewName(ctx, carol, "dhruv"))
	again, _ := env.registrar.NameLock("dhruv")
	assert.Equal(t, original.EndDate.Add(60*24*time.Hour), again.EndDate)
	assert.Equal(t, alice, again.Owner)

	// Renewal at the exact end date is still allowed
	env.clock.Set(again.EndDate)
	require.NoError(t, env.registrar.RenewName(ctx, alice, "dhruv"))
}

func TestRenewName_Failures(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()

	err := env.registrar.RenewName(ctx, alice, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNameNotFound)

	env.registerName(t, alice, "dhruv", ether(5))
	lock, _ := env.registrar.NameLock("dhruv")
	env.clock.Set(lock.EndDate.Add(time.Second))

	err = env.registrar.RenewName(ctx, alice, "dhruv")
	assert.ErrorIs(t, err, interfaces.ErrNameExpired)

	after, _ := env.registrar.NameLock("dhruv")
	assert.Equal(t, lock.EndDate, after.EndDate)
}

func TestWithdraw(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()

	assert.ErrorIs(t, env.registrar.Withdraw(ctx, alice, "dhruv"), interfaces.ErrNameNotFound)

	env.registerName(t, alice, "dhruv", ether(5))
	assert.ErrorIs(t, env.registrar.Withdraw(ctx, alice, "dhruv"), interfaces.ErrCannotWithdraw)

	env.clock.Add(30*24*time.Hour + time.Second)
	require.NoError(t, env.registrar.Withdraw(ctx, alice, "dhruv"))

	assert.Equal(t, ether(10), env.ledger.Balance(alice))
	assert.Equal(t, 0, env.registrar.EscrowHeld("dhruv").Sign())
	assert.Equal(t, 0, env.ledger.Held().Sign())

	// Lock record is kept with zero escrow
	lock, ok := env.registrar.NameLock("dhruv")
	require.True(t, ok)
	assert.Equal(t, alice, lock.Owner)
	assert.Equal(t, 0, lock.Escrow.Sign())

	events := env.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, interfaces.EventWithdrawn, events[1].Kind)
	assert.Equal(t, ether(5), events[1].Amount)
	assert.Equal(t, alice, events[1].Address)

	// A second withdraw finds nothing
	assert.ErrorIs(t, env.registrar.Withdraw(ctx, alice, "dhruv"), interfaces.ErrNothingToWithdraw)
	assert.Equal(t, ether(10), env.ledger.Balance(alice))
}

func TestWithdraw_AtEndDateIsTooEarly(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))

	lock := env.registrar.mustLock(t, "dhruv")
	env.clock.Set(lock.EndDate)
	assert.ErrorIs(t, env.registrar.Withdraw(ctx, alice, "dhruv"), interfaces.ErrCannotWithdraw)
	assert.Equal(t, ether(5), env.registrar.EscrowHeld("dhruv"))

	env.clock.Add(time.Second)
	require.NoError(t, env.registrar.Withdraw(ctx, alice, "dhruv"))
}

func TestWithdraw_FundsGoToRecordedOwner(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))
	env.clock.Add(31 * 24 * time.Hour)

	require.NoError(t, env.registrar.Withdraw(ctx, carol, "dhruv"))
	assert.Equal(t, ether(10), env.ledger.Balance(alice))
	assert.Equal(t, ether(10), env.ledger.Balance(carol))
}

func TestWithdraw_ExpiredNameCanBeRegisteredAgain(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "dhruv", ether(5))
	env.clock.Add(31 * 24 * time.Hour)
	require.NoError(t, env.registrar.Withdraw(ctx, alice, "dhruv"))

	env.registerName(t, bob, "dhruv", ether(1))
	lock, _ := env.registrar.NameLock("dhruv")
	assert.Equal(t, bob, lock.Owner)
	assert.Equal(t, ether(1), env.registrar.EscrowHeld("dhruv"))
}

func TestEscrowConservation(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()

	env.registerName(t, alice, "one", ether(1))
	env.registerName(t, bob, "two", ether(2))
	env.clock.Add(31 * 24 * time.Hour)
	env.registerName(t, carol, "one", ether(3))
	require.NoError(t, env.registrar.Withdraw(ctx, bob, "two"))

	// accepted 1+2+3, released 2
	assert.Equal(t, ether(4), env.registrar.TotalEscrowHeld())
	assert.Equal(t, ether(4), env.ledger.Held())

	total := new(big.Int)
	for _, addr := range []interfaces.Address{alice, bob, carol} {
		total.Add(total, env.ledger.Balance(addr))
	}
	total.Add(total, env.ledger.Held())
	assert.Equal(t, ether(30), total)
}

func TestResolve(t *testing.T) {
	env := setupRegistrar(t)
	env.registerName(t, alice, "dhruv", ether(1))

	lock, ok := env.registrar.Resolve("dhruv")
	require.True(t, ok)
	assert.Equal(t, alice, lock.Owner)

	env.clock.Add(31 * 24 * time.Hour)
	_, ok = env.registrar.Resolve("dhruv")
	assert.False(t, ok)

	_, ok = env.registrar.Resolve("missing")
	assert.False(t, ok)
}

func TestEvents_Since(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	env.registerName(t, alice, "a", ether(1))
	env.registerName(t, bob, "b", ether(1))
	require.NoError(t, env.registrar.RenewName(ctx, alice, "a"))

	all := env.registrar.Events(0)
	require.Len(t, all, 3)
	for i, ev := range all {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}

	tail := env.registrar.Events(2)
	require.Len(t, tail, 1)
	assert.Equal(t, interfaces.EventRenewed, tail[0].Kind)

	assert.Empty(t, env.registrar.Events(3))
	assert.Empty(t, env.registrar.Events(100))
}

func TestSinkFailureDoesNotFailOperation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMock()
	ledger := escrow.NewLedger(logger)
	failing := &recordingSink{err: errors.New("sink down")}
	r := New(DefaultConfig(), clk, ledger, logger, failing)

	salt := randomSalt(t)
	r.Commit(context.Background(), alice, r.CreateCommitment(alice, "dhruv", salt))
	clk.Add(DefaultMinCommitmentAge)

	require.NoError(t, r.Register(context.Background(), alice, "dhruv", salt, nil))
	assert.Len(t, failing.Events(), 1)
	assert.Len(t, r.Events(0), 1)
}

func TestConfig_Defaults(t *testing.T) {
	r := New(Config{}, clock.NewMock(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, DefaultConfig(), r.Config())

	custom := Config{MinCommitmentAge: time.Minute, LockPeriod: time.Hour}
	r = New(custom, clock.NewMock(), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, custom, r.Config())
}

func TestSession(t *testing.T) {
	env := setupRegistrar(t)
	ctx := context.Background()
	session := env.registrar.Session(alice)
	salt := randomSalt(t)

	commitment, err := session.CreateCommitment(ctx, "dhruv", salt)
	require.NoError(t, err)
	require.NoError(t, session.Commit(ctx, commitment))
	env.clock.Add(DefaultMinCommitmentAge)
	require.NoError(t, session.Register(ctx, "dhruv", salt, ether(5)))

	lock, err := session.NameLock(ctx, "dhruv")
	require.NoError(t, err)
	assert.Equal(t, alice, lock.Owner)

	_, err = session.NameLock(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNameNotFound)

	require.NoError(t, session.RenewName(ctx, "dhruv"))
	assert.ErrorIs(t, session.Withdraw(ctx, "dhruv"), interfaces.ErrCannotWithdraw)
}
