package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// revertErrors are the registrar errors the contract reverts with. Their texts
// match the contract's reason strings ignoring case, e.g. "This name is not
// available", "Name is expired" and "Cannot withdraw".
var revertErrors = []error{
	interfaces.ErrNoValidCommitment,
	interfaces.ErrCommitmentTooRecent,
	interfaces.ErrNameUnavailable,
	interfaces.ErrNameExpired,
	interfaces.ErrNameNotFound,
	interfaces.ErrCannotWithdraw,
	interfaces.ErrNothingToWithdraw,
	interfaces.ErrInsufficientFunds,
}

// OnchainRegistrarClient implements interfaces.NameRegistrar against a
// deployed registrar contract.
type OnchainRegistrarClient struct {
	contract *bind.BoundContract
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
}

var _ interfaces.NameRegistrar = (*OnchainRegistrarClient)(nil)

// NewOnchainRegistrarClient binds the registrar at address. When backend is
// nil, transactions are sent without waiting for them to be mined.
func NewOnchainRegistrarClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address) (*OnchainRegistrarClient, error) {
	if client == nil {
		return nil, errors.New("nil contract backend")
	}

	return &OnchainRegistrarClient{
		contract: bind.NewBoundContract(address, registrarABI, client, client, client),
		backend:  backend,
		address:  address,
	}, nil
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before using any methods that send transactions to the blockchain.
func (c *OnchainRegistrarClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// Address is the contract address.
func (c *OnchainRegistrarClient) Address() common.Address {
	return c.address
}

func (c *OnchainRegistrarClient) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if c.auth != nil {
		opts.From = c.auth.From
	}
	return opts
}

// CreateCommitment asks the contract for the commitment of the transactor.
func (c *OnchainRegistrarClient) CreateCommitment(ctx context.Context, name string, salt interfaces.Salt) (interfaces.Digest, error) {
	var out []any
	if err := c.contract.Call(c.callOpts(ctx), &out, "createCommitment", name, [32]byte(salt)); err != nil {
		return interfaces.Digest{}, mapRevert(err)
	}
	if len(out) != 1 {
		return interfaces.Digest{}, fmt.Errorf("unexpected createCommitment output: %v", out)
	}

	digest, ok := out[0].([32]byte)
	if !ok {
		return interfaces.Digest{}, fmt.Errorf("unexpected createCommitment output type %T", out[0])
	}
	return interfaces.Digest(digest), nil
}

func (c *OnchainRegistrarClient) Commit(ctx context.Context, commitment interfaces.Digest) error {
	_, err := c.transact(ctx, nil, "commit", [32]byte(commitment))
	return err
}

// Register sends payment as the transaction value.
func (c *OnchainRegistrarClient) Register(ctx context.Context, name string, salt interfaces.Salt, payment *big.Int) error {
	if payment != nil && payment.Sign() < 0 {
		return interfaces.ErrInvalidPayment
	}
	_, err := c.transact(ctx, payment, "register", name, [32]byte(salt))
	return err
}

func (c *OnchainRegistrarClient) RenewName(ctx context.Context, name string) error {
	_, err := c.transact(ctx, nil, "renewName", name)
	return err
}

func (c *OnchainRegistrarClient) Withdraw(ctx context.Context, name string) error {
	_, err := c.transact(ctx, nil, "withdraw", name)
	return err
}

// NameLock reads the lock record of name. A zero owner means no record.
func (c *OnchainRegistrarClient) NameLock(ctx context.Context, name string) (*interfaces.NameLock, error) {
	nameHash := interfaces.NameHash(name)

	var out []any
	if err := c.contract.Call(c.callOpts(ctx), &out, "nameLocks", [32]byte(nameHash)); err != nil {
		return nil, mapRevert(err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("unexpected nameLocks output: %v", out)
	}

	owner, ok1 := out[0].(common.Address)
	escrow, ok2 := out[1].(*big.Int)
	endDate, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("unexpected nameLocks output types: %T, %T, %T", out[0], out[1], out[2])
	}

	if owner == (common.Address{}) {
		return nil, interfaces.ErrNameNotFound
	}

	return &interfaces.NameLock{
		NameHash: nameHash,
		Owner:    owner,
		Escrow:   escrow,
		EndDate:  time.Unix(endDate.Int64(), 0),
	}, nil
}

func (c *OnchainRegistrarClient) transact(ctx context.Context, value *big.Int, method string, params ...any) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx
	opts.Value = value

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return nil, mapRevert(err)
	}

	if c.backend == nil {
		return tx, nil
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return tx, fmt.Errorf("waiting for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx, fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}
	return tx, nil
}

// mapRevert turns a revert carrying a registrar reason string into that error.
func mapRevert(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, sentinel := range revertErrors {
		if strings.Contains(lower, sentinel.Error()) {
			return fmt.Errorf("%w: %s", sentinel, msg)
		}
	}
	return err
}
