package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ruteri/vanity-name-registrar/interfaces"
	"golang.org/x/crypto/argon2"
)

// DefaultMinCommitmentAge matches the registrar's default.
const DefaultMinCommitmentAge = 100 * time.Second

// ClaimOptions tunes Claim.
type ClaimOptions struct {
	// MinCommitmentAge is how long to wait between commit and register.
	MinCommitmentAge time.Duration

	// Retries bounds extra register attempts after ErrCommitmentTooRecent,
	// which happens when the registrar's clock lags behind ours.
	Retries int

	// Wait blocks for d or until ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// Claim commits to name and, once the commitment is old enough, registers it
// with payment.
func Claim(ctx context.Context, registrar interfaces.NameRegistrar, name string, salt interfaces.Salt, payment *big.Int, opts ClaimOptions) error {
	if opts.MinCommitmentAge <= 0 {
		opts.MinCommitmentAge = DefaultMinCommitmentAge
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Wait == nil {
		opts.Wait = sleep
	}

	commitment, err := registrar.CreateCommitment(ctx, name, salt)
	if err != nil {
		return fmt.Errorf("create commitment: %w", err)
	}

	if err := registrar.Commit(ctx, commitment); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := opts.Wait(ctx, opts.MinCommitmentAge); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err := registrar.Register(ctx, name, salt, payment)
		if err == nil {
			return nil
		}
		if !errors.Is(err, interfaces.ErrCommitmentTooRecent) || attempt >= opts.Retries {
			return fmt.Errorf("register: %w", err)
		}
		if err := opts.Wait(ctx, time.Second); err != nil {
			return err
		}
	}
}

// DeriveSalt derives a commitment salt from a secret known only to the
// registrant, so the salt can be recomputed instead of stored.
func DeriveSalt(secret, name string) interfaces.Salt {
	var salt interfaces.Salt
	copy(salt[:], argon2.IDKey([]byte(secret), []byte("vns-salt:"+name), 1, 64*1024, 4, 32))
	return salt
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
