package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/api/clients"
	"github.com/ruteri/vanity-name-registrar/cmd/flags"
	"github.com/ruteri/vanity-name-registrar/events"
	"github.com/ruteri/vanity-name-registrar/interfaces"
	"github.com/ruteri/vanity-name-registrar/nameresolver"
	"github.com/ruteri/vanity-name-registrar/registry"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "registrar service address",
}
var flagContract = &cli.StringFlag{
	Name:  "contract",
	Usage: "registrar contract address; when set, commands go on-chain instead of over HTTP",
}

var flagName = &cli.StringFlag{
	Name:     "name",
	Required: true,
	Usage:    "name to operate on",
}
var flagSalt = &cli.StringFlag{
	Name:  "salt",
	Usage: "commitment salt, 32 bytes hex",
}
var flagSecret = &cli.StringFlag{
	Name:  "secret",
	Usage: "derive the salt from this secret and the name",
}
var flagPayment = &cli.StringFlag{
	Name:  "payment",
	Value: "0",
	Usage: "amount to escrow, in wei (decimal or 0x hex)",
}

func main() {
	app := &cli.App{
		Name:  "registrar_client",
		Usage: "Claim and manage vanity names",
		Flags: []cli.Flag{
			flagServerAddr,
			flagContract,
			flags.RpcAddrFlag,
			flags.PrivateKeyFlag,
			flags.PrivateKeyFileFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "commitment",
				Usage: "print the commitment for a name and salt",
				Flags: []cli.Flag{flagName, flagSalt, flagSecret},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						salt, err := saltFromFlags(cCtx)
						if err != nil {
							return err
						}
						commitment, err := reg.CreateCommitment(cCtx.Context, cCtx.String(flagName.Name), salt)
						if err != nil {
							return err
						}
						return printJSON(api.CommitmentResponse{Commitment: commitment})
					})
				},
			},
			{
				Name:  "commit",
				Usage: "submit the commitment for a name and salt",
				Flags: []cli.Flag{flagName, flagSalt, flagSecret},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						salt, err := saltFromFlags(cCtx)
						if err != nil {
							return err
						}
						commitment, err := reg.CreateCommitment(cCtx.Context, cCtx.String(flagName.Name), salt)
						if err != nil {
							return err
						}
						if err := reg.Commit(cCtx.Context, commitment); err != nil {
							return err
						}
						return printJSON(api.CommitmentResponse{Commitment: commitment})
					})
				},
			},
			{
				Name:  "register",
				Usage: "reveal and register a committed name",
				Flags: []cli.Flag{flagName, flagSalt, flagSecret, flagPayment},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						salt, payment, err := registerArgs(cCtx)
						if err != nil {
							return err
						}
						if err := reg.Register(cCtx.Context, cCtx.String(flagName.Name), salt, payment); err != nil {
							return err
						}
						return printLock(cCtx.Context, reg, cCtx.String(flagName.Name))
					})
				},
			},
			{
				Name:  "claim",
				Usage: "commit, wait and register in one go",
				Flags: []cli.Flag{flagName, flagSalt, flagSecret, flagPayment,
					&cli.DurationFlag{
						Name:  "min-commitment-age",
						Value: clients.DefaultMinCommitmentAge,
						Usage: "registrar's minimum commitment age",
					},
				},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						salt, payment, err := registerArgs(cCtx)
						if err != nil {
							return err
						}

						name := cCtx.String(flagName.Name)
						opts := clients.ClaimOptions{MinCommitmentAge: cCtx.Duration("min-commitment-age")}
						fmt.Fprintf(os.Stderr, "committing to %q, registering in %s\n", name, opts.MinCommitmentAge)
						if err := clients.Claim(cCtx.Context, reg, name, salt, payment, opts); err != nil {
							return err
						}
						return printLock(cCtx.Context, reg, name)
					})
				},
			},
			{
				Name:  "renew",
				Usage: "extend an active lock by one lock period",
				Flags: []cli.Flag{flagName},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						if err := reg.RenewName(cCtx.Context, cCtx.String(flagName.Name)); err != nil {
							return err
						}
						return printLock(cCtx.Context, reg, cCtx.String(flagName.Name))
					})
				},
			},
			{
				Name:  "withdraw",
				Usage: "release escrow of an expired lock",
				Flags: []cli.Flag{flagName},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						if err := reg.Withdraw(cCtx.Context, cCtx.String(flagName.Name)); err != nil {
							return err
						}
						return printJSON(api.StatusResponse{Status: "ok"})
					})
				},
			},
			{
				Name:  "lookup",
				Usage: "print the lock record of a name",
				Flags: []cli.Flag{flagName},
				Action: func(cCtx *cli.Context) error {
					return withRegistrar(cCtx, func(reg interfaces.NameRegistrar) error {
						return printLock(cCtx.Context, reg, cCtx.String(flagName.Name))
					})
				},
			},
			{
				Name:  "balance",
				Usage: "print the ledger balance of an address",
				Flags: []cli.Flag{&cli.StringFlag{Name: "address", Usage: "account, defaults to the caller"}},
				Action: func(cCtx *cli.Context) error {
					client, err := httpClient(cCtx)
					if err != nil {
						return err
					}

					addr := client.Address()
					if a := cCtx.String("address"); a != "" {
						if !common.IsHexAddress(a) {
							return fmt.Errorf("invalid address %q", a)
						}
						addr = common.HexToAddress(a)
					}

					balance, err := client.Balance(cCtx.Context, addr)
					if err != nil {
						return err
					}
					return printJSON(api.AccountResponse{Address: addr, Balance: (*hexutil.Big)(balance)})
				},
			},
			{
				Name:  "events",
				Usage: "print registrar events",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "since", Usage: "only events after this sequence number"}},
				Action: func(cCtx *cli.Context) error {
					client, err := httpClient(cCtx)
					if err != nil {
						return err
					}

					evs, err := client.Events(cCtx.Context, cCtx.Uint64("since"))
					if err != nil {
						return err
					}

					resp := api.EventsResponse{Events: make([]api.EventMessage, 0, len(evs))}
					for _, ev := range evs {
						resp.Events = append(resp.Events, api.NewEventMessage(ev))
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "dns-lookup",
				Usage: "resolve a name through the registrar's DNS zone",
				Flags: []cli.Flag{flagName, flags.DNSZoneFlag,
					&cli.StringFlag{Name: "dns-server", Value: "127.0.0.1:5353", Usage: "DNS server address"},
				},
				Action: func(cCtx *cli.Context) error {
					ctx, cancel := context.WithTimeout(cCtx.Context, 5*time.Second)
					defer cancel()

					rec, err := nameresolver.LookupOwner(ctx, cCtx.String("dns-server"), cCtx.String(flags.DNSZoneFlag.Name), cCtx.String(flagName.Name))
					if err != nil {
						return err
					}
					return printJSON(map[string]any{
						"name":    cCtx.String(flagName.Name),
						"owner":   rec.Owner,
						"expires": rec.Expires.Unix(),
					})
				},
			},
			{
				Name:  "watch",
				Usage: "follow registrar events published to redis",
				Flags: []cli.Flag{flags.RedisURLFlag, flags.RedisChannelFlag},
				Action: func(cCtx *cli.Context) error {
					ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					client, err := events.DialRedis(ctx, cCtx.String(flags.RedisURLFlag.Name))
					if err != nil {
						return err
					}
					defer client.Close()

					err = events.Subscribe(ctx, client, cCtx.String(flags.RedisChannelFlag.Name), func(ev interfaces.Event) {
						_ = printJSON(api.NewEventMessage(ev))
					})
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withRegistrar builds the HTTP or on-chain registrar selected by the flags.
func withRegistrar(cCtx *cli.Context, fn func(interfaces.NameRegistrar) error) error {
	if cCtx.String(flagContract.Name) == "" {
		client, err := httpClient(cCtx)
		if err != nil {
			return err
		}
		return fn(client)
	}

	contract := cCtx.String(flagContract.Name)
	if !common.IsHexAddress(contract) {
		return fmt.Errorf("invalid contract address %q", contract)
	}

	key, err := flags.LoadPrivateKey(cCtx)
	if err != nil {
		return err
	}

	eth, err := ethclient.DialContext(cCtx.Context, cCtx.String(flags.RpcAddrFlag.Name))
	if err != nil {
		return fmt.Errorf("could not dial RPC: %w", err)
	}
	defer eth.Close()

	chainID, err := eth.ChainID(cCtx.Context)
	if err != nil {
		return fmt.Errorf("could not fetch chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return err
	}

	client, err := registry.NewOnchainRegistrarClient(eth, eth, common.HexToAddress(contract))
	if err != nil {
		return err
	}
	client.SetTransactOpts(auth)

	return fn(client)
}

func httpClient(cCtx *cli.Context) (*clients.RegistrarClient, error) {
	key, err := flags.LoadPrivateKey(cCtx)
	if err != nil {
		return nil, err
	}
	return clients.NewRegistrarClient(cCtx.String(flagServerAddr.Name), key), nil
}

func saltFromFlags(cCtx *cli.Context) (interfaces.Salt, error) {
	if secret := cCtx.String(flagSecret.Name); secret != "" {
		return clients.DeriveSalt(secret, cCtx.String(flagName.Name)), nil
	}
	if s := cCtx.String(flagSalt.Name); s != "" {
		return interfaces.NewSaltFromHex(s)
	}
	return interfaces.Salt{}, errors.New("one of --salt or --secret is required")
}

func registerArgs(cCtx *cli.Context) (interfaces.Salt, *big.Int, error) {
	salt, err := saltFromFlags(cCtx)
	if err != nil {
		return interfaces.Salt{}, nil, err
	}

	payment, ok := math.ParseBig256(cCtx.String(flagPayment.Name))
	if !ok {
		return interfaces.Salt{}, nil, fmt.Errorf("invalid payment %q", cCtx.String(flagPayment.Name))
	}
	return salt, payment, nil
}

func printLock(ctx context.Context, reg interfaces.NameRegistrar, name string) error {
	lock, err := reg.NameLock(ctx, name)
	if err != nil {
		return err
	}
	return printJSON(api.NewNameLockResponse(name, *lock, time.Now()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
