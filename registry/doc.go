// Package registry talks to a Solidity deployment of the name registrar.
//
// OnchainRegistrarClient implements interfaces.NameRegistrar over a
// go-ethereum contract backend, so the same clients can drive either the
// HTTP service or the contract. The caller identity is the transactor set
// with SetTransactOpts.
//
// Contract reverts carrying one of the registrar's error strings are mapped
// back to the matching interfaces error, so errors.Is works across both
// deployments:
//
//	client, err := registry.NewOnchainRegistrarClient(eth, eth, contractAddr)
//	client.SetTransactOpts(auth)
//	err = clients.Claim(ctx, client, "dhruv", salt, payment, clients.ClaimOptions{})
//	if errors.Is(err, interfaces.ErrNameUnavailable) { ... }
package registry
