/*
Package clients provides Go clients for the registrar.

RegistrarClient talks to the HTTP API of cmd/httpserver and signs every
mutating request with the caller's secp256k1 key. It implements
interfaces.NameRegistrar, as does the on-chain client in package registry, so
the helpers here work against either:

	client := clients.NewRegistrarClient("http://127.0.0.1:8080", key)
	salt := clients.DeriveSalt(secret, "dhruv")
	err := clients.Claim(ctx, client, "dhruv", salt, payment, clients.ClaimOptions{})

Claim runs the whole commit-reveal sequence: it computes the commitment,
submits it, waits out the minimum commitment age and reveals.
*/
package clients
