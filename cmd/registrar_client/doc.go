// Package main (cmd/registrar_client) is a command line client for the
// vanity name registrar.
//
// Every command talks either to the HTTP service (--server-addr, the
// default) or, when --contract is set, directly to a Solidity deployment
// over --rpc-addr. The caller identity is the key given by --private-key.
//
//	commitment  print the commitment for a name and salt
//	commit      submit a commitment
//	register    reveal and register a previously committed name
//	claim       commit, wait out the minimum commitment age, then register
//	renew       extend an active lock
//	withdraw    release escrow of an expired lock, or stranded escrow
//	lookup      print the lock record of a name
//	balance     print a ledger balance (HTTP only)
//	events      print the event log (HTTP only)
//	dns-lookup  resolve a name through the registrar's DNS zone
//	watch       follow registrar events on redis
//
// Salts are given with --salt as 32 hex bytes, or derived from --secret so
// they never have to be stored:
//
//	registrar_client --private-key=$KEY claim --name=dhruv --secret=hunter2 --payment=1000000000000000000
package main
