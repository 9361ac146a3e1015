// Package main (cmd/httpserver) runs the vanity name registrar service.
//
// The service keeps registrar state in memory behind the HTTP API, with
// escrow held by an in-process ledger seeded from a genesis allocation file.
// Optional components are enabled by their flags:
//
//   - --storage: one or more snapshot backends (file://, s3://, ipfs://,
//     vault://). State is saved every --snapshot-interval and on shutdown, and
//     each save logs the snapshot's content ID.
//   - --restore-snapshot: content ID to restore on startup instead of applying
//     the genesis allocation.
//   - --dns-addr: UDP address of the DNS TXT resolver for --dns-zone.
//   - --redis-url: publish every registrar event to a redis channel.
//
// Example:
//
//	vns-registrar --listen-addr=0.0.0.0:8080 \
//	    --genesis-alloc=./genesis.json \
//	    --storage=file:///var/lib/vns \
//	    --storage='s3://AKIA:secret@vns-snapshots/prod/?region=eu-west-1' \
//	    --dns-addr=0.0.0.0:5353 --dns-zone=vns.example.com.
package main
