// Package nameresolver publishes active name locks over DNS.
//
// A query for TXT records of <name>.<zone> is answered with two strings for
// names that are currently locked:
//
//	owner=0x<40 hex digits>
//	expires=<unix seconds>
//
// Expired and unknown names get NXDOMAIN. Queries outside the zone are
// refused. Names are matched exactly as they appear in the query, so clients
// must not rely on DNS case folding.
//
// LookupOwner is the client side of the same convention.
package nameresolver
