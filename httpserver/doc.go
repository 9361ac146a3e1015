/*
Package httpserver serves the registrar over HTTP.

Handler implements the JSON API described in package api on top of a
registrar.Registrar. Mutating routes are authenticated by recovering the
signer of the request body from the api.SignatureHeader header; the recovered
address is the caller of the registrar operation.

Registrar errors map to statuses as follows:

	name_not_found          404
	no_valid_commitment     403
	commitment_too_recent   425
	name_unavailable        409
	cannot_withdraw         409
	nothing_to_withdraw     409
	name_expired            410
	insufficient_funds      402
	invalid_payment         400

Malformed input is 400, a missing or bad signature 401.

Server wires the handler into a chi router next to the operational endpoints
/livez, /readyz, /drain and /undrain, optional pprof under /debug, and runs the
Prometheus endpoint from package metrics on a separate listener.
*/
package httpserver
