/*
Package api defines the wire contract of the registrar HTTP service.

Routes, all JSON:

	POST /api/v1/commitment        CommitmentRequest  -> CommitmentResponse
	POST /api/v1/commit            CommitRequest      -> StatusResponse   (signed)
	POST /api/v1/register          RegisterRequest    -> StatusResponse   (signed)
	POST /api/v1/renew             NameRequest        -> StatusResponse   (signed)
	POST /api/v1/withdraw          NameRequest        -> StatusResponse   (signed)
	GET  /api/v1/names/{name}                         -> NameLockResponse
	GET  /api/v1/events?since=N                       -> EventsResponse
	GET  /api/v1/accounts/{address}                   -> AccountResponse

Signed routes identify the caller by the address recovered from the
SignatureHeader: a secp256k1 signature over the EIP-191 personal-message hash
of the exact request body. Every signed body embeds an Authorization naming
the operation it is meant for, a nonce and a deadline. The server rejects a
body sent to another route, one past its deadline or more than
MaxAuthorizationLifetime ahead of the server clock, and any reuse of a
signer's nonce while the original is still within its deadline.

Amounts are hex quantities in wei, times are unix seconds. Failures return
ErrorResponse with a stable Code (see ErrorCode) and a matching HTTP status.

The clients subpackage contains a signing Go client for this API.
*/
package api
