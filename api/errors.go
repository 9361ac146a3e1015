package api

import (
	"errors"
	"net/http"

	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// CodeInternal is reported for errors that are not registrar rejections.
const CodeInternal = "internal"

var (
	ErrInvalidAuthorization = errors.New("request authorization does not match this operation")
	ErrAuthorizationExpired = errors.New("request authorization expired")
	ErrReplayedRequest      = errors.New("request nonce already used")
)

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{interfaces.ErrNoValidCommitment, "no_valid_commitment", http.StatusForbidden},
	{interfaces.ErrCommitmentTooRecent, "commitment_too_recent", http.StatusTooEarly},
	{interfaces.ErrNameUnavailable, "name_unavailable", http.StatusConflict},
	{interfaces.ErrNameExpired, "name_expired", http.StatusGone},
	{interfaces.ErrNameNotFound, "name_not_found", http.StatusNotFound},
	{interfaces.ErrCannotWithdraw, "cannot_withdraw", http.StatusConflict},
	{interfaces.ErrNothingToWithdraw, "nothing_to_withdraw", http.StatusConflict},
	{interfaces.ErrInvalidPayment, "invalid_payment", http.StatusBadRequest},
	{interfaces.ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{ErrInvalidAuthorization, "invalid_authorization", http.StatusUnauthorized},
	{ErrAuthorizationExpired, "authorization_expired", http.StatusUnauthorized},
	{ErrReplayedRequest, "replayed_request", http.StatusUnauthorized},
}

// ErrorCode returns the stable code for a registrar error.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// ErrorStatus returns the HTTP status for a registrar error.
func ErrorStatus(err error) int {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorFromCode maps a code back to its registrar error, or nil if unknown.
func ErrorFromCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
