package httpserver

import (
	"errors"
	"net/http"

	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// authenticate returns the address that signed body.
func authenticate(r *http.Request, body []byte) (interfaces.Address, error) {
	signature := r.Header.Get(api.SignatureHeader)
	if signature == "" {
		return interfaces.Address{}, &RequestError{http.StatusUnauthorized, errors.New("missing " + api.SignatureHeader + " header")}
	}

	caller, err := api.RecoverSigner(body, signature)
	if err != nil {
		return interfaces.Address{}, &RequestError{http.StatusUnauthorized, err}
	}
	return caller, nil
}
