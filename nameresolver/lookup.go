package nameresolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/miekg/dns"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

var ErrMalformedRecord = errors.New("malformed name record")

// Record is an active name lock as published over DNS.
type Record struct {
	Owner   interfaces.Address
	Expires time.Time
}

// LookupOwner queries server for the TXT record of name under zone.
// Returns interfaces.ErrNameNotFound when the name is not actively locked.
func LookupOwner(ctx context.Context, server, zone, name string) (*Record, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name+"."+strings.TrimSuffix(zone, ".")), dns.TypeTXT)

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange failed: %w", err)
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, interfaces.ErrNameNotFound
	default:
		return nil, fmt.Errorf("dns query failed: %s", dns.RcodeToString[in.Rcode])
	}

	for _, answer := range in.Answer {
		if txt, ok := answer.(*dns.TXT); ok {
			return parseRecord(txt.Txt)
		}
	}
	return nil, interfaces.ErrNameNotFound
}

func parseRecord(fields []string) (*Record, error) {
	var rec Record
	var haveOwner, haveExpires bool

	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "owner":
			if !common.IsHexAddress(value) {
				return nil, fmt.Errorf("%w: owner %q", ErrMalformedRecord, value)
			}
			rec.Owner = common.HexToAddress(value)
			haveOwner = true
		case "expires":
			unix, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: expires %q", ErrMalformedRecord, value)
			}
			rec.Expires = time.Unix(unix, 0)
			haveExpires = true
		}
	}

	if !haveOwner || !haveExpires {
		return nil, ErrMalformedRecord
	}
	return &rec, nil
}
