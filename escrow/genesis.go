package escrow

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// GenesisAlloc maps accounts to their initial spendable balance.
type GenesisAlloc map[interfaces.Address]*big.Int

// LoadGenesisAlloc parses a JSON object of address -> amount. Amounts may be
// decimal or 0x-prefixed hex strings:
//
//	{"0x5B38Da6a701c568545dCfcB03FcB875f56beddC4": "10000000000000000000"}
func LoadGenesisAlloc(r io.Reader) (GenesisAlloc, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode genesis allocation: %w", err)
	}

	alloc := make(GenesisAlloc, len(raw))
	for addrHex, amountStr := range raw {
		if !common.IsHexAddress(addrHex) {
			return nil, fmt.Errorf("invalid address in genesis allocation: %s", addrHex)
		}

		amount, ok := math.ParseBig256(amountStr)
		if !ok {
			return nil, fmt.Errorf("invalid amount for %s: %q", addrHex, amountStr)
		}
		alloc[common.HexToAddress(addrHex)] = amount
	}
	return alloc, nil
}

// Apply credits every allocation to the ledger.
func (g GenesisAlloc) Apply(l *Ledger) error {
	for addr, amount := range g {
		if err := l.Credit(addr, amount); err != nil {
			return fmt.Errorf("failed to credit %s: %w", addr.Hex(), err)
		}
	}
	return nil
}
