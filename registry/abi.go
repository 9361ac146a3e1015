package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// RegistrarABI is the ABI of the Solidity registrar. Registered and Renewed
// follow the deployed contract; the contract emits nothing on withdraw, so
// Withdrawn only decodes logs of a contract that adds it with this layout.
const RegistrarABI = `[
	{"type":"function","name":"createCommitment","stateMutability":"view",
	 "inputs":[{"name":"name","type":"string"},{"name":"salt","type":"bytes32"}],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"commit","stateMutability":"nonpayable",
	 "inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"register","stateMutability":"payable",
	 "inputs":[{"name":"name","type":"string"},{"name":"salt","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"renewName","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"nameLocks","stateMutability":"view",
	 "inputs":[{"name":"nameHash","type":"bytes32"}],
	 "outputs":[{"name":"owner","type":"address"},{"name":"escrow","type":"uint256"},{"name":"endDate","type":"uint256"}]},
	{"type":"event","name":"Registered","anonymous":false,
	 "inputs":[{"name":"name","type":"string","indexed":false},{"name":"amount","type":"uint256","indexed":false},
	           {"name":"owner","type":"address","indexed":false}]},
	{"type":"event","name":"Renewed","anonymous":false,
	 "inputs":[{"name":"name","type":"string","indexed":false},{"name":"endDate","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdrawn","anonymous":false,
	 "inputs":[{"name":"name","type":"string","indexed":false},{"name":"amount","type":"uint256","indexed":false},
	           {"name":"owner","type":"address","indexed":false}]}
]`

var registrarABI = mustParseABI(RegistrarABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
