package registry

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

var ErrUnknownEvent = errors.New("unknown registrar event")

// ParseEvent decodes a registrar contract log. Seq and Time are left zero:
// logs are ordered by block and index, not by a registrar sequence. Renewed
// logs carry no caller, so Address stays zero for them.
func ParseEvent(log types.Log) (interfaces.Event, error) {
	if len(log.Topics) == 0 {
		return interfaces.Event{}, ErrUnknownEvent
	}

	ev, err := registrarABI.EventByID(log.Topics[0])
	if err != nil {
		return interfaces.Event{}, fmt.Errorf("%w: %v", ErrUnknownEvent, err)
	}

	fields := map[string]any{}
	if err := registrarABI.UnpackIntoMap(fields, ev.Name, log.Data); err != nil {
		return interfaces.Event{}, fmt.Errorf("could not unpack %s: %w", ev.Name, err)
	}

	name, _ := fields["name"].(string)
	event := interfaces.Event{
		Kind: interfaces.EventKind(ev.Name),
		Name: name,
	}

	switch event.Kind {
	case interfaces.EventRegistered, interfaces.EventWithdrawn:
		event.Amount = bigField(fields, "amount")
		event.Address, _ = fields["owner"].(common.Address)
	case interfaces.EventRenewed:
		event.EndDate = unixField(fields, "endDate")
	default:
		return interfaces.Event{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}

	return event, nil
}

func bigField(fields map[string]any, key string) *big.Int {
	if v, ok := fields[key].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

func unixField(fields map[string]any, key string) time.Time {
	return time.Unix(bigField(fields, key).Int64(), 0)
}
