package scheduler

import (
	"encoding/hex"
	"strconv"

	"rampnet/core/types"
)

func newOperationEvent(eventType string, op *Operation, key [32]byte) *types.Event {
	attrs := map[string]string{"orderKey": hex.EncodeToString(key[:])}
	if op == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["kind"] = op.Kind.String()
	attrs["effectiveAt"] = strconv.FormatInt(op.EffectiveAt, 10)
	if op.NewPrice != nil {
		attrs["newPrice"] = op.NewPrice.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
