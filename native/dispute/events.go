package dispute

import (
	"strconv"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
	"limitlesswork/native/escrow"
)

const (
	EventTypeOpened   = "dispute.opened"
	EventTypeResolved = "dispute.resolved"
)

// NewOpenedEvent describes a dispute raised against an escrow.
func NewOpenedEvent(d *Dispute) events.Typed {
	return events.Wrap(&types.Event{Type: EventTypeOpened, Attributes: baseAttributes(d)})
}

// NewResolvedEvent describes the arbitrated outcome and the payouts it made.
func NewResolvedEvent(d *Dispute, pct uint64, payout escrow.Distribution) events.Typed {
	attrs := baseAttributes(d)
	attrs["clientPercentage"] = strconv.FormatUint(pct, 10)
	attrs["feeBps"] = strconv.FormatUint(uint64(payout.FeeBps), 10)
	attrs["clientAmount"] = strconv.FormatUint(payout.Client, 10)
	attrs["freelancerAmount"] = strconv.FormatUint(payout.Freelancer, 10)
	attrs["platformFee"] = strconv.FormatUint(payout.Platform, 10)
	if d.ResolvedAt != nil {
		attrs["resolvedAt"] = strconv.FormatInt(*d.ResolvedAt, 10)
	}
	return events.Wrap(&types.Event{Type: EventTypeResolved, Attributes: attrs})
}

func baseAttributes(d *Dispute) map[string]string {
	return map[string]string{
		"dispute":    d.Address.Hex(),
		"escrow":     d.Escrow.Hex(),
		"client":     d.Client.String(),
		"freelancer": d.Freelancer.String(),
		"status":     d.Status.String(),
		"createdAt":  strconv.FormatInt(d.CreatedAt, 10),
	}
}
