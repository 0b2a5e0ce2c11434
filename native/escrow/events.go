package escrow

import (
	"strconv"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
)

const (
	EventTypeEscrowCreated  = "escrow.created"
	EventTypeEscrowReleased = "escrow.released"
	EventTypeEscrowDisputed = "escrow.disputed"
	EventTypeEscrowSettled  = "escrow.settled"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) events.Typed { return newEscrowEvent(EventTypeEscrowCreated, e, nil) }

// NewReleasedEvent returns the canonical event payload for a release of escrow
// funds to the freelancer.
func NewReleasedEvent(e *Escrow, d Distribution) events.Typed {
	return newEscrowEvent(EventTypeEscrowReleased, e, &d)
}

// NewDisputedEvent returns the canonical event payload emitted when an escrow
// is frozen by a dispute.
func NewDisputedEvent(e *Escrow) events.Typed { return newEscrowEvent(EventTypeEscrowDisputed, e, nil) }

// NewSettledEvent returns the canonical event payload emitted when an
// arbitrated distribution drains the vault.
func NewSettledEvent(e *Escrow, d Distribution) events.Typed {
	return newEscrowEvent(EventTypeEscrowSettled, e, &d)
}

func newEscrowEvent(eventType string, e *Escrow, d *Distribution) events.Typed {
	attrs := make(map[string]string)
	if e == nil {
		return events.Wrap(&types.Event{Type: eventType, Attributes: attrs})
	}
	attrs["escrow"] = e.Address.Hex()
	attrs["client"] = e.Client.String()
	attrs["freelancer"] = e.Freelancer.String()
	attrs["listing"] = e.Listing.Hex()
	attrs["orderId"] = e.OrderID
	attrs["package"] = e.Package.String()
	attrs["amount"] = strconv.FormatUint(e.DepositAmount, 10)
	attrs["status"] = e.Status.String()
	attrs["createdAt"] = strconv.FormatInt(e.CreatedAt, 10)
	if e.Referrer != nil {
		attrs["referrer"] = e.Referrer.String()
	}
	if d != nil {
		attrs["feeBps"] = strconv.FormatUint(uint64(d.FeeBps), 10)
		attrs["clientAmount"] = strconv.FormatUint(d.Client, 10)
		attrs["freelancerAmount"] = strconv.FormatUint(d.Freelancer, 10)
		attrs["platformFee"] = strconv.FormatUint(d.Platform, 10)
		attrs["referrerFee"] = strconv.FormatUint(d.Referrer, 10)
	}
	return events.Wrap(&types.Event{Type: eventType, Attributes: attrs})
}
