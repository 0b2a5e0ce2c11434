package listing

import (
	"strconv"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
)

const (
	EventTypeCreated = "listing.created"
	EventTypeUpdated = "listing.updated"
)

func newListingEvent(eventType string, l *Listing) events.Typed {
	attrs := map[string]string{
		"address":       Address(l.Authority, l.ListingID).Hex(),
		"authority":     l.Authority.String(),
		"listingId":     l.ListingID,
		"standardPrice": strconv.FormatUint(l.StandardPrice, 10),
		"active":        strconv.FormatBool(l.Active),
	}
	if l.DeluxePrice != nil {
		attrs["deluxePrice"] = strconv.FormatUint(*l.DeluxePrice, 10)
	}
	if l.PremiumPrice != nil {
		attrs["premiumPrice"] = strconv.FormatUint(*l.PremiumPrice, 10)
	}
	return events.Wrap(&types.Event{Type: eventType, Attributes: attrs})
}
