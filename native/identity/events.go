package identity

import (
	"strconv"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
)

const (
	EventTypeRegistered = "identity.registered"
	EventTypePremium    = "identity.premium"
)

func newProfileEvent(eventType string, p *Profile) events.Typed {
	attrs := map[string]string{
		"authority":  p.Authority.String(),
		"username":   p.Username,
		"role":       p.Role.String(),
		"premium":    strconv.FormatBool(p.Premium),
		"reputation": strconv.FormatUint(uint64(p.Reputation), 10),
	}
	return events.Wrap(&types.Event{Type: eventType, Attributes: attrs})
}
