package types

// RegisterIdentityPayload claims a profile for the signer.
type RegisterIdentityPayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// CreateListingPayload publishes a service offering. Deluxe and premium tiers
// are optional.
type CreateListingPayload struct {
	ListingID     string  `json:"listingId"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	StandardPrice uint64  `json:"standardPrice"`
	DeluxePrice   *uint64 `json:"deluxePrice,omitempty"`
	PremiumPrice  *uint64 `json:"premiumPrice,omitempty"`
}

// UpdateListingPayload changes any subset of a listing's fields. Nil fields
// are left untouched.
type UpdateListingPayload struct {
	ListingID     string  `json:"listingId"`
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	StandardPrice *uint64 `json:"standardPrice,omitempty"`
	DeluxePrice   *uint64 `json:"deluxePrice,omitempty"`
	PremiumPrice  *uint64 `json:"premiumPrice,omitempty"`
	Active        *bool   `json:"active,omitempty"`
}

// CreateEscrowPayload locks the price of Package on the freelancer's listing.
type CreateEscrowPayload struct {
	Freelancer string `json:"freelancer"`
	ListingID  string `json:"listingId"`
	OrderID    string `json:"orderId"`
	Package    string `json:"package"`
	Referrer   string `json:"referrer,omitempty"`
}

// EscrowRefPayload names an escrow by its derived address.
type EscrowRefPayload struct {
	Escrow string `json:"escrow"`
}

// OpenDisputePayload freezes an escrow pending arbitration.
type OpenDisputePayload struct {
	Escrow string `json:"escrow"`
	Reason string `json:"reason"`
}

// ResolveDisputePayload settles an open dispute.
type ResolveDisputePayload struct {
	Dispute          string  `json:"dispute"`
	Resolution       string  `json:"resolution"`
	AdminNotes       *string `json:"adminNotes,omitempty"`
	ClientPercentage uint64  `json:"clientPercentage"`
}

// Receipt summarises a committed transaction.
type Receipt struct {
	TxHash string   `json:"txHash"`
	Type   string   `json:"type"`
	Sender string   `json:"sender"`
	Record string   `json:"record,omitempty"`
	Events []*Event `json:"events"`
}
