package listing

import (
	"fmt"
	"strings"

	"limitlesswork/core/codec"
	coreerrors "limitlesswork/core/errors"
	"limitlesswork/crypto"
)

// Tier selects one of a listing's packages.
type Tier uint8

const (
	TierStandard Tier = iota
	TierDeluxe
	TierPremium
)

func (t Tier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierDeluxe:
		return "deluxe"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Valid reports whether t names a known package.
func (t Tier) Valid() bool { return t <= TierPremium }

// ParseTier accepts standard, deluxe or premium in any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return TierStandard, nil
	case "deluxe":
		return TierDeluxe, nil
	case "premium":
		return TierPremium, nil
	default:
		return 0, coreerrors.ErrInvalidTier.Withf("%q", s)
	}
}

const (
	MaxListingIDLength   = 32
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MaxCategoryLength    = 50
)

// Listing is a freelancer's published service offering.
type Listing struct {
	Authority       crypto.Address
	ListingID       string
	Title           string
	Description     string
	Category        string
	StandardPrice   uint64
	DeluxePrice     *uint64
	PremiumPrice    *uint64
	Active          bool
	TotalOrders     uint64
	CompletedOrders uint64
	CreatedAt       int64
}

// PriceFor returns the price of tier. Deluxe and premium are optional and
// their absence is an error, never a fallback to the standard price.
func (l *Listing) PriceFor(tier Tier) (uint64, error) {
	switch tier {
	case TierStandard:
		return l.StandardPrice, nil
	case TierDeluxe:
		if l.DeluxePrice == nil {
			return 0, coreerrors.ErrTierUnavailable.Withf("%s", tier)
		}
		return *l.DeluxePrice, nil
	case TierPremium:
		if l.PremiumPrice == nil {
			return 0, coreerrors.ErrTierUnavailable.Withf("%s", tier)
		}
		return *l.PremiumPrice, nil
	default:
		return 0, coreerrors.ErrInvalidTier.Withf("%d", tier)
	}
}

// Address locates the listing published by authority under listingID.
func Address(authority crypto.Address, listingID string) crypto.RecordAddress {
	return crypto.DeriveAddress(crypto.TagListing, authority[:], []byte(listingID))
}

const listingRecord = "Listing"

func encodeListing(l *Listing) []byte {
	w := codec.NewWriter(listingRecord)
	w.Address(l.Authority)
	w.Text(l.ListingID)
	w.Text(l.Title)
	w.Text(l.Description)
	w.Text(l.Category)
	w.U64(l.StandardPrice)
	w.OptU64(l.DeluxePrice)
	w.OptU64(l.PremiumPrice)
	w.Bool(l.Active)
	w.U64(l.TotalOrders)
	w.U64(l.CompletedOrders)
	w.I64(l.CreatedAt)
	return w.Bytes()
}

func decodeListing(data []byte) (*Listing, error) {
	r := codec.NewReader(listingRecord, data)
	l := &Listing{
		Authority:       r.Address(),
		ListingID:       r.Text(),
		Title:           r.Text(),
		Description:     r.Text(),
		Category:        r.Text(),
		StandardPrice:   r.U64(),
		DeluxePrice:     r.OptU64(),
		PremiumPrice:    r.OptU64(),
		Active:          r.Bool(),
		TotalOrders:     r.U64(),
		CompletedOrders: r.U64(),
		CreatedAt:       r.I64(),
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("listing: decode: %w", err)
	}
	return l, nil
}
