package escrow

import (
	"fmt"

	"limitlesswork/core/codec"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/listing"
)

// Status represents the escrow lifecycle.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusRefunded
	StatusDisputed
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool { return s <= StatusDisputed }

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusRefunded }

// MaxOrderIDLength bounds the client-chosen order identifier.
const MaxOrderIDLength = 32

// Escrow holds one client deposit against a freelancer's listing. The deposit
// never changes after creation; the custody vault balance tracks what is left
// to distribute.
type Escrow struct {
	Address        crypto.RecordAddress
	Client         crypto.Address
	Freelancer     crypto.Address
	Listing        crypto.RecordAddress
	ListingID      string
	OrderID        string
	DepositAmount  uint64
	Package        listing.Tier
	StandardFeeBps uint16
	PremiumFeeBps  uint16
	Referrer       *crypto.Address
	Status         Status
	HasDispute     bool
	CreatedAt      int64
	CompletedAt    *int64
}

// FeeRate picks the premium or standard rate captured at creation.
func (e *Escrow) FeeRate(premium bool) uint16 {
	if premium {
		return e.PremiumFeeBps
	}
	return e.StandardFeeBps
}

// Vault is the custody account backing the escrow.
func (e *Escrow) Vault() crypto.Address { return VaultAccount(e.Address) }

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Referrer != nil {
		ref := *e.Referrer
		clone.Referrer = &ref
	}
	if e.CompletedAt != nil {
		ts := *e.CompletedAt
		clone.CompletedAt = &ts
	}
	return &clone
}

// Address derives the escrow location from its parties and order id.
func Address(client, freelancer crypto.Address, orderID string) crypto.RecordAddress {
	return crypto.DeriveAddress(crypto.TagEscrow, client[:], freelancer[:], []byte(orderID))
}

// VaultAccount derives the custody account of an escrow.
func VaultAccount(escrow crypto.RecordAddress) crypto.Address {
	return crypto.DeriveAccount(crypto.TagVault, escrow[:])
}

// Key is the logical state key of an escrow record.
func Key(addr crypto.RecordAddress) []byte { return state.RecordKey(addr) }

const escrowRecord = "Escrow"

func encodeEscrow(e *Escrow) []byte {
	w := codec.NewWriter(escrowRecord)
	w.RecordAddress(e.Address)
	w.Address(e.Client)
	w.Address(e.Freelancer)
	w.RecordAddress(e.Listing)
	w.Text(e.ListingID)
	w.Text(e.OrderID)
	w.U64(e.DepositAmount)
	w.U8(uint8(e.Package))
	w.U16(e.StandardFeeBps)
	w.U16(e.PremiumFeeBps)
	w.OptAddress(e.Referrer)
	w.U8(uint8(e.Status))
	w.Bool(e.HasDispute)
	w.I64(e.CreatedAt)
	w.OptI64(e.CompletedAt)
	return w.Bytes()
}

func decodeEscrow(data []byte) (*Escrow, error) {
	r := codec.NewReader(escrowRecord, data)
	e := &Escrow{
		Address:        r.RecordAddress(),
		Client:         r.Address(),
		Freelancer:     r.Address(),
		Listing:        r.RecordAddress(),
		ListingID:      r.Text(),
		OrderID:        r.Text(),
		DepositAmount:  r.U64(),
		Package:        listing.Tier(r.U8()),
		StandardFeeBps: r.U16(),
		PremiumFeeBps:  r.U16(),
		Referrer:       r.OptAddress(),
		Status:         Status(r.U8()),
		HasDispute:     r.Bool(),
		CreatedAt:      r.I64(),
		CompletedAt:    r.OptI64(),
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("escrow: decode: %w", err)
	}
	if !e.Status.Valid() || !e.Package.Valid() {
		return nil, fmt.Errorf("escrow: decode: invalid status %d or package %d", e.Status, e.Package)
	}
	return e, nil
}
