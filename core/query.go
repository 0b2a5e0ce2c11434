package core

import (
	"limitlesswork/core/state"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/native/dispute"
	"limitlesswork/native/escrow"
	"limitlesswork/native/identity"
	"limitlesswork/native/listing"
)

// ReleasePreview is what a client approval would pay out right now.
type ReleasePreview struct {
	Escrow       *escrow.Escrow
	Distribution escrow.Distribution
}

// Account returns the committed nonce and balance of addr.
func (sp *StateProcessor) Account(addr crypto.Address) (*types.Account, error) {
	var out *types.Account
	err := sp.store.View(func(tx *state.Tx) error {
		var err error
		out, err = tx.Account(addr)
		return err
	})
	return out, err
}

// Profile returns the identity profile of authority.
func (sp *StateProcessor) Profile(authority crypto.Address) (*identity.Profile, error) {
	var out *identity.Profile
	err := sp.store.View(func(tx *state.Tx) error {
		var err error
		out, err = sp.Identity.Profile(tx, authority)
		return err
	})
	return out, err
}

// Listing returns the listing authority published under listingID.
func (sp *StateProcessor) Listing(authority crypto.Address, listingID string) (*listing.Listing, error) {
	var out *listing.Listing
	err := sp.store.View(func(tx *state.Tx) error {
		var err error
		out, err = sp.Listings.Get(tx, authority, listingID)
		return err
	})
	return out, err
}

// Escrow returns the escrow at addr.
func (sp *StateProcessor) Escrow(addr crypto.RecordAddress) (*escrow.Escrow, error) {
	return sp.loadEscrow(addr)
}

// Dispute returns the dispute raised against the escrow at escrowAddr.
func (sp *StateProcessor) Dispute(escrowAddr crypto.RecordAddress) (*dispute.Dispute, error) {
	var out *dispute.Dispute
	err := sp.store.View(func(tx *state.Tx) error {
		var err error
		out, err = sp.Disputes.Get(tx, dispute.Address(escrowAddr))
		return err
	})
	return out, err
}

// PreviewRelease computes the payout of releasing the escrow at addr with the
// client's current premium flag.
func (sp *StateProcessor) PreviewRelease(addr crypto.RecordAddress) (*ReleasePreview, error) {
	var out *ReleasePreview
	err := sp.store.View(func(tx *state.Tx) error {
		esc, d, err := sp.Escrows.PreviewRelease(tx, addr)
		if err != nil {
			return err
		}
		out = &ReleasePreview{Escrow: esc, Distribution: d}
		return nil
	})
	return out, err
}
