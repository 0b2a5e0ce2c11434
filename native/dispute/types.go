package dispute

import (
	"fmt"
	"strings"

	"limitlesswork/core/codec"
	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
)

// Status tracks a dispute from opening to its arbitrated outcome.
type Status uint8

const (
	StatusOpen Status = iota
	StatusResolvedForClient
	StatusResolvedForFreelancer
	StatusResolvedSplit
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusResolvedForClient:
		return "resolved_for_client"
	case StatusResolvedForFreelancer:
		return "resolved_for_freelancer"
	case StatusResolvedSplit:
		return "resolved_split"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Resolved reports whether s is one of the three arbitrated outcomes.
func (s Status) Resolved() bool {
	return s == StatusResolvedForClient || s == StatusResolvedForFreelancer || s == StatusResolvedSplit
}

// ParseResolution maps an outcome name onto its status. Open parses but is
// rejected by Resolve.
func ParseResolution(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StatusOpen, nil
	case "client", "resolved_for_client", "resolvedforclient":
		return StatusResolvedForClient, nil
	case "freelancer", "resolved_for_freelancer", "resolvedforfreelancer":
		return StatusResolvedForFreelancer, nil
	case "split", "resolved_split", "resolvedsplit":
		return StatusResolvedSplit, nil
	default:
		return 0, coreerrors.ErrInvalidResolution.Withf("%q", s)
	}
}

const (
	MaxReasonLength = 500
	MaxNotesLength  = 500
)

// Dispute is the arbitration case attached to a frozen escrow.
type Dispute struct {
	Address    crypto.RecordAddress
	Escrow     crypto.RecordAddress
	Client     crypto.Address
	Freelancer crypto.Address
	Reason     string
	Status     Status
	CreatedAt  int64
	ResolvedAt *int64
	AdminNotes *string
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	if d.ResolvedAt != nil {
		ts := *d.ResolvedAt
		clone.ResolvedAt = &ts
	}
	if d.AdminNotes != nil {
		notes := *d.AdminNotes
		clone.AdminNotes = &notes
	}
	return &clone
}

// Address derives the dispute location of an escrow.
func Address(escrow crypto.RecordAddress) crypto.RecordAddress {
	return crypto.DeriveAddress(crypto.TagDispute, escrow[:])
}

// Key is the logical state key of the dispute record at addr.
func Key(addr crypto.RecordAddress) []byte { return state.RecordKey(addr) }

const disputeRecord = "Dispute"

func encodeDispute(d *Dispute) []byte {
	w := codec.NewWriter(disputeRecord)
	w.RecordAddress(d.Address)
	w.RecordAddress(d.Escrow)
	w.Address(d.Client)
	w.Address(d.Freelancer)
	w.Text(d.Reason)
	w.U8(uint8(d.Status))
	w.I64(d.CreatedAt)
	w.OptI64(d.ResolvedAt)
	w.OptString(d.AdminNotes)
	return w.Bytes()
}

func decodeDispute(data []byte) (*Dispute, error) {
	r := codec.NewReader(disputeRecord, data)
	d := &Dispute{
		Address:    r.RecordAddress(),
		Escrow:     r.RecordAddress(),
		Client:     r.Address(),
		Freelancer: r.Address(),
		Reason:     r.Text(),
		Status:     Status(r.U8()),
		CreatedAt:  r.I64(),
		ResolvedAt: r.OptI64(),
		AdminNotes: r.OptString(),
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("dispute: decode: %w", err)
	}
	if d.Status > StatusResolvedSplit {
		return nil, fmt.Errorf("dispute: decode: invalid status %d", d.Status)
	}
	return d, nil
}
