package identity

import (
	"fmt"
	"strings"

	"limitlesswork/core/codec"
	coreerrors "limitlesswork/core/errors"
	"limitlesswork/crypto"
)

// Role distinguishes buyers from sellers.
type Role uint8

const (
	RoleClient Role = iota
	RoleFreelancer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleFreelancer:
		return "freelancer"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole accepts "client" or "freelancer" in any case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return RoleClient, nil
	case "freelancer":
		return RoleFreelancer, nil
	default:
		return 0, coreerrors.ErrInvalidRole.Withf("%q", s)
	}
}

const (
	// MaxUsernameLength bounds the NFC-normalised username in bytes.
	MaxUsernameLength = 50
	// InitialReputation is assigned to every new profile.
	InitialReputation uint8 = 50
)

// Profile is the registry record for one identity.
type Profile struct {
	Authority         crypto.Address
	Username          string
	Role              Role
	Premium           bool
	Reputation        uint8
	TotalTransactions uint64
	CreatedAt         int64
}

// IsFreelancer reports whether the profile may publish listings and receive
// escrowed payments.
func (p *Profile) IsFreelancer() bool { return p != nil && p.Role == RoleFreelancer }

const profileRecord = "UserProfile"

// ProfileAddress locates the profile owned by authority.
func ProfileAddress(authority crypto.Address) crypto.RecordAddress {
	return crypto.DeriveAddress(crypto.TagProfile, authority[:])
}

// UsernameAddress locates the uniqueness claim for a normalised username.
func UsernameAddress(username string) crypto.RecordAddress {
	return crypto.DeriveAddress(crypto.TagUsername, []byte(usernameKey(username)))
}

func usernameKey(username string) string { return strings.ToLower(username) }

func encodeProfile(p *Profile) []byte {
	w := codec.NewWriter(profileRecord)
	w.Address(p.Authority)
	w.Text(p.Username)
	w.U8(uint8(p.Role))
	w.Bool(p.Premium)
	w.U8(p.Reputation)
	w.U64(p.TotalTransactions)
	w.I64(p.CreatedAt)
	return w.Bytes()
}

func decodeProfile(data []byte) (*Profile, error) {
	r := codec.NewReader(profileRecord, data)
	p := &Profile{
		Authority:         r.Address(),
		Username:          r.Text(),
		Role:              Role(r.U8()),
		Premium:           r.Bool(),
		Reputation:        r.U8(),
		TotalTransactions: r.U64(),
		CreatedAt:         r.I64(),
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("identity: decode profile: %w", err)
	}
	if p.Role > RoleFreelancer {
		return nil, fmt.Errorf("identity: decode profile: unknown role %d", p.Role)
	}
	return p, nil
}

// username claims hold the owning authority.
const usernameRecord = "UsernameClaim"

func encodeClaim(owner crypto.Address) []byte {
	w := codec.NewWriter(usernameRecord)
	w.Address(owner)
	return w.Bytes()
}
