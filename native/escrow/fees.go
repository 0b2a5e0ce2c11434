package escrow

import (
	"github.com/holiman/uint256"

	coreerrors "limitlesswork/core/errors"
)

const (
	// BasisPointsDenominator is 100% in basis points.
	BasisPointsDenominator = 10_000
	// ReferrerShareDivisor gives the referrer one twentieth of the fee.
	ReferrerShareDivisor = 20

	DefaultStandardFeeBps uint16 = 1000
	DefaultPremiumFeeBps  uint16 = 750
)

// Distribution is the full payout of a custody vault. Total always equals the
// escrow deposit for a valid distribution.
type Distribution struct {
	Client     uint64 `json:"client"`
	Freelancer uint64 `json:"freelancer"`
	Platform   uint64 `json:"platform"`
	Referrer   uint64 `json:"referrer"`
	FeeBps     uint16 `json:"feeBps"`
}

// Fee is the platform fee before the referrer split.
func (d Distribution) Fee() uint64 { return d.Platform + d.Referrer }

// Total sums every share with overflow checking.
func (d Distribution) Total() (uint64, error) {
	sum := uint256.NewInt(d.Client)
	sum.Add(sum, uint256.NewInt(d.Freelancer))
	sum.Add(sum, uint256.NewInt(d.Platform))
	sum.Add(sum, uint256.NewInt(d.Referrer))
	if !sum.IsUint64() {
		return 0, coreerrors.ErrAmountOverflow
	}
	return sum.Uint64(), nil
}

// ValidateFeeRate rejects rates above 100%.
func ValidateFeeRate(bps uint16) error {
	if bps > BasisPointsDenominator {
		return coreerrors.ErrInvalidFeeRate.Withf("%d", bps)
	}
	return nil
}

// mulDiv computes floor(amount * numerator / denominator) in 256-bit space.
func mulDiv(amount, numerator, denominator uint64) uint64 {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(numerator))
	product.Div(product, uint256.NewInt(denominator))
	// numerator <= denominator at every call site, so the quotient fits.
	return product.Uint64()
}

// FeeAmount returns floor(amount * bps / 10000).
func FeeAmount(amount uint64, bps uint16) (uint64, error) {
	if err := ValidateFeeRate(bps); err != nil {
		return 0, err
	}
	return mulDiv(amount, uint64(bps), BasisPointsDenominator), nil
}

// ComputeRelease splits a deposit on normal approval: the freelancer receives
// the deposit less the fee and a referrer, when present, takes a twentieth of
// the fee from the platform's share.
func ComputeRelease(deposit uint64, bps uint16, hasReferrer bool) (Distribution, error) {
	fee, err := FeeAmount(deposit, bps)
	if err != nil {
		return Distribution{}, err
	}
	var referrer uint64
	if hasReferrer {
		referrer = fee / ReferrerShareDivisor
	}
	return Distribution{
		Freelancer: deposit - fee,
		Platform:   fee - referrer,
		Referrer:   referrer,
		FeeBps:     bps,
	}, nil
}

// ComputeFreelancerAward is a release with no referrer split.
func ComputeFreelancerAward(deposit uint64, bps uint16) (Distribution, error) {
	return ComputeRelease(deposit, bps, false)
}

// ComputeRefund returns the whole deposit to the client.
func ComputeRefund(deposit uint64) Distribution {
	return Distribution{Client: deposit}
}

// ComputeSplit gives the client floor(deposit * pct / 100) and charges the fee
// on the remainder only.
func ComputeSplit(deposit uint64, clientPercentage uint8, bps uint16) (Distribution, error) {
	if clientPercentage > 100 {
		return Distribution{}, coreerrors.ErrInvalidClientPercentage.Withf("%d", clientPercentage)
	}
	client := mulDiv(deposit, uint64(clientPercentage), 100)
	remaining := deposit - client
	fee, err := FeeAmount(remaining, bps)
	if err != nil {
		return Distribution{}, err
	}
	return Distribution{
		Client:     client,
		Freelancer: remaining - fee,
		Platform:   fee,
		FeeBps:     bps,
	}, nil
}
