package escrow

import (
	"errors"
	"testing"

	coreerrors "limitlesswork/core/errors"
)

func TestComputeReleaseStandardNoReferrer(t *testing.T) {
	d, err := ComputeRelease(1_000_000, 1000, false)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if d.Freelancer != 900_000 || d.Platform != 100_000 || d.Referrer != 0 {
		t.Fatalf("unexpected distribution %+v", d)
	}
}

func TestComputeReleasePremiumWithReferrer(t *testing.T) {
	d, err := ComputeRelease(1_000_000, 750, true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if d.Fee() != 75_000 || d.Referrer != 3_750 || d.Platform != 71_250 || d.Freelancer != 925_000 {
		t.Fatalf("unexpected distribution %+v", d)
	}
}

func TestComputeSplitFortyPercent(t *testing.T) {
	d, err := ComputeSplit(1_000_000, 40, 1000)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if d.Client != 400_000 || d.Platform != 60_000 || d.Freelancer != 540_000 || d.Referrer != 0 {
		t.Fatalf("unexpected distribution %+v", d)
	}
}

func TestDistributionsAlwaysSumToDeposit(t *testing.T) {
	deposits := []uint64{0, 1, 19, 20, 999, 10_001, 1_000_000, 123_456_789, ^uint64(0)}
	rates := []uint16{0, 1, 750, 1000, 9_999, 10_000}
	for _, deposit := range deposits {
		for _, bps := range rates {
			for _, referrer := range []bool{false, true} {
				d, err := ComputeRelease(deposit, bps, referrer)
				if err != nil {
					t.Fatalf("release(%d,%d,%v): %v", deposit, bps, referrer, err)
				}
				if total, _ := d.Total(); total != deposit {
					t.Fatalf("release(%d,%d,%v) distributes %d", deposit, bps, referrer, total)
				}
			}
			for pct := 0; pct <= 100; pct++ {
				d, err := ComputeSplit(deposit, uint8(pct), bps)
				if err != nil {
					t.Fatalf("split(%d,%d,%d): %v", deposit, pct, bps, err)
				}
				if total, _ := d.Total(); total != deposit {
					t.Fatalf("split(%d,%d,%d) distributes %d", deposit, pct, bps, total)
				}
			}
		}
	}
}

func TestSplitBoundaries(t *testing.T) {
	all, _ := ComputeSplit(1_000, 100, 1000)
	if all.Client != 1_000 || all.Freelancer != 0 || all.Platform != 0 {
		t.Fatalf("100%% split should refund everything: %+v", all)
	}
	none, _ := ComputeSplit(1_000, 0, 1000)
	if none.Client != 0 || none.Freelancer != 900 || none.Platform != 100 {
		t.Fatalf("0%% split should match a freelancer award: %+v", none)
	}
	if _, err := ComputeSplit(1_000, 101, 1000); !errors.Is(err, coreerrors.ErrInvalidClientPercentage) {
		t.Fatalf("expected invalid percentage, got %v", err)
	}
}

func TestFeeRateAboveDenominatorRejected(t *testing.T) {
	if _, err := ComputeRelease(100, 10_001, false); !errors.Is(err, coreerrors.ErrInvalidFeeRate) {
		t.Fatalf("expected invalid fee rate, got %v", err)
	}
	if _, err := FeeAmount(^uint64(0), 10_000); err != nil {
		t.Fatalf("max deposit at 100%% must not overflow: %v", err)
	}
}
