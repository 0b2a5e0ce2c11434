package dispute

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/escrow"
	"limitlesswork/native/identity"
	"limitlesswork/native/listing"
	"limitlesswork/storage"
)

func newTestAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, crypto.AddressLength))
	return addr
}

var (
	client     = newTestAddress(0x01)
	freelancer = newTestAddress(0x02)
	arbitrator = newTestAddress(0x0A)
	collector  = newTestAddress(0xFE)
)

type harness struct {
	t        *testing.T
	store    *state.Store
	profiles *identity.Engine
	escrows  *escrow.Engine
	engine   *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	profiles := identity.NewEngine()
	listings := listing.NewEngine(profiles)
	escrows := escrow.NewEngine(profiles, listings)
	escrows.SetFeeCollector(collector)
	engine := NewEngine(escrows)
	engine.SetNowFunc(func() int64 { return 2_000 })
	h := &harness{t: t, store: state.NewStore(storage.NewMemDB()), profiles: profiles, escrows: escrows, engine: engine}

	h.update(identity.RegisterKeys(client, "client"), func(tx *state.Tx) error {
		_, err := profiles.Register(tx, client, "client", identity.RoleClient)
		return err
	})
	h.update(identity.RegisterKeys(freelancer, "freelancer"), func(tx *state.Tx) error {
		_, err := profiles.Register(tx, freelancer, "freelancer", identity.RoleFreelancer)
		return err
	})
	h.update([][]byte{listing.Key(freelancer, "site")}, func(tx *state.Tx) error {
		_, err := listings.Create(tx, freelancer, listing.CreateParams{ListingID: "site", Title: "Website", StandardPrice: 1_000_000})
		return err
	})
	h.update([][]byte{state.AccountKey(client), state.RoleKey(state.RoleArbitrator)}, func(tx *state.Tx) error {
		if err := tx.Credit(client, 10_000_000); err != nil {
			return err
		}
		return tx.SetRole(state.RoleArbitrator, arbitrator)
	})
	return h
}

func (h *harness) update(keys [][]byte, fn func(*state.Tx) error) {
	h.t.Helper()
	if err := h.store.Update(keys, fn); err != nil {
		h.t.Fatalf("setup: %v", err)
	}
}

func (h *harness) newEscrow(orderID string) *escrow.Escrow {
	h.t.Helper()
	params := escrow.CreateParams{Freelancer: freelancer, ListingID: "site", OrderID: orderID}
	var esc *escrow.Escrow
	h.update(escrow.CreateKeys(client, params), func(tx *state.Tx) error {
		var err error
		esc, err = h.escrows.Create(tx, client, params)
		return err
	})
	return esc
}

func (h *harness) open(caller crypto.Address, esc *escrow.Escrow, reason string) (*Dispute, error) {
	var out *Dispute
	err := h.store.Update(OpenKeys(esc.Address), func(tx *state.Tx) error {
		var err error
		out, err = h.engine.Open(tx, caller, esc.Address, reason)
		return err
	})
	return out, err
}

func (h *harness) resolve(caller crypto.Address, esc *escrow.Escrow, params ResolveParams) (*Dispute, escrow.Distribution, error) {
	var (
		out    *Dispute
		payout escrow.Distribution
	)
	err := h.store.Update(h.engine.ResolveKeys(esc), func(tx *state.Tx) error {
		var err error
		out, payout, err = h.engine.Resolve(tx, caller, Address(esc.Address), params)
		return err
	})
	return out, payout, err
}

func (h *harness) balance(addr crypto.Address) uint64 {
	h.t.Helper()
	var out uint64
	_ = h.store.View(func(tx *state.Tx) error {
		var err error
		out, err = tx.Balance(addr)
		return err
	})
	return out
}

func (h *harness) escrowStatus(esc *escrow.Escrow) escrow.Status {
	h.t.Helper()
	var status escrow.Status
	_ = h.store.View(func(tx *state.Tx) error {
		loaded, err := h.escrows.Get(tx, esc.Address)
		if err != nil {
			h.t.Fatalf("load escrow: %v", err)
		}
		status = loaded.Status
		return nil
	})
	return status
}

func (h *harness) openDispute(esc *escrow.Escrow) *Dispute {
	h.t.Helper()
	d, err := h.open(client, esc, "work not delivered")
	if err != nil {
		h.t.Fatalf("open: %v", err)
	}
	return d
}

func TestOpenFreezesEscrow(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	d := h.openDispute(esc)
	if d.Status != StatusOpen || d.Escrow != esc.Address || d.Client != client || d.Freelancer != freelancer {
		t.Fatalf("unexpected dispute %+v", d)
	}
	if d.Address != Address(esc.Address) || d.CreatedAt != 2_000 || d.ResolvedAt != nil {
		t.Fatalf("unexpected dispute location or timestamps %+v", d)
	}
	if got := h.escrowStatus(esc); got != escrow.StatusDisputed {
		t.Fatalf("escrow status = %s, want disputed", got)
	}
}

func TestOpenRejections(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	if _, err := h.open(freelancer, esc, "nope"); coreerrors.KindOf(err) != coreerrors.KindAuthorization {
		t.Fatalf("freelancer open: expected authorization error, got %v", err)
	}
	if _, err := h.open(client, esc, strings.Repeat("r", MaxReasonLength+1)); !errors.Is(err, coreerrors.ErrReasonTooLong) {
		t.Fatalf("expected reason too long, got %v", err)
	}
	if got := h.escrowStatus(esc); got != escrow.StatusActive {
		t.Fatalf("rejected open changed escrow status to %s", got)
	}
	h.openDispute(esc)
	if _, err := h.open(client, esc, "again"); !errors.Is(err, coreerrors.ErrDisputeAlreadyExists) {
		t.Fatalf("second open: expected dispute already exists, got %v", err)
	}
}

func TestResolveForClientRefundsEverything(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	h.openDispute(esc)
	notes := "refund approved"
	d, payout, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForClient, AdminNotes: &notes})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if payout.Client != 1_000_000 || payout.Fee() != 0 || payout.Freelancer != 0 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if h.balance(client) != 10_000_000 || h.balance(esc.Vault()) != 0 {
		t.Fatalf("client must be made whole and the vault drained")
	}
	if got := h.escrowStatus(esc); got != escrow.StatusRefunded {
		t.Fatalf("escrow status = %s, want refunded", got)
	}
	if d.Status != StatusResolvedForClient || d.ResolvedAt == nil || d.AdminNotes == nil || *d.AdminNotes != notes {
		t.Fatalf("unexpected resolved dispute %+v", d)
	}
}

func TestResolveForFreelancerChargesFee(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	h.openDispute(esc)
	_, payout, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForFreelancer})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if payout.Freelancer != 900_000 || payout.Platform != 100_000 || payout.Referrer != 0 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if h.balance(freelancer) != 900_000 || h.balance(collector) != 100_000 {
		t.Fatalf("balances do not match the award")
	}
	if got := h.escrowStatus(esc); got != escrow.StatusCompleted {
		t.Fatalf("escrow status = %s, want completed", got)
	}
}

func TestResolveSplitFeesRemainderOnly(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	h.openDispute(esc)
	_, payout, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedSplit, ClientPercentage: 40})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if payout.Client != 400_000 || payout.Platform != 60_000 || payout.Freelancer != 540_000 {
		t.Fatalf("unexpected payout %+v", payout)
	}
	if h.balance(client) != 9_400_000 || h.balance(freelancer) != 540_000 || h.balance(collector) != 60_000 {
		t.Fatalf("balances do not match the split")
	}
	if h.balance(esc.Vault()) != 0 {
		t.Fatalf("vault must drain to zero")
	}
	var profile *identity.Profile
	_ = h.store.View(func(tx *state.Tx) error {
		var err error
		profile, err = h.profiles.Profile(tx, freelancer)
		return err
	})
	if profile.TotalTransactions != 1 {
		t.Fatalf("resolution must count as a completed transaction")
	}
}

func TestResolveValidatesPercentageForEveryOutcome(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	h.openDispute(esc)
	for _, outcome := range []Status{StatusResolvedForClient, StatusResolvedForFreelancer, StatusResolvedSplit} {
		_, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: outcome, ClientPercentage: 101})
		if !errors.Is(err, coreerrors.ErrInvalidClientPercentage) {
			t.Fatalf("%s: expected invalid client percentage, got %v", outcome, err)
		}
	}
	if h.balance(esc.Vault()) != 1_000_000 {
		t.Fatalf("rejected resolutions moved funds")
	}
}

func TestResolveRejections(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	h.openDispute(esc)
	if _, _, err := h.resolve(client, esc, ResolveParams{Resolution: StatusResolvedForClient}); !errors.Is(err, coreerrors.ErrNotArbitrator) {
		t.Fatalf("client resolve: expected not arbitrator, got %v", err)
	}
	if _, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusOpen}); !errors.Is(err, coreerrors.ErrInvalidResolution) {
		t.Fatalf("open outcome: expected invalid resolution, got %v", err)
	}
	long := strings.Repeat("n", MaxNotesLength+1)
	if _, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForClient, AdminNotes: &long}); !errors.Is(err, coreerrors.ErrNotesTooLong) {
		t.Fatalf("expected notes too long, got %v", err)
	}
	if _, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForClient}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForFreelancer}); !errors.Is(err, coreerrors.ErrDisputeNotOpen) {
		t.Fatalf("second resolve: expected dispute not open, got %v", err)
	}
}

func TestResolveWithoutDispute(t *testing.T) {
	h := newHarness(t)
	esc := h.newEscrow("o-1")
	if _, _, err := h.resolve(arbitrator, esc, ResolveParams{Resolution: StatusResolvedForClient}); !errors.Is(err, coreerrors.ErrDisputeNotFound) {
		t.Fatalf("expected dispute not found, got %v", err)
	}
}

func TestParseResolution(t *testing.T) {
	cases := map[string]Status{
		"client":                  StatusResolvedForClient,
		"Resolved_For_Freelancer": StatusResolvedForFreelancer,
		" split ":                 StatusResolvedSplit,
	}
	for in, want := range cases {
		got, err := ParseResolution(in)
		if err != nil || got != want {
			t.Fatalf("ParseResolution(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseResolution("coinflip"); !errors.Is(err, coreerrors.ErrInvalidResolution) {
		t.Fatalf("expected invalid resolution, got %v", err)
	}
}

func TestDisputeRecordRoundTrip(t *testing.T) {
	ts := int64(5)
	notes := "ok"
	in := &Dispute{
		Address:    Address(crypto.RecordAddress{1}),
		Escrow:     crypto.RecordAddress{1},
		Client:     client,
		Freelancer: freelancer,
		Reason:     "late",
		Status:     StatusResolvedSplit,
		CreatedAt:  3,
		ResolvedAt: &ts,
		AdminNotes: &notes,
	}
	out, err := decodeDispute(encodeDispute(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Address != in.Address || out.Reason != "late" || *out.ResolvedAt != 5 || *out.AdminNotes != "ok" || out.Status != StatusResolvedSplit {
		t.Fatalf("round trip mismatch %+v", out)
	}
}
