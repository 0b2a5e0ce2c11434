package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/state"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/native/dispute"
	"limitlesswork/native/escrow"
	"limitlesswork/storage"
)

const testChainID = 7

type actor struct {
	key   *crypto.PrivateKey
	addr  crypto.Address
	nonce uint64
}

func newActor(t *testing.T) *actor {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &actor{key: key, addr: key.PubKey().Address()}
}

type fixture struct {
	t          *testing.T
	sp         *StateProcessor
	pauses     *common.Pauses
	collector  crypto.Address
	client     *actor
	freelancer *actor
	arbitrator *actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithFees(t, escrow.DefaultStandardFeeBps, escrow.DefaultPremiumFeeBps)
}

func newFixtureWithFees(t *testing.T, standardBps, premiumBps uint16) *fixture {
	t.Helper()
	store := state.NewStore(storage.NewMemDB())
	f := &fixture{
		t:          t,
		pauses:     common.NewPauses(),
		collector:  crypto.DeriveAccount("fee-collector", []byte("test")),
		client:     newActor(t),
		freelancer: newActor(t),
		arbitrator: newActor(t),
	}
	sp, err := NewStateProcessor(store, Options{
		ChainID:        testChainID,
		FeeCollector:   f.collector,
		StandardFeeBps: standardBps,
		PremiumFeeBps:  premiumBps,
		Pauses:         f.pauses,
		Now:            func() int64 { return 1_000 },
	})
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	f.sp = sp

	err = store.Update([][]byte{state.AccountKey(f.client.addr), state.RoleKey(state.RoleArbitrator)}, func(tx *state.Tx) error {
		if err := tx.Credit(f.client.addr, 10_000_000); err != nil {
			return err
		}
		return tx.SetRole(state.RoleArbitrator, f.arbitrator.addr)
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
	return f
}

func (f *fixture) build(from *actor, txType types.TxType, payload any) *types.Transaction {
	f.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		f.t.Fatalf("marshal payload: %v", err)
	}
	tx := &types.Transaction{ChainID: testChainID, Type: txType, Nonce: from.nonce, Data: data}
	if err := tx.Sign(from.key.PrivateKey); err != nil {
		f.t.Fatalf("sign: %v", err)
	}
	return tx
}

// send applies a transaction and advances the sender's nonce on success.
func (f *fixture) send(from *actor, txType types.TxType, payload any) (*types.Receipt, error) {
	f.t.Helper()
	receipt, err := f.sp.ApplyTransaction(context.Background(), f.build(from, txType, payload))
	if err == nil {
		from.nonce++
	}
	return receipt, err
}

func (f *fixture) mustSend(from *actor, txType types.TxType, payload any) *types.Receipt {
	f.t.Helper()
	receipt, err := f.send(from, txType, payload)
	if err != nil {
		f.t.Fatalf("%s: %v", txType, err)
	}
	return receipt
}

func (f *fixture) balance(addr crypto.Address) uint64 {
	f.t.Helper()
	account, err := f.sp.Account(addr)
	if err != nil {
		f.t.Fatalf("account: %v", err)
	}
	return account.Balance
}

// openOrder registers both parties, publishes a listing and funds an escrow.
func (f *fixture) openOrder() crypto.RecordAddress {
	f.t.Helper()
	f.mustSend(f.client, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "alice", Role: "client"})
	f.mustSend(f.freelancer, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "bob", Role: "freelancer"})
	f.mustSend(f.freelancer, types.TxTypeCreateListing, types.CreateListingPayload{
		ListingID:     "logo",
		Title:         "Logo design",
		StandardPrice: 1_000_000,
	})
	receipt := f.mustSend(f.client, types.TxTypeCreateEscrow, types.CreateEscrowPayload{
		Freelancer: f.freelancer.addr.String(),
		ListingID:  "logo",
		OrderID:    "order-1",
		Package:    "standard",
	})
	addr, err := crypto.ParseRecordAddress(receipt.Record)
	if err != nil {
		f.t.Fatalf("escrow record: %v", err)
	}
	if addr != escrow.Address(f.client.addr, f.freelancer.addr, "order-1") {
		f.t.Fatalf("receipt record %s does not match derived escrow address", receipt.Record)
	}
	return addr
}

func hasEvent(receipt *types.Receipt, eventType string) bool {
	for _, evt := range receipt.Events {
		if evt.Type == eventType {
			return true
		}
	}
	return false
}

func TestApplyTransactionEscrowLifecycle(t *testing.T) {
	f := newFixture(t)
	escrowAddr := f.openOrder()

	if got := f.balance(f.client.addr); got != 9_000_000 {
		t.Fatalf("client balance after deposit = %d, want 9000000", got)
	}
	preview, err := f.sp.PreviewRelease(escrowAddr)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Distribution.Freelancer != 900_000 || preview.Distribution.Platform != 100_000 {
		t.Fatalf("unexpected preview %+v", preview.Distribution)
	}

	receipt := f.mustSend(f.client, types.TxTypeReleaseEscrow, types.EscrowRefPayload{Escrow: escrowAddr.Hex()})
	if !hasEvent(receipt, escrow.EventTypeEscrowReleased) {
		t.Fatalf("release receipt missing %s: %+v", escrow.EventTypeEscrowReleased, receipt.Events)
	}
	if receipt.Sender != f.client.addr.String() {
		t.Fatalf("receipt sender = %s", receipt.Sender)
	}
	if got := f.balance(f.freelancer.addr); got != 900_000 {
		t.Fatalf("freelancer balance = %d, want 900000", got)
	}
	if got := f.balance(f.collector); got != 100_000 {
		t.Fatalf("collector balance = %d, want 100000", got)
	}
	esc, err := f.sp.Escrow(escrowAddr)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if esc.Status != escrow.StatusCompleted {
		t.Fatalf("escrow status = %s", esc.Status)
	}
	if got := f.balance(esc.Vault()); got != 0 {
		t.Fatalf("vault balance = %d after release", got)
	}
	profile, err := f.sp.Profile(f.freelancer.addr)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.TotalTransactions != 1 {
		t.Fatalf("freelancer transactions = %d, want 1", profile.TotalTransactions)
	}
	l, err := f.sp.Listing(f.freelancer.addr, "logo")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if l.CompletedOrders != 1 {
		t.Fatalf("completed orders = %d, want 1", l.CompletedOrders)
	}
}

func TestApplyTransactionDisputeResolution(t *testing.T) {
	f := newFixture(t)
	escrowAddr := f.openOrder()

	receipt := f.mustSend(f.client, types.TxTypeOpenDispute, types.OpenDisputePayload{Escrow: escrowAddr.Hex(), Reason: "client unresponsive"})
	if receipt.Record != dispute.Address(escrowAddr).Hex() {
		t.Fatalf("dispute record = %s", receipt.Record)
	}
	payload := types.ResolveDisputePayload{Dispute: receipt.Record, Resolution: "split", ClientPercentage: 40}

	if _, err := f.send(f.client, types.TxTypeResolveDispute, payload); !errors.Is(err, coreerrors.ErrNotArbitrator) {
		t.Fatalf("expected ErrNotArbitrator, got %v", err)
	}
	if account, err := f.sp.Account(f.client.addr); err != nil || account.Nonce != 3 {
		t.Fatalf("rejected transaction must not consume a nonce: %+v %v", account, err)
	}

	resolved := f.mustSend(f.arbitrator, types.TxTypeResolveDispute, payload)
	if !hasEvent(resolved, dispute.EventTypeResolved) {
		t.Fatalf("resolution receipt missing %s", dispute.EventTypeResolved)
	}
	if got := f.balance(f.client.addr); got != 9_400_000 {
		t.Fatalf("client balance = %d, want 9400000", got)
	}
	if got := f.balance(f.freelancer.addr); got != 540_000 {
		t.Fatalf("freelancer balance = %d, want 540000", got)
	}
	if got := f.balance(f.collector); got != 60_000 {
		t.Fatalf("collector balance = %d, want 60000", got)
	}
	d, err := f.sp.Dispute(escrowAddr)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if d.Status != dispute.StatusResolvedSplit {
		t.Fatalf("dispute status = %s", d.Status)
	}
	if _, err := f.send(f.arbitrator, types.TxTypeResolveDispute, payload); !errors.Is(err, coreerrors.ErrDisputeNotOpen) {
		t.Fatalf("expected ErrDisputeNotOpen on second resolution, got %v", err)
	}
}

func TestApplyTransactionRejections(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture) *types.Transaction
		want  error
	}{
		{
			name: "replayed nonce",
			build: func(f *fixture) *types.Transaction {
				f.mustSend(f.client, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "alice", Role: "client"})
				f.client.nonce = 0
				return f.build(f.client, types.TxTypeUpgradePremium, struct{}{})
			},
			want: coreerrors.ErrInvalidNonce,
		},
		{
			name: "future nonce",
			build: func(f *fixture) *types.Transaction {
				f.client.nonce = 3
				return f.build(f.client, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "alice", Role: "client"})
			},
			want: coreerrors.ErrInvalidNonce,
		},
		{
			name: "wrong chain",
			build: func(f *fixture) *types.Transaction {
				tx := &types.Transaction{ChainID: testChainID + 1, Type: types.TxTypeUpgradePremium, Data: []byte("{}")}
				if err := tx.Sign(f.client.key.PrivateKey); err != nil {
					f.t.Fatalf("sign: %v", err)
				}
				return tx
			},
			want: coreerrors.ErrInvalidChainID,
		},
		{
			name: "unsigned",
			build: func(f *fixture) *types.Transaction {
				return &types.Transaction{ChainID: testChainID, Type: types.TxTypeUpgradePremium, Data: []byte("{}")}
			},
			want: coreerrors.ErrInvalidSignature,
		},
		{
			name: "unknown type",
			build: func(f *fixture) *types.Transaction {
				return f.build(f.client, types.TxType(0x7f), struct{}{})
			},
			want: coreerrors.ErrUnsupportedTransaction,
		},
		{
			name: "malformed payload",
			build: func(f *fixture) *types.Transaction {
				tx := &types.Transaction{ChainID: testChainID, Type: types.TxTypeRegisterIdentity, Data: []byte("{not json")}
				if err := tx.Sign(f.client.key.PrivateKey); err != nil {
					f.t.Fatalf("sign: %v", err)
				}
				return tx
			},
			want: coreerrors.ErrInvalidPayload,
		},
		{
			name: "bad freelancer address",
			build: func(f *fixture) *types.Transaction {
				return f.build(f.client, types.TxTypeCreateEscrow, types.CreateEscrowPayload{Freelancer: "nope", ListingID: "logo", OrderID: "o", Package: "standard"})
			},
			want: coreerrors.ErrInvalidPayload,
		},
		{
			name: "unknown tier",
			build: func(f *fixture) *types.Transaction {
				return f.build(f.client, types.TxTypeCreateEscrow, types.CreateEscrowPayload{Freelancer: f.freelancer.addr.String(), ListingID: "logo", OrderID: "o", Package: "gold"})
			},
			want: coreerrors.ErrInvalidTier,
		},
		{
			name: "paused module",
			build: func(f *fixture) *types.Transaction {
				f.pauses.Set(common.ModuleIdentity, true)
				return f.build(f.client, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "alice", Role: "client"})
			},
			want: coreerrors.ErrModulePaused,
		},
		{
			name: "release unknown escrow",
			build: func(f *fixture) *types.Transaction {
				return f.build(f.client, types.TxTypeReleaseEscrow, types.EscrowRefPayload{Escrow: escrow.Address(f.client.addr, f.freelancer.addr, "missing").Hex()})
			},
			want: coreerrors.ErrEscrowNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tx := tc.build(f)
			before := f.balance(f.client.addr)
			account, err := f.sp.Account(f.client.addr)
			if err != nil {
				t.Fatalf("account: %v", err)
			}
			nonce := account.Nonce

			receipt, err := f.sp.ApplyTransaction(context.Background(), tx)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if receipt != nil {
				t.Fatalf("rejected transaction returned a receipt")
			}
			account, err = f.sp.Account(f.client.addr)
			if err != nil {
				t.Fatalf("account: %v", err)
			}
			if account.Nonce != nonce || f.balance(f.client.addr) != before {
				t.Fatalf("rejected transaction changed the sender account")
			}
		})
	}
}

func TestApplyTransactionFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.mustSend(f.client, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "alice", Role: "client"})
	f.mustSend(f.freelancer, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: "bob", Role: "freelancer"})
	f.mustSend(f.freelancer, types.TxTypeCreateListing, types.CreateListingPayload{ListingID: "mural", Title: "Mural", StandardPrice: 50_000_000})

	_, err := f.send(f.client, types.TxTypeCreateEscrow, types.CreateEscrowPayload{
		Freelancer: f.freelancer.addr.String(),
		ListingID:  "mural",
		OrderID:    "order-1",
		Package:    "standard",
	})
	if !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(f.client.addr); got != 10_000_000 {
		t.Fatalf("client balance = %d after failed deposit", got)
	}
	if _, err := f.sp.Escrow(escrow.Address(f.client.addr, f.freelancer.addr, "order-1")); !errors.Is(err, coreerrors.ErrEscrowNotFound) {
		t.Fatalf("failed create must not persist an escrow, got %v", err)
	}
	// The nonce was not consumed, so the next transaction reuses it.
	f.mustSend(f.client, types.TxTypeUpgradePremium, struct{}{})
	profile, err := f.sp.Profile(f.client.addr)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !profile.Premium {
		t.Fatalf("upgrade did not apply")
	}
}

func TestApplyTransactionZeroFeeRelease(t *testing.T) {
	f := newFixtureWithFees(t, 0, 0)
	escrowAddr := f.openOrder()

	f.mustSend(f.client, types.TxTypeReleaseEscrow, types.EscrowRefPayload{Escrow: escrowAddr.Hex()})
	if got := f.balance(f.freelancer.addr); got != 1_000_000 {
		t.Fatalf("freelancer balance = %d, want the full deposit", got)
	}
	if got := f.balance(f.collector); got != 0 {
		t.Fatalf("collector balance = %d with a zero fee rate", got)
	}
}

func TestApplyTransactionRejectsWideClientPercentage(t *testing.T) {
	f := newFixture(t)
	escrowAddr := f.openOrder()
	receipt := f.mustSend(f.client, types.TxTypeOpenDispute, types.OpenDisputePayload{Escrow: escrowAddr.Hex(), Reason: "missed deadline"})

	for _, pct := range []uint64{101, 255, 256, 1_000} {
		payload := types.ResolveDisputePayload{Dispute: receipt.Record, Resolution: "split", ClientPercentage: pct}
		if _, err := f.send(f.arbitrator, types.TxTypeResolveDispute, payload); !errors.Is(err, coreerrors.ErrInvalidClientPercentage) {
			t.Fatalf("client percentage %d: expected ErrInvalidClientPercentage, got %v", pct, err)
		}
	}
}

func TestApplyTransactionConcurrentOrdersOnOneListing(t *testing.T) {
	f := newFixture(t)
	f.openOrder()

	const workers = 32
	clients := make([]*actor, workers)
	for i := range clients {
		c := newActor(t)
		if err := f.sp.Store().Update([][]byte{state.AccountKey(c.addr)}, func(tx *state.Tx) error {
			return tx.Credit(c.addr, 2_000_000)
		}); err != nil {
			t.Fatalf("fund client %d: %v", i, err)
		}
		f.mustSend(c, types.TxTypeRegisterIdentity, types.RegisterIdentityPayload{Username: fmt.Sprintf("buyer%02d", i), Role: "client"})
		clients[i] = c
	}

	txs := make([]*types.Transaction, workers)
	for i, c := range clients {
		txs[i] = f.build(c, types.TxTypeCreateEscrow, types.CreateEscrowPayload{
			Freelancer: f.freelancer.addr.String(),
			ListingID:  "logo",
			OrderID:    fmt.Sprintf("order-%02d", i),
			Package:    "standard",
		})
	}
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, tx := range txs {
		wg.Add(1)
		go func(tx *types.Transaction) {
			defer wg.Done()
			if _, err := f.sp.ApplyTransaction(context.Background(), tx); err != nil {
				errs <- err
			}
		}(tx)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create_escrow: %v", err)
	}

	l, err := f.sp.Listing(f.freelancer.addr, "logo")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if l.TotalOrders != workers+1 {
		t.Fatalf("total orders = %d, want %d", l.TotalOrders, workers+1)
	}
}

func TestNewStateProcessorRejectsBadFeeRates(t *testing.T) {
	store := state.NewStore(storage.NewMemDB())
	if _, err := NewStateProcessor(store, Options{StandardFeeBps: 10_001}); !errors.Is(err, coreerrors.ErrInvalidFeeRate) {
		t.Fatalf("expected ErrInvalidFeeRate, got %v", err)
	}
	if _, err := NewStateProcessor(nil, Options{}); err == nil {
		t.Fatalf("expected nil store to be rejected")
	}
}
