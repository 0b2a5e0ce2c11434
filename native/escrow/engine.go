package escrow

import (
	"errors"
	"time"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/identity"
	"limitlesswork/native/listing"
)

var errNilCollector = errors.New("escrow engine: fee collector not configured")

// State is the slice of ledger state the engine reads and writes.
type State interface {
	Record(key []byte) ([]byte, bool, error)
	PutRecord(key, data []byte) error
	Balance(addr crypto.Address) (uint64, error)
	Transfer(from, to crypto.Address, amount uint64) error
	Emit(events.Event)
}

// Profiles is the identity registry view the engine needs.
type Profiles interface {
	Profile(st identity.State, authority crypto.Address) (*identity.Profile, error)
	IncrementTransactions(st identity.State, authority crypto.Address) error
}

// Listings is the listing registry view the engine needs.
type Listings interface {
	Get(st listing.State, authority crypto.Address, listingID string) (*listing.Listing, error)
	IncrementTotalOrders(st listing.State, l *listing.Listing) error
	IncrementCompletedOrders(st listing.State, l *listing.Listing) error
}

// Engine owns escrow records and their custody vaults.
type Engine struct {
	profiles       Profiles
	listings       Listings
	feeCollector   crypto.Address
	standardFeeBps uint16
	premiumFeeBps  uint16
	nowFn          func() int64
}

// NewEngine creates an escrow engine with the default fee schedule.
func NewEngine(profiles Profiles, listings Listings) *Engine {
	return &Engine{
		profiles:       profiles,
		listings:       listings,
		standardFeeBps: DefaultStandardFeeBps,
		premiumFeeBps:  DefaultPremiumFeeBps,
		nowFn:          func() int64 { return time.Now().Unix() },
	}
}

// SetFeeCollector configures the address that receives platform fees.
func (e *Engine) SetFeeCollector(addr crypto.Address) { e.feeCollector = addr }

// FeeCollector returns the configured fee recipient.
func (e *Engine) FeeCollector() crypto.Address { return e.feeCollector }

// SetFeeRates configures the rates captured by newly created escrows.
func (e *Engine) SetFeeRates(standardBps, premiumBps uint16) error {
	if err := ValidateFeeRate(standardBps); err != nil {
		return err
	}
	if err := ValidateFeeRate(premiumBps); err != nil {
		return err
	}
	e.standardFeeBps = standardBps
	e.premiumFeeBps = premiumBps
	return nil
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// CreateParams describes a new escrow.
type CreateParams struct {
	Freelancer crypto.Address
	ListingID  string
	OrderID    string
	Package    listing.Tier
	Referrer   *crypto.Address
}

// CreateKeys lists the records Create writes.
func CreateKeys(client crypto.Address, params CreateParams) [][]byte {
	addr := Address(client, params.Freelancer, params.OrderID)
	return [][]byte{
		Key(addr),
		state.AccountKey(client),
		state.AccountKey(VaultAccount(addr)),
		listing.Key(params.Freelancer, params.ListingID),
	}
}

// ReleaseKeys lists the records Release writes for esc.
func (e *Engine) ReleaseKeys(esc *Escrow) [][]byte {
	keys := e.payoutKeys(esc)
	return append(keys, listing.Key(esc.Freelancer, esc.ListingID))
}

// SettleKeys lists the records an arbitrated settlement of esc writes.
func (e *Engine) SettleKeys(esc *Escrow) [][]byte { return e.payoutKeys(esc) }

func (e *Engine) payoutKeys(esc *Escrow) [][]byte {
	keys := [][]byte{
		Key(esc.Address),
		state.AccountKey(esc.Vault()),
		state.AccountKey(esc.Client),
		state.AccountKey(esc.Freelancer),
		state.AccountKey(e.feeCollector),
		identity.ProfileKey(esc.Client),
		identity.ProfileKey(esc.Freelancer),
	}
	if esc.Referrer != nil {
		keys = append(keys, state.AccountKey(*esc.Referrer))
	}
	return keys
}

// Create locks the price of the chosen package in a new custody vault.
func (e *Engine) Create(st State, client crypto.Address, params CreateParams) (*Escrow, error) {
	if params.OrderID == "" || len(params.OrderID) > MaxOrderIDLength {
		return nil, coreerrors.ErrOrderIDInvalid.Withf("%d bytes", len(params.OrderID))
	}
	if client == params.Freelancer {
		return nil, coreerrors.ErrInvalidEscrowParticipant
	}
	if params.Referrer != nil && (*params.Referrer == client || *params.Referrer == params.Freelancer || params.Referrer.IsZero()) {
		return nil, coreerrors.ErrInvalidReferrer
	}
	if !params.Package.Valid() {
		return nil, coreerrors.ErrInvalidTier.Withf("%d", params.Package)
	}
	if _, err := e.profiles.Profile(st, client); err != nil {
		return nil, err
	}
	freelancer, err := e.profiles.Profile(st, params.Freelancer)
	if err != nil {
		return nil, err
	}
	if !freelancer.IsFreelancer() {
		return nil, coreerrors.ErrNotFreelancer.Withf("%s", params.Freelancer)
	}
	l, err := e.listings.Get(st, params.Freelancer, params.ListingID)
	if err != nil {
		return nil, err
	}
	if !l.Active {
		return nil, coreerrors.ErrListingInactive.Withf("%s", params.ListingID)
	}
	price, err := l.PriceFor(params.Package)
	if err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, coreerrors.ErrInvalidPrice
	}

	addr := Address(client, params.Freelancer, params.OrderID)
	if _, ok, err := st.Record(Key(addr)); err != nil {
		return nil, err
	} else if ok {
		return nil, coreerrors.ErrEscrowExists.Withf("%s", params.OrderID)
	}
	esc := &Escrow{
		Address:        addr,
		Client:         client,
		Freelancer:     params.Freelancer,
		Listing:        listing.Address(params.Freelancer, params.ListingID),
		ListingID:      params.ListingID,
		OrderID:        params.OrderID,
		DepositAmount:  price,
		Package:        params.Package,
		StandardFeeBps: e.standardFeeBps,
		PremiumFeeBps:  e.premiumFeeBps,
		Status:         StatusActive,
		CreatedAt:      e.now(),
	}
	if params.Referrer != nil {
		ref := *params.Referrer
		esc.Referrer = &ref
	}
	if err := st.Transfer(client, esc.Vault(), price); err != nil {
		return nil, err
	}
	if held, err := st.Balance(esc.Vault()); err != nil {
		return nil, err
	} else if held != price {
		return nil, coreerrors.ErrDistributionMismatch.Withf("vault holds %d after deposit of %d", held, price)
	}
	if err := e.store(st, esc); err != nil {
		return nil, err
	}
	if err := e.listings.IncrementTotalOrders(st, l); err != nil {
		return nil, err
	}
	st.Emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Get loads the escrow at addr.
func (e *Engine) Get(st State, addr crypto.RecordAddress) (*Escrow, error) {
	data, ok, err := st.Record(Key(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.ErrEscrowNotFound.Withf("%s", addr)
	}
	esc, err := decodeEscrow(data)
	if err != nil {
		return nil, err
	}
	if esc.Address != addr {
		return nil, coreerrors.ErrEscrowNotFound.Withf("record at %s names %s", addr, esc.Address)
	}
	return esc, nil
}

// PreviewRelease computes what Release would pay today.
func (e *Engine) PreviewRelease(st State, addr crypto.RecordAddress) (*Escrow, Distribution, error) {
	esc, err := e.Get(st, addr)
	if err != nil {
		return nil, Distribution{}, err
	}
	d, err := e.releaseDistribution(st, esc)
	return esc, d, err
}

func (e *Engine) releaseDistribution(st State, esc *Escrow) (Distribution, error) {
	client, err := e.profiles.Profile(st, esc.Client)
	if err != nil {
		return Distribution{}, err
	}
	return ComputeRelease(esc.DepositAmount, esc.FeeRate(client.Premium), esc.Referrer != nil)
}

// FeeRateFor returns the rate the client's current premium flag selects.
func (e *Engine) FeeRateFor(st State, esc *Escrow) (uint16, error) {
	client, err := e.profiles.Profile(st, esc.Client)
	if err != nil {
		return 0, err
	}
	return esc.FeeRate(client.Premium), nil
}

// Release pays the freelancer on the client's approval and drains the vault.
func (e *Engine) Release(st State, caller crypto.Address, addr crypto.RecordAddress) (*Escrow, Distribution, error) {
	esc, err := e.Get(st, addr)
	if err != nil {
		return nil, Distribution{}, err
	}
	if caller != esc.Client {
		return nil, Distribution{}, coreerrors.ErrNotEscrowClient
	}
	if esc.Status != StatusActive {
		return nil, Distribution{}, coreerrors.ErrInvalidStatusTransition.Withf("release from %s", esc.Status)
	}
	d, err := e.releaseDistribution(st, esc)
	if err != nil {
		return nil, Distribution{}, err
	}
	if err := e.distribute(st, esc, d); err != nil {
		return nil, Distribution{}, err
	}
	if err := e.finish(st, esc, StatusCompleted); err != nil {
		return nil, Distribution{}, err
	}
	l, err := e.listings.Get(st, esc.Freelancer, esc.ListingID)
	if err != nil {
		return nil, Distribution{}, err
	}
	if err := e.listings.IncrementCompletedOrders(st, l); err != nil {
		return nil, Distribution{}, err
	}
	st.Emit(NewReleasedEvent(esc, d))
	return esc.Clone(), d, nil
}

// Freeze moves an active escrow into Disputed on the client's request. A
// given escrow can be frozen at most once.
func (e *Engine) Freeze(st State, caller crypto.Address, addr crypto.RecordAddress) (*Escrow, error) {
	esc, err := e.Get(st, addr)
	if err != nil {
		return nil, err
	}
	if caller != esc.Client {
		return nil, coreerrors.ErrNotEscrowClient
	}
	if esc.Status == StatusDisputed {
		return nil, coreerrors.ErrAlreadyInDispute
	}
	if esc.Status != StatusActive {
		return nil, coreerrors.ErrInvalidEscrowStatus.Withf("dispute from %s", esc.Status)
	}
	if esc.HasDispute {
		return nil, coreerrors.ErrDisputeAlreadyExists
	}
	esc.Status = StatusDisputed
	esc.HasDispute = true
	if err := e.store(st, esc); err != nil {
		return nil, err
	}
	st.Emit(NewDisputedEvent(esc))
	return esc.Clone(), nil
}

// Settle applies an arbitrated distribution to a disputed escrow and moves it
// to status, which must be Refunded or Completed.
func (e *Engine) Settle(st State, addr crypto.RecordAddress, d Distribution, status Status) (*Escrow, error) {
	if status != StatusRefunded && status != StatusCompleted {
		return nil, coreerrors.ErrInvalidStatusTransition.Withf("settle to %s", status)
	}
	esc, err := e.Get(st, addr)
	if err != nil {
		return nil, err
	}
	if esc.Status != StatusDisputed {
		return nil, coreerrors.ErrInvalidEscrowStatus.Withf("settle from %s", esc.Status)
	}
	if d.Referrer != 0 {
		return nil, coreerrors.ErrDistributionMismatch.Withf("arbitrated payouts carry no referrer share")
	}
	if err := e.distribute(st, esc, d); err != nil {
		return nil, err
	}
	if err := e.finish(st, esc, status); err != nil {
		return nil, err
	}
	st.Emit(NewSettledEvent(esc, d))
	return esc.Clone(), nil
}

// distribute drains the vault according to d. The shares must add up to the
// deposit, the vault must hold exactly the deposit and must end at zero.
func (e *Engine) distribute(st State, esc *Escrow, d Distribution) error {
	total, err := d.Total()
	if err != nil {
		return err
	}
	if total != esc.DepositAmount {
		return coreerrors.ErrDistributionMismatch.Withf("shares total %d, deposit %d", total, esc.DepositAmount)
	}
	if d.Referrer > 0 && esc.Referrer == nil {
		return coreerrors.ErrDistributionMismatch.Withf("referrer share without referrer")
	}
	if d.Platform > 0 && e.feeCollector.IsZero() {
		return errNilCollector
	}
	vault := esc.Vault()
	held, err := st.Balance(vault)
	if err != nil {
		return err
	}
	if held != esc.DepositAmount {
		return coreerrors.ErrDistributionMismatch.Withf("vault holds %d, deposit %d", held, esc.DepositAmount)
	}
	if err := st.Transfer(vault, esc.Client, d.Client); err != nil {
		return err
	}
	if err := st.Transfer(vault, esc.Freelancer, d.Freelancer); err != nil {
		return err
	}
	if err := st.Transfer(vault, e.feeCollector, d.Platform); err != nil {
		return err
	}
	if d.Referrer > 0 {
		if err := st.Transfer(vault, *esc.Referrer, d.Referrer); err != nil {
			return err
		}
	}
	left, err := st.Balance(vault)
	if err != nil {
		return err
	}
	if left != 0 {
		return coreerrors.ErrDistributionMismatch.Withf("vault left with %d", left)
	}
	return nil
}

func (e *Engine) finish(st State, esc *Escrow, status Status) error {
	now := e.now()
	esc.Status = status
	esc.CompletedAt = &now
	if err := e.store(st, esc); err != nil {
		return err
	}
	if err := e.profiles.IncrementTransactions(st, esc.Client); err != nil {
		return err
	}
	return e.profiles.IncrementTransactions(st, esc.Freelancer)
}

func (e *Engine) store(st State, esc *Escrow) error {
	return st.PutRecord(Key(esc.Address), encodeEscrow(esc))
}
