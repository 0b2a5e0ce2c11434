package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/core/state"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/native/dispute"
	"limitlesswork/native/escrow"
	"limitlesswork/native/identity"
	"limitlesswork/native/listing"
	"limitlesswork/observability/metrics"
	"limitlesswork/observability/otel"
)

// Options configures a StateProcessor. Fee rates are applied as given, so a
// zero rate charges no platform fee.
type Options struct {
	ChainID        uint64
	FeeCollector   crypto.Address
	StandardFeeBps uint16
	PremiumFeeBps  uint16
	Pauses         common.PauseView
	Metrics        *metrics.MarketMetrics
	Logger         *slog.Logger
	// Now overrides the engines' wall clock.
	Now func() int64
}

// StateProcessor verifies signed transactions and applies them to the
// ledger, one atomic state update per transaction.
type StateProcessor struct {
	store    *state.Store
	chainID  uint64
	pauses   common.PauseView
	metrics  *metrics.MarketMetrics
	logger   *slog.Logger
	tracer   trace.Tracer
	Identity *identity.Engine
	Listings *listing.Engine
	Escrows  *escrow.Engine
	Disputes *dispute.Engine
}

// NewStateProcessor wires the marketplace engines over store.
func NewStateProcessor(store *state.Store, opts Options) (*StateProcessor, error) {
	if store == nil {
		return nil, fmt.Errorf("state processor: store required")
	}
	profiles := identity.NewEngine()
	listings := listing.NewEngine(profiles)
	escrows := escrow.NewEngine(profiles, listings)
	disputes := dispute.NewEngine(escrows)

	if err := escrows.SetFeeRates(opts.StandardFeeBps, opts.PremiumFeeBps); err != nil {
		return nil, err
	}
	escrows.SetFeeCollector(opts.FeeCollector)
	if opts.Now != nil {
		profiles.SetNowFunc(opts.Now)
		listings.SetNowFunc(opts.Now)
		escrows.SetNowFunc(opts.Now)
		disputes.SetNowFunc(opts.Now)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StateProcessor{
		store:    store,
		chainID:  opts.ChainID,
		pauses:   opts.Pauses,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "processor"),
		tracer:   otel.Tracer("limitlesswork/core"),
		Identity: profiles,
		Listings: listings,
		Escrows:  escrows,
		Disputes: disputes,
	}, nil
}

// Store exposes the underlying ledger state.
func (sp *StateProcessor) Store() *state.Store { return sp.store }

// ChainID returns the chain identifier transactions must carry.
func (sp *StateProcessor) ChainID() uint64 { return sp.chainID }

// outcome is what a successful handler reports back for the receipt and
// metrics.
type outcome struct {
	record     string
	payout     *escrow.Distribution
	resolution string
}

// plan is a prepared operation: the records it declares and the mutation to
// run while holding them.
type plan struct {
	keys  [][]byte
	apply func(stx *state.Tx) (outcome, error)
}

func moduleFor(txType types.TxType) string {
	switch txType {
	case types.TxTypeRegisterIdentity, types.TxTypeUpgradePremium:
		return common.ModuleIdentity
	case types.TxTypeCreateListing, types.TxTypeUpdateListing:
		return common.ModuleListing
	case types.TxTypeCreateEscrow, types.TxTypeReleaseEscrow:
		return common.ModuleEscrow
	default:
		return common.ModuleDispute
	}
}

// ApplyTransaction verifies tx and applies it. The receipt lists the events
// the transaction committed. Any error leaves state untouched, including the
// sender's nonce.
func (sp *StateProcessor) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, coreerrors.ErrInvalidPayload.Withf("nil transaction")
	}
	_, span := sp.tracer.Start(ctx, "market.apply_transaction", trace.WithAttributes(
		attribute.String("tx.type", tx.Type.String()),
		attribute.Int64("tx.nonce", int64(tx.Nonce)),
	))
	defer span.End()

	receipt, err := sp.apply(tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, coreerrors.CodeOf(err))
		sp.metrics.ObserveRejected(tx.Type.String(), coreerrors.KindOf(err).String())
		sp.logger.Debug("transaction rejected", "type", tx.Type.String(), "code", coreerrors.CodeOf(err), "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("tx.sender", receipt.Sender))
	sp.metrics.ObserveTransaction(tx.Type.String())
	return receipt, nil
}

func (sp *StateProcessor) apply(tx *types.Transaction) (*types.Receipt, error) {
	if !tx.Type.Valid() {
		return nil, coreerrors.ErrUnsupportedTransaction.Withf("%s", tx.Type)
	}
	if tx.ChainID != sp.chainID {
		return nil, coreerrors.ErrInvalidChainID.Withf("got %d, want %d", tx.ChainID, sp.chainID)
	}
	sender, err := tx.From()
	if err != nil {
		return nil, coreerrors.ErrInvalidSignature.Withf("%v", err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	if err := common.Guard(sp.pauses, moduleFor(tx.Type)); err != nil {
		return nil, err
	}
	p, err := sp.prepare(tx.Type, sender, tx.Data)
	if err != nil {
		return nil, err
	}

	var (
		result    outcome
		committed []events.Event
	)
	keys := append(p.keys, state.AccountKey(sender))
	err = sp.store.Update(keys, func(stx *state.Tx) error {
		account, err := stx.Account(sender)
		if err != nil {
			return err
		}
		if account.Nonce != tx.Nonce {
			return coreerrors.ErrInvalidNonce.Withf("got %d, want %d", tx.Nonce, account.Nonce)
		}
		result, err = p.apply(stx)
		if err != nil {
			return err
		}
		if err := stx.IncrementNonce(sender); err != nil {
			return err
		}
		committed = stx.Events()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sp.observe(tx.Type, result)

	receipt := &types.Receipt{
		TxHash: fmt.Sprintf("0x%x", hash),
		Type:   tx.Type.String(),
		Sender: sender.String(),
		Record: result.record,
		Events: make([]*types.Event, 0, len(committed)),
	}
	for _, evt := range committed {
		if rendered := events.Render(evt); rendered != nil {
			receipt.Events = append(receipt.Events, rendered)
		}
	}
	sp.logger.Info("transaction applied",
		"type", receipt.Type,
		"sender", receipt.Sender,
		"record", receipt.Record,
		"events", len(receipt.Events))
	return receipt, nil
}

func (sp *StateProcessor) observe(txType types.TxType, result outcome) {
	switch txType {
	case types.TxTypeCreateEscrow:
		sp.metrics.ObserveEscrowCreated()
	case types.TxTypeReleaseEscrow:
		sp.metrics.ObserveRelease()
	case types.TxTypeOpenDispute:
		sp.metrics.ObserveDisputeOpened()
	case types.TxTypeResolveDispute:
		sp.metrics.ObserveResolution(result.resolution)
	}
	if d := result.payout; d != nil {
		sp.metrics.ObservePayout(d.Client, d.Freelancer, d.Platform, d.Referrer)
	}
}

func decodePayload(data []byte, dst any) error {
	if len(data) == 0 {
		return coreerrors.ErrInvalidPayload.Withf("empty payload")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return coreerrors.ErrInvalidPayload.Withf("%v", err)
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, coreerrors.ErrInvalidPayload.Withf("%s: %v", field, err)
	}
	return addr, nil
}

func parseRecord(field, value string) (crypto.RecordAddress, error) {
	addr, err := crypto.ParseRecordAddress(value)
	if err != nil {
		return crypto.RecordAddress{}, coreerrors.ErrInvalidPayload.Withf("%s: %v", field, err)
	}
	return addr, nil
}

// prepare decodes the payload and computes the record set the operation
// declares. Release and resolve read the escrow first to learn its parties,
// which never change once written.
func (sp *StateProcessor) prepare(txType types.TxType, sender crypto.Address, data []byte) (*plan, error) {
	switch txType {
	case types.TxTypeRegisterIdentity:
		return sp.prepareRegister(sender, data)
	case types.TxTypeUpgradePremium:
		return &plan{
			keys:  [][]byte{identity.ProfileKey(sender)},
			apply: func(stx *state.Tx) (outcome, error) {
				if _, err := sp.Identity.UpgradeToPremium(stx, sender); err != nil {
					return outcome{}, err
				}
				return outcome{record: identity.ProfileAddress(sender).Hex()}, nil
			},
		}, nil
	case types.TxTypeCreateListing:
		return sp.prepareCreateListing(sender, data)
	case types.TxTypeUpdateListing:
		return sp.prepareUpdateListing(sender, data)
	case types.TxTypeCreateEscrow:
		return sp.prepareCreateEscrow(sender, data)
	case types.TxTypeReleaseEscrow:
		return sp.prepareRelease(sender, data)
	case types.TxTypeOpenDispute:
		return sp.prepareOpenDispute(sender, data)
	case types.TxTypeResolveDispute:
		return sp.prepareResolve(sender, data)
	default:
		return nil, coreerrors.ErrUnsupportedTransaction.Withf("%s", txType)
	}
}

func (sp *StateProcessor) prepareRegister(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.RegisterIdentityPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	role, err := identity.ParseRole(payload.Role)
	if err != nil {
		return nil, err
	}
	return &plan{
		keys:  identity.RegisterKeys(sender, payload.Username),
		apply: func(stx *state.Tx) (outcome, error) {
			profile, err := sp.Identity.Register(stx, sender, payload.Username, role)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: identity.ProfileAddress(profile.Authority).Hex()}, nil
		},
	}, nil
}

func (sp *StateProcessor) prepareCreateListing(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.CreateListingPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	params := listing.CreateParams{
		ListingID:     payload.ListingID,
		Title:         payload.Title,
		Description:   payload.Description,
		Category:      payload.Category,
		StandardPrice: payload.StandardPrice,
		DeluxePrice:   payload.DeluxePrice,
		PremiumPrice:  payload.PremiumPrice,
	}
	return &plan{
		keys:  [][]byte{listing.Key(sender, payload.ListingID)},
		apply: func(stx *state.Tx) (outcome, error) {
			l, err := sp.Listings.Create(stx, sender, params)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: listing.Address(l.Authority, l.ListingID).Hex()}, nil
		},
	}, nil
}

func (sp *StateProcessor) prepareUpdateListing(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.UpdateListingPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	params := listing.UpdateParams{
		Title:         payload.Title,
		Description:   payload.Description,
		Category:      payload.Category,
		StandardPrice: payload.StandardPrice,
		DeluxePrice:   payload.DeluxePrice,
		PremiumPrice:  payload.PremiumPrice,
		Active:        payload.Active,
	}
	return &plan{
		keys:  [][]byte{listing.Key(sender, payload.ListingID)},
		apply: func(stx *state.Tx) (outcome, error) {
			l, err := sp.Listings.Update(stx, sender, payload.ListingID, params)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: listing.Address(l.Authority, l.ListingID).Hex()}, nil
		},
	}, nil
}

func (sp *StateProcessor) prepareCreateEscrow(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.CreateEscrowPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	freelancer, err := parseAddress("freelancer", payload.Freelancer)
	if err != nil {
		return nil, err
	}
	tier, err := listing.ParseTier(payload.Package)
	if err != nil {
		return nil, err
	}
	params := escrow.CreateParams{
		Freelancer: freelancer,
		ListingID:  payload.ListingID,
		OrderID:    payload.OrderID,
		Package:    tier,
	}
	if payload.Referrer != "" {
		ref, err := parseAddress("referrer", payload.Referrer)
		if err != nil {
			return nil, err
		}
		params.Referrer = &ref
	}
	return &plan{
		keys:  escrow.CreateKeys(sender, params),
		apply: func(stx *state.Tx) (outcome, error) {
			esc, err := sp.Escrows.Create(stx, sender, params)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: esc.Address.Hex()}, nil
		},
	}, nil
}

// loadEscrow reads committed escrow state outside any update.
func (sp *StateProcessor) loadEscrow(addr crypto.RecordAddress) (*escrow.Escrow, error) {
	var esc *escrow.Escrow
	err := sp.store.View(func(stx *state.Tx) error {
		var err error
		esc, err = sp.Escrows.Get(stx, addr)
		return err
	})
	return esc, err
}

func (sp *StateProcessor) prepareRelease(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.EscrowRefPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	addr, err := parseRecord("escrow", payload.Escrow)
	if err != nil {
		return nil, err
	}
	esc, err := sp.loadEscrow(addr)
	if err != nil {
		return nil, err
	}
	return &plan{
		keys:  sp.Escrows.ReleaseKeys(esc),
		apply: func(stx *state.Tx) (outcome, error) {
			released, d, err := sp.Escrows.Release(stx, sender, addr)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: released.Address.Hex(), payout: &d}, nil
		},
	}, nil
}

func (sp *StateProcessor) prepareOpenDispute(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.OpenDisputePayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	addr, err := parseRecord("escrow", payload.Escrow)
	if err != nil {
		return nil, err
	}
	return &plan{
		keys:  dispute.OpenKeys(addr),
		apply: func(stx *state.Tx) (outcome, error) {
			d, err := sp.Disputes.Open(stx, sender, addr, payload.Reason)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: d.Address.Hex()}, nil
		},
	}, nil
}

func (sp *StateProcessor) prepareResolve(sender crypto.Address, data []byte) (*plan, error) {
	var payload types.ResolveDisputePayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	addr, err := parseRecord("dispute", payload.Dispute)
	if err != nil {
		return nil, err
	}
	resolution, err := dispute.ParseResolution(payload.Resolution)
	if err != nil {
		return nil, err
	}
	var d *dispute.Dispute
	if err := sp.store.View(func(stx *state.Tx) error {
		var err error
		d, err = sp.Disputes.Get(stx, addr)
		return err
	}); err != nil {
		return nil, err
	}
	esc, err := sp.loadEscrow(d.Escrow)
	if err != nil {
		return nil, err
	}
	params := dispute.ResolveParams{
		Resolution:       resolution,
		ClientPercentage: payload.ClientPercentage,
		AdminNotes:       payload.AdminNotes,
	}
	return &plan{
		keys:  sp.Disputes.ResolveKeys(esc),
		apply: func(stx *state.Tx) (outcome, error) {
			resolved, payout, err := sp.Disputes.Resolve(stx, sender, addr, params)
			if err != nil {
				return outcome{}, err
			}
			return outcome{record: resolved.Address.Hex(), payout: &payout, resolution: resolved.Status.String()}, nil
		},
	}, nil
}
