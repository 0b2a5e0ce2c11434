package dispute

import (
	"time"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/native/escrow"
)

// State extends the escrow view with role membership checks.
type State interface {
	escrow.State
	HasRole(role string, addr crypto.Address) (bool, error)
}

// Escrows is the escrow engine surface disputes drive.
type Escrows interface {
	Get(st escrow.State, addr crypto.RecordAddress) (*escrow.Escrow, error)
	Freeze(st escrow.State, caller crypto.Address, addr crypto.RecordAddress) (*escrow.Escrow, error)
	Settle(st escrow.State, addr crypto.RecordAddress, d escrow.Distribution, status escrow.Status) (*escrow.Escrow, error)
	FeeRateFor(st escrow.State, esc *escrow.Escrow) (uint16, error)
	SettleKeys(esc *escrow.Escrow) [][]byte
}

// Engine opens and arbitrates disputes over escrows.
type Engine struct {
	escrows Escrows
	nowFn   func() int64
}

// NewEngine wires the dispute engine to the escrow engine.
func NewEngine(escrows Escrows) *Engine {
	return &Engine{escrows: escrows, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetNowFunc overrides the time source used by the engine.
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

// OpenKeys lists the records Open writes for the escrow at escrowAddr.
func OpenKeys(escrowAddr crypto.RecordAddress) [][]byte {
	return [][]byte{Key(Address(escrowAddr)), escrow.Key(escrowAddr)}
}

// ResolveKeys lists the records Resolve writes for the dispute over esc.
func (e *Engine) ResolveKeys(esc *escrow.Escrow) [][]byte {
	return append([][]byte{Key(Address(esc.Address))}, e.escrows.SettleKeys(esc)...)
}

// Open freezes the escrow and records the client's complaint.
func (e *Engine) Open(st State, caller crypto.Address, escrowAddr crypto.RecordAddress, reason string) (*Dispute, error) {
	text, err := common.BoundedText(reason, MaxReasonLength, coreerrors.ErrReasonTooLong)
	if err != nil {
		return nil, err
	}
	addr := Address(escrowAddr)
	if _, ok, err := st.Record(Key(addr)); err != nil {
		return nil, err
	} else if ok {
		return nil, coreerrors.ErrDisputeAlreadyExists
	}
	esc, err := e.escrows.Freeze(st, caller, escrowAddr)
	if err != nil {
		return nil, err
	}
	d := &Dispute{
		Address:    addr,
		Escrow:     esc.Address,
		Client:     esc.Client,
		Freelancer: esc.Freelancer,
		Reason:     text,
		Status:     StatusOpen,
		CreatedAt:  e.now(),
	}
	if err := st.PutRecord(Key(addr), encodeDispute(d)); err != nil {
		return nil, err
	}
	st.Emit(NewOpenedEvent(d))
	return d.Clone(), nil
}

// Get loads the dispute at addr.
func (e *Engine) Get(st State, addr crypto.RecordAddress) (*Dispute, error) {
	data, ok, err := st.Record(Key(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.ErrDisputeNotFound.Withf("%s", addr)
	}
	d, err := decodeDispute(data)
	if err != nil {
		return nil, err
	}
	if d.Address != addr {
		return nil, coreerrors.ErrDisputeNotFound.Withf("record at %s names %s", addr, d.Address)
	}
	return d, nil
}

// ResolveParams carries the arbitrator's decision.
type ResolveParams struct {
	Resolution       Status
	ClientPercentage uint64
	AdminNotes       *string
}

// Resolve applies the arbitrator's outcome and drains the escrow vault. The
// client percentage is validated for every outcome but only used by a split.
func (e *Engine) Resolve(st State, caller crypto.Address, addr crypto.RecordAddress, params ResolveParams) (*Dispute, escrow.Distribution, error) {
	ok, err := st.HasRole(state.RoleArbitrator, caller)
	if err != nil {
		return nil, escrow.Distribution{}, err
	}
	if !ok {
		return nil, escrow.Distribution{}, coreerrors.ErrNotArbitrator.Withf("%s", caller)
	}
	if params.ClientPercentage > 100 {
		return nil, escrow.Distribution{}, coreerrors.ErrInvalidClientPercentage.Withf("%d", params.ClientPercentage)
	}
	var notes *string
	if params.AdminNotes != nil {
		text, err := common.BoundedText(*params.AdminNotes, MaxNotesLength, coreerrors.ErrNotesTooLong)
		if err != nil {
			return nil, escrow.Distribution{}, err
		}
		notes = &text
	}
	d, err := e.Get(st, addr)
	if err != nil {
		return nil, escrow.Distribution{}, err
	}
	if d.Status != StatusOpen {
		return nil, escrow.Distribution{}, coreerrors.ErrDisputeNotOpen.Withf("status %s", d.Status)
	}
	esc, err := e.escrows.Get(st, d.Escrow)
	if err != nil {
		return nil, escrow.Distribution{}, err
	}
	if esc.Status != escrow.StatusDisputed {
		return nil, escrow.Distribution{}, coreerrors.ErrInvalidEscrowStatus.Withf("resolve from %s", esc.Status)
	}

	var (
		payout escrow.Distribution
		final  escrow.Status
	)
	switch params.Resolution {
	case StatusResolvedForClient:
		payout = escrow.ComputeRefund(esc.DepositAmount)
		final = escrow.StatusRefunded
	case StatusResolvedForFreelancer, StatusResolvedSplit:
		bps, err := e.escrows.FeeRateFor(st, esc)
		if err != nil {
			return nil, escrow.Distribution{}, err
		}
		if params.Resolution == StatusResolvedForFreelancer {
			payout, err = escrow.ComputeFreelancerAward(esc.DepositAmount, bps)
		} else {
			payout, err = escrow.ComputeSplit(esc.DepositAmount, uint8(params.ClientPercentage), bps)
		}
		if err != nil {
			return nil, escrow.Distribution{}, err
		}
		final = escrow.StatusCompleted
	default:
		return nil, escrow.Distribution{}, coreerrors.ErrInvalidResolution.Withf("%s", params.Resolution)
	}
	if _, err := e.escrows.Settle(st, esc.Address, payout, final); err != nil {
		return nil, escrow.Distribution{}, err
	}

	now := e.now()
	d.Status = params.Resolution
	d.ResolvedAt = &now
	if notes != nil {
		d.AdminNotes = notes
	}
	if err := st.PutRecord(Key(addr), encodeDispute(d)); err != nil {
		return nil, escrow.Distribution{}, err
	}
	st.Emit(NewResolvedEvent(d, params.ClientPercentage, payout))
	return d.Clone(), payout, nil
}
