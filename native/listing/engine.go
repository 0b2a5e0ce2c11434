package listing

import (
	"time"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/native/identity"
)

// State is the slice of ledger state the registry reads and writes.
type State interface {
	Record(key []byte) ([]byte, bool, error)
	PutRecord(key, data []byte) error
	Emit(events.Event)
}

// Profiles resolves the role of a listing's author.
type Profiles interface {
	Profile(st identity.State, authority crypto.Address) (*identity.Profile, error)
}

// Engine owns listing records.
type Engine struct {
	profiles Profiles
	nowFn    func() int64
}

// NewEngine wires the registry to the identity registry.
func NewEngine(profiles Profiles) *Engine {
	return &Engine{profiles: profiles, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Key is the logical state key of a listing.
func Key(authority crypto.Address, listingID string) []byte {
	return state.RecordKey(Address(authority, listingID))
}

// CreateParams describes a new listing.
type CreateParams struct {
	ListingID     string
	Title         string
	Description   string
	Category      string
	StandardPrice uint64
	DeluxePrice   *uint64
	PremiumPrice  *uint64
}

// UpdateParams changes any subset of a listing. Nil fields are untouched.
type UpdateParams struct {
	Title         *string
	Description   *string
	Category      *string
	StandardPrice *uint64
	DeluxePrice   *uint64
	PremiumPrice  *uint64
	Active        *bool
}

func validateListingID(id string) error {
	if id == "" || len(id) > MaxListingIDLength {
		return coreerrors.ErrListingIDInvalid.Withf("%d bytes", len(id))
	}
	return nil
}

func validatePrice(p *uint64) error {
	if p != nil && *p == 0 {
		return coreerrors.ErrInvalidPrice
	}
	return nil
}

// Create publishes a listing. Only freelancers may publish.
func (e *Engine) Create(st State, authority crypto.Address, params CreateParams) (*Listing, error) {
	if err := validateListingID(params.ListingID); err != nil {
		return nil, err
	}
	profile, err := e.profiles.Profile(st, authority)
	if err != nil {
		return nil, err
	}
	if !profile.IsFreelancer() {
		return nil, coreerrors.ErrNotFreelancer.Withf("%s", authority)
	}
	title, err := common.BoundedText(params.Title, MaxTitleLength, coreerrors.ErrTitleTooLong)
	if err != nil {
		return nil, err
	}
	description, err := common.BoundedText(params.Description, MaxDescriptionLength, coreerrors.ErrDescriptionTooLong)
	if err != nil {
		return nil, err
	}
	category, err := common.BoundedText(params.Category, MaxCategoryLength, coreerrors.ErrCategoryTooLong)
	if err != nil {
		return nil, err
	}
	standard := params.StandardPrice
	for _, p := range []*uint64{&standard, params.DeluxePrice, params.PremiumPrice} {
		if err := validatePrice(p); err != nil {
			return nil, err
		}
	}
	key := Key(authority, params.ListingID)
	if _, ok, err := st.Record(key); err != nil {
		return nil, err
	} else if ok {
		return nil, coreerrors.ErrListingExists.Withf("%s", params.ListingID)
	}

	l := &Listing{
		Authority:     authority,
		ListingID:     params.ListingID,
		Title:         title,
		Description:   description,
		Category:      category,
		StandardPrice: params.StandardPrice,
		DeluxePrice:   copyPrice(params.DeluxePrice),
		PremiumPrice:  copyPrice(params.PremiumPrice),
		Active:        true,
		CreatedAt:     e.nowFn(),
	}
	if err := st.PutRecord(key, encodeListing(l)); err != nil {
		return nil, err
	}
	st.Emit(newListingEvent(EventTypeCreated, l))
	return l, nil
}

// Update applies params to a listing owned by caller.
func (e *Engine) Update(st State, caller crypto.Address, listingID string, params UpdateParams) (*Listing, error) {
	l, err := e.Get(st, caller, listingID)
	if err != nil {
		return nil, err
	}
	if l.Authority != caller {
		return nil, coreerrors.ErrNotListingOwner
	}
	if params.Title != nil {
		title, err := common.BoundedText(*params.Title, MaxTitleLength, coreerrors.ErrTitleTooLong)
		if err != nil {
			return nil, err
		}
		l.Title = title
	}
	if params.Description != nil {
		description, err := common.BoundedText(*params.Description, MaxDescriptionLength, coreerrors.ErrDescriptionTooLong)
		if err != nil {
			return nil, err
		}
		l.Description = description
	}
	if params.Category != nil {
		category, err := common.BoundedText(*params.Category, MaxCategoryLength, coreerrors.ErrCategoryTooLong)
		if err != nil {
			return nil, err
		}
		l.Category = category
	}
	for _, p := range []*uint64{params.StandardPrice, params.DeluxePrice, params.PremiumPrice} {
		if err := validatePrice(p); err != nil {
			return nil, err
		}
	}
	if params.StandardPrice != nil {
		l.StandardPrice = *params.StandardPrice
	}
	if params.DeluxePrice != nil {
		l.DeluxePrice = copyPrice(params.DeluxePrice)
	}
	if params.PremiumPrice != nil {
		l.PremiumPrice = copyPrice(params.PremiumPrice)
	}
	if params.Active != nil {
		l.Active = *params.Active
	}
	if err := e.Put(st, l); err != nil {
		return nil, err
	}
	st.Emit(newListingEvent(EventTypeUpdated, l))
	return l, nil
}

// Get loads a listing.
func (e *Engine) Get(st State, authority crypto.Address, listingID string) (*Listing, error) {
	data, ok, err := st.Record(Key(authority, listingID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.ErrListingNotFound.Withf("%s/%s", authority, listingID)
	}
	return decodeListing(data)
}

// Put stores l at its derived address.
func (e *Engine) Put(st State, l *Listing) error {
	return st.PutRecord(Key(l.Authority, l.ListingID), encodeListing(l))
}

// IncrementTotalOrders records a new escrow against the listing.
func (e *Engine) IncrementTotalOrders(st State, l *Listing) error {
	l.TotalOrders++
	return e.Put(st, l)
}

// IncrementCompletedOrders records a released escrow.
func (e *Engine) IncrementCompletedOrders(st State, l *Listing) error {
	l.CompletedOrders++
	return e.Put(st, l)
}

func copyPrice(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
