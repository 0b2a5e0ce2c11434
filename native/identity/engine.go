package identity

import (
	"fmt"
	"time"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/events"
	"limitlesswork/core/state"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
)

// State is the slice of ledger state the registry reads and writes.
type State interface {
	Record(key []byte) ([]byte, bool, error)
	PutRecord(key, data []byte) error
	Emit(events.Event)
}

// Engine owns profile records.
type Engine struct {
	nowFn func() int64
}

// NewEngine constructs the registry with a wall-clock time source.
func NewEngine() *Engine {
	return &Engine{nowFn: func() int64 { return time.Now().Unix() }}
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

// ProfileKey is the logical state key of authority's profile.
func ProfileKey(authority crypto.Address) []byte {
	return state.RecordKey(ProfileAddress(authority))
}

// RegisterKeys lists the records Register writes.
func RegisterKeys(authority crypto.Address, username string) [][]byte {
	return [][]byte{
		ProfileKey(authority),
		state.RecordKey(UsernameAddress(common.NormalizeText(username))),
	}
}

// Register creates the signer's profile with the initial reputation.
func (e *Engine) Register(st State, authority crypto.Address, username string, role Role) (*Profile, error) {
	name, err := common.BoundedText(username, MaxUsernameLength, coreerrors.ErrUsernameTooLong)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, coreerrors.ErrUsernameEmpty
	}
	if role > RoleFreelancer {
		return nil, coreerrors.ErrInvalidRole.Withf("%d", role)
	}
	if _, ok, err := st.Record(ProfileKey(authority)); err != nil {
		return nil, err
	} else if ok {
		return nil, coreerrors.ErrProfileExists.Withf("%s", authority)
	}
	claimKey := state.RecordKey(UsernameAddress(name))
	if _, ok, err := st.Record(claimKey); err != nil {
		return nil, err
	} else if ok {
		return nil, coreerrors.ErrUsernameTaken.Withf("%q", name)
	}

	profile := &Profile{
		Authority:  authority,
		Username:   name,
		Role:       role,
		Reputation: InitialReputation,
		CreatedAt:  e.now(),
	}
	if err := st.PutRecord(claimKey, encodeClaim(authority)); err != nil {
		return nil, err
	}
	if err := e.store(st, profile); err != nil {
		return nil, err
	}
	st.Emit(newProfileEvent(EventTypeRegistered, profile))
	return profile, nil
}

// UpgradeToPremium flags the owner's profile as premium. Upgrading an already
// premium profile is a no-op.
func (e *Engine) UpgradeToPremium(st State, authority crypto.Address) (*Profile, error) {
	profile, err := e.Profile(st, authority)
	if err != nil {
		return nil, err
	}
	if profile.Premium {
		return profile, nil
	}
	profile.Premium = true
	if err := e.store(st, profile); err != nil {
		return nil, err
	}
	st.Emit(newProfileEvent(EventTypePremium, profile))
	return profile, nil
}

// Profile loads the profile owned by authority.
func (e *Engine) Profile(st State, authority crypto.Address) (*Profile, error) {
	data, ok, err := st.Record(ProfileKey(authority))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.ErrProfileNotFound.Withf("%s", authority)
	}
	profile, err := decodeProfile(data)
	if err != nil {
		return nil, err
	}
	if profile.Authority != authority {
		return nil, fmt.Errorf("identity: profile at %s owned by %s", ProfileAddress(authority), profile.Authority)
	}
	return profile, nil
}

// IncrementTransactions bumps the completed-transaction counter.
func (e *Engine) IncrementTransactions(st State, authority crypto.Address) error {
	profile, err := e.Profile(st, authority)
	if err != nil {
		return err
	}
	if profile.TotalTransactions == ^uint64(0) {
		return coreerrors.ErrAmountOverflow.Withf("transaction counter for %s", authority)
	}
	profile.TotalTransactions++
	return e.store(st, profile)
}

func (e *Engine) store(st State, profile *Profile) error {
	return st.PutRecord(ProfileKey(profile.Authority), encodeProfile(profile))
}
