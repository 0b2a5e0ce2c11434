package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "limitlesswork/core/errors"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
)

// Account loads the balance sheet for addr. Unknown addresses return a zero
// account.
func (tx *Tx) Account(addr crypto.Address) (*types.Account, error) {
	data, ok, err := tx.Get(AccountKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if !ok {
		return account, nil
	}
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	return account, nil
}

// PutAccount stores the balance sheet for addr.
func (tx *Tx) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		account = &types.Account{}
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return tx.Put(AccountKey(addr), encoded)
}

// Balance returns the spendable balance of addr.
func (tx *Tx) Balance(addr crypto.Address) (uint64, error) {
	account, err := tx.Account(addr)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit adds amount to addr.
func (tx *Tx) Credit(addr crypto.Address, amount uint64) error {
	account, err := tx.Account(addr)
	if err != nil {
		return err
	}
	sum := account.Balance + amount
	if sum < account.Balance {
		return coreerrors.ErrAmountOverflow.Withf("%s", addr)
	}
	account.Balance = sum
	return tx.PutAccount(addr, account)
}

// Transfer moves amount from one account to another. It never overdraws the
// source and zero-value transfers are no-ops.
func (tx *Tx) Transfer(from, to crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	source, err := tx.Account(from)
	if err != nil {
		return err
	}
	if source.Balance < amount {
		return coreerrors.ErrInsufficientFunds.Withf("%s holds %d, needs %d", from, source.Balance, amount)
	}
	if from == to {
		return nil
	}
	source.Balance -= amount
	if err := tx.PutAccount(from, source); err != nil {
		return err
	}
	return tx.Credit(to, amount)
}

// IncrementNonce bumps the replay counter of addr.
func (tx *Tx) IncrementNonce(addr crypto.Address) error {
	account, err := tx.Account(addr)
	if err != nil {
		return err
	}
	account.Nonce++
	return tx.PutAccount(addr, account)
}
