package types

// Account is the ledger balance sheet for a single address. Custody vaults are
// ordinary accounts whose address is derived from the escrow they back.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}
