package types

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"limitlesswork/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeRegisterIdentity TxType = 0x01 // Claim a profile and username
	TxTypeUpgradePremium   TxType = 0x02
	TxTypeCreateListing    TxType = 0x03
	TxTypeUpdateListing    TxType = 0x04
	TxTypeCreateEscrow     TxType = 0x05 // Client locks a deposit against a listing
	TxTypeReleaseEscrow    TxType = 0x06 // Client approves payout to the freelancer
	TxTypeOpenDispute      TxType = 0x07
	TxTypeResolveDispute   TxType = 0x08 // Arbitrator settles a frozen escrow
)

var txTypeNames = map[TxType]string{
	TxTypeRegisterIdentity: "register_identity",
	TxTypeUpgradePremium:   "upgrade_to_premium",
	TxTypeCreateListing:    "create_listing",
	TxTypeUpdateListing:    "update_listing",
	TxTypeCreateEscrow:     "create_escrow",
	TxTypeReleaseEscrow:    "release_escrow",
	TxTypeOpenDispute:      "open_dispute",
	TxTypeResolveDispute:   "resolve_dispute",
}

func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether the type is one the processor dispatches.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// Transaction is a signed request to run one marketplace operation. Data holds
// the JSON payload for Type; the recovered signer is the caller.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from *crypto.Address
}

type signingPayload struct {
	ChainID uint64
	Type    TxType
	Nonce   uint64
	Data    []byte
}

// Hash is keccak256(rlp(chainID, type, nonce, data)).
func (tx *Transaction) Hash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(signingPayload{tx.ChainID, tx.Type, tx.Nonce, tx.Data})
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(encoded), nil
}

// Sign populates R, S and V with a secp256k1 signature over Hash.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := ethcrypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address.
func (tx *Transaction) From() (crypto.Address, error) {
	if tx.from != nil {
		return *tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return crypto.Address{}, fmt.Errorf("transaction is unsigned")
	}
	if tx.R.BitLen() > 256 || tx.S.BitLen() > 256 || !tx.V.IsUint64() || tx.V.Uint64() < 27 || tx.V.Uint64() > 28 {
		return crypto.Address{}, fmt.Errorf("malformed signature values")
	}
	hash, err := tx.Hash()
	if err != nil {
		return crypto.Address{}, err
	}
	sig := make([]byte, 65)
	tx.R.FillBytes(sig[:32])
	tx.S.FillBytes(sig[32:64])
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return crypto.Address{}, err
	}
	var addr crypto.Address
	copy(addr[:], ethcrypto.PubkeyToAddress(*pubKey).Bytes())
	tx.from = &addr
	return addr, nil
}
