package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"limitlesswork/core/types"
	"limitlesswork/crypto"
)

// chainIDLookup asks the node which chain it runs; tests replace it.
var chainIDLookup = fetchChainID

func fetchChainID() (uint64, error) {
	url := strings.TrimSuffix(rpcEndpoint, "/") + "/healthz"
	resp, err := httpClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	var health struct {
		ChainID uint64 `json:"chainId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return 0, fmt.Errorf("decode health response: %w", err)
	}
	return health.ChainID, nil
}

func fetchNonce(addr crypto.Address) (uint64, error) {
	result, rpcErr, err := marketRPCCall("market_getBalance", []interface{}{addr.String()}, false)
	if err != nil {
		return 0, err
	}
	if rpcErr != nil {
		return 0, fmt.Errorf("%s", rpcErr.Message)
	}
	var account struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(result, &account); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return account.Nonce, nil
}

// buildTransaction signs payload as txType with the signer's next nonce.
func buildTransaction(key *crypto.PrivateKey, txType types.TxType, payload interface{}) (*types.Transaction, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	chainID, err := chainIDLookup()
	if err != nil {
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}
	nonce, err := fetchNonce(key.PubKey().Address())
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tx := &types.Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Data: data}
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

// submit loads the key at keyFile, signs payload and prints the receipt.
func submit(stdout, stderr io.Writer, keyFile string, txType types.TxType, payload interface{}) int {
	key, err := loadSigner(keyFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	tx, err := buildTransaction(key, txType, payload)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	result, rpcErr, err := marketRPCCall("market_sendTransaction", []interface{}{tx}, true)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
