package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via MARKET_RPC or --rpc flag
var rpcAuthToken = os.Getenv("MARKET_RPC_TOKEN")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// marketRPCCall is swapped out in tests.
var marketRPCCall = callMarketRPC

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	rpcEndpoint = defaultRPCEndpoint()
	rest, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch rest[0] {
	case "keygen":
		return runKeygen(rest[1:], stdout, stderr)
	case "token":
		return runToken(rest[1:], stdout, stderr)
	case "balance":
		return runBalance(rest[1:], stdout, stderr)
	case "identity", "id":
		return runIdentityCommand(rest[1:], stdout, stderr)
	case "listing":
		return runListingCommand(rest[1:], stdout, stderr)
	case "escrow":
		return runEscrowCommand(rest[1:], stdout, stderr)
	case "dispute":
		return runDisputeCommand(rest[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`Usage:
  market-cli [--rpc URL] <command> [flags]

Commands:
  keygen    Generate a signing key and store it in a keystore file
  token     Mint a bearer token for market_sendTransaction
  balance   Show the balance and nonce of an address
  identity  Register, upgrade and inspect profiles
  listing   Create, update and inspect listings
  escrow    Create, release and inspect escrows
  dispute   Open, resolve and inspect disputes

Environment:
  MARKET_RPC        JSON-RPC endpoint (default http://localhost:8545)
  MARKET_RPC_TOKEN  bearer token for transaction submission
  MARKET_KEY_PASS   keystore passphrase
`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("MARKET_RPC")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		token := strings.TrimSpace(rpcAuthToken)
		if token == "" {
			return nil, fmt.Errorf("transaction submission requires MARKET_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func callMarketRPC(method string, params []interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode request: %w", err)
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response from node")
	}
	return rpcResp.Result, rpcResp.Error, nil
}

// query runs a read-only call and prints the result.
func query(stdout, stderr io.Writer, method string, params ...interface{}) int {
	result, rpcErr, err := marketRPCCall(method, params, false)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}

func handleRPCCallError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func handleRPCError(stderr io.Writer, rpcErr *rpcError) int {
	var data struct {
		Code string `json:"code"`
	}
	if len(rpcErr.Data) > 0 && json.Unmarshal(rpcErr.Data, &data) == nil && data.Code != "" {
		fmt.Fprintf(stderr, "Error: %s (%s, rpc code %d)\n", rpcErr.Message, data.Code, rpcErr.Code)
		return 1
	}
	fmt.Fprintf(stderr, "Error: %s (rpc code %d)\n", rpcErr.Message, rpcErr.Code)
	return 1
}

func writeRPCResult(w io.Writer, result json.RawMessage) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintln(w, string(result))
		return
	}
	fmt.Fprintln(w, buf.String())
}

var errUsage = errors.New("usage")

// requireFlags reports the first empty flag as a usage error.
func requireFlags(stderr io.Writer, values ...[2]string) error {
	for _, pair := range values {
		if strings.TrimSpace(pair[1]) == "" {
			fmt.Fprintf(stderr, "Error: --%s is required\n", pair[0])
			return errUsage
		}
	}
	return nil
}
