package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"limitlesswork/cmd/internal/passphrase"
	"limitlesswork/crypto"
	"limitlesswork/rpc"
)

const keyPassEnv = "MARKET_KEY_PASS"

// keyPassphrase resolves keystore passwords; tests replace it.
var keyPassphrase = func() (string, error) {
	return passphrase.NewSource(keyPassEnv, "").Get()
}

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var out string
	var rawHex bool
	fs.StringVar(&out, "out", "wallet.json", "keystore file to write")
	fs.BoolVar(&rawHex, "hex", false, "write an unencrypted hex key instead of a keystore (development only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite\n", out)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	if rawHex {
		if err := os.WriteFile(out, []byte(hex.EncodeToString(key.Bytes())), 0o600); err != nil {
			fmt.Fprintf(stderr, "Error: save key: %v\n", err)
			return 1
		}
	} else {
		pass, err := keyPassphrase()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if err := crypto.SaveToKeystore(out, key, pass); err != nil {
			fmt.Fprintf(stderr, "Error: save keystore: %v\n", err)
			return 1
		}
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", out)
	fmt.Fprintf(stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

// loadSigner opens a keystore file, prompting for the passphrase only when
// the file is an encrypted v3 keystore.
func loadSigner(path string) (*crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("key file %s not found. run market-cli keygen first", path)
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	pass := ""
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		if pass, err = keyPassphrase(); err != nil {
			return nil, err
		}
	}
	key, err := crypto.LoadKey(path, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to load key %s: %w", path, err)
	}
	return key, nil
}

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var secretEnv, subject string
	var ttl time.Duration
	fs.StringVar(&secretEnv, "secret-env", "MARKET_JWT_SECRET", "environment variable holding the RPC JWT secret")
	fs.StringVar(&subject, "subject", "market-cli", "token subject")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	secret := strings.TrimSpace(os.Getenv(secretEnv))
	if secret == "" {
		fmt.Fprintf(stderr, "Error: %s is not set\n", secretEnv)
		return 1
	}
	if ttl <= 0 {
		fmt.Fprintln(stderr, "Error: --ttl must be positive")
		return 1
	}
	token, err := rpc.IssueToken(secret, subject, ttl, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "bech32 or 0x address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireFlags(stderr, [2]string{"addr", addr}); err != nil {
		return 1
	}
	return query(stdout, stderr, "market_getBalance", strings.TrimSpace(addr))
}
