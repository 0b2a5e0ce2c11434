package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"limitlesswork/core/types"
)

func runIdentityCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, identityUsage())
		return 1
	}
	switch args[0] {
	case "register":
		return runIdentityRegister(args[1:], stdout, stderr)
	case "upgrade":
		return runIdentityUpgrade(args[1:], stdout, stderr)
	case "show":
		return runIdentityShow(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown identity subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, identityUsage())
		return 1
	}
}

func runIdentityRegister(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("identity register", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, username, role string
	fs.StringVar(&keyFile, "key", "wallet.json", "signing key file")
	fs.StringVar(&username, "username", "", "username to claim (at most 50 bytes)")
	fs.StringVar(&role, "role", "client", "client or freelancer")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"username", username}, [2]string{"role", role}); err != nil {
		return 1
	}
	payload := types.RegisterIdentityPayload{Username: strings.TrimSpace(username), Role: strings.TrimSpace(role)}
	return submit(stdout, stderr, keyFile, types.TxTypeRegisterIdentity, payload)
}

func runIdentityUpgrade(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("identity upgrade", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile string
	fs.StringVar(&keyFile, "key", "wallet.json", "signing key file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	return submit(stdout, stderr, keyFile, types.TxTypeUpgradePremium, struct{}{})
}

func runIdentityShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("identity show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var addr string
	fs.StringVar(&addr, "addr", "", "profile authority address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireFlags(stderr, [2]string{"addr", addr}); err != nil {
		return 1
	}
	return query(stdout, stderr, "identity_getProfile", strings.TrimSpace(addr))
}

func identityUsage() string {
	return strings.TrimSpace(`Usage:
  market-cli identity <command> [flags]

Commands:
  register  Claim a username and role for the signing key
  upgrade   Switch the signer's profile to the premium fee rate
  show      Print the profile owned by an address
`)
}
