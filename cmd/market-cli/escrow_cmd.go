package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"limitlesswork/core/types"
)

// newOrderID returns a fresh 32 character order identifier.
var newOrderID = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func runEscrowCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runEscrowCreate(args[1:], stdout, stderr)
	case "release":
		return runEscrowRelease(args[1:], stdout, stderr)
	case "show":
		return runEscrowLookup("escrow show", "escrow_get", args[1:], stdout, stderr)
	case "preview":
		return runEscrowLookup("escrow preview", "escrow_previewRelease", args[1:], stdout, stderr)
	case "events":
		return runEscrowEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown escrow subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, escrowUsage())
		return 1
	}
}

func runEscrowCreate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("escrow create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, freelancer, listingID, orderID, pkg, referrer string
	fs.StringVar(&keyFile, "key", "wallet.json", "client signing key file")
	fs.StringVar(&freelancer, "freelancer", "", "freelancer address owning the listing")
	fs.StringVar(&listingID, "listing", "", "listing identifier")
	fs.StringVar(&orderID, "order", "", "order identifier (random when omitted)")
	fs.StringVar(&pkg, "package", "standard", "standard, deluxe or premium")
	fs.StringVar(&referrer, "referrer", "", "optional referrer address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"freelancer", freelancer}, [2]string{"listing", listingID}); err != nil {
		return 1
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		orderID = newOrderID()
	}
	payload := types.CreateEscrowPayload{
		Freelancer: strings.TrimSpace(freelancer),
		ListingID:  strings.TrimSpace(listingID),
		OrderID:    orderID,
		Package:    strings.TrimSpace(pkg),
		Referrer:   strings.TrimSpace(referrer),
	}
	return submit(stdout, stderr, keyFile, types.TxTypeCreateEscrow, payload)
}

func runEscrowRelease(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("escrow release", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, escrowAddr string
	fs.StringVar(&keyFile, "key", "wallet.json", "client signing key file")
	fs.StringVar(&escrowAddr, "escrow", "", "escrow record address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"escrow", escrowAddr}); err != nil {
		return 1
	}
	return submit(stdout, stderr, keyFile, types.TxTypeReleaseEscrow, types.EscrowRefPayload{Escrow: strings.TrimSpace(escrowAddr)})
}

func runEscrowLookup(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var escrowAddr string
	fs.StringVar(&escrowAddr, "escrow", "", "escrow record address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireFlags(stderr, [2]string{"escrow", escrowAddr}); err != nil {
		return 1
	}
	return query(stdout, stderr, method, strings.TrimSpace(escrowAddr))
}

func runEscrowEvents(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("escrow events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var eventType string
	var after int64
	var limit int
	fs.StringVar(&eventType, "type", "", "only events of this type")
	fs.Int64Var(&after, "after", 0, "return events with a sequence above this")
	fs.IntVar(&limit, "limit", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if after < 0 || limit < 0 {
		fmt.Fprintln(stderr, "Error: --after and --limit must not be negative")
		return 1
	}
	filter := map[string]interface{}{"type": strings.TrimSpace(eventType), "after": after, "limit": limit}
	return query(stdout, stderr, "escrow_listEvents", filter)
}

func escrowUsage() string {
	return strings.TrimSpace(`Usage:
  market-cli escrow <command> [flags]

Commands:
  create   Lock a listing's price in a new escrow
  release  Approve the payout of a funded escrow
  show     Print an escrow
  preview  Show how a release would be distributed
  events   Page through the persisted event log
`)
}
