package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"limitlesswork/core/types"
)

func runDisputeCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, disputeUsage())
		return 1
	}
	switch args[0] {
	case "open":
		return runDisputeOpen(args[1:], stdout, stderr)
	case "resolve":
		return runDisputeResolve(args[1:], stdout, stderr)
	case "show":
		return runEscrowLookup("dispute show", "escrow_getDispute", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown dispute subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, disputeUsage())
		return 1
	}
}

func runDisputeOpen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dispute open", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, escrowAddr, reason string
	fs.StringVar(&keyFile, "key", "wallet.json", "client or freelancer signing key file")
	fs.StringVar(&escrowAddr, "escrow", "", "escrow record address")
	fs.StringVar(&reason, "reason", "", "why the order is disputed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"escrow", escrowAddr}, [2]string{"reason", reason}); err != nil {
		return 1
	}
	payload := types.OpenDisputePayload{Escrow: strings.TrimSpace(escrowAddr), Reason: reason}
	return submit(stdout, stderr, keyFile, types.TxTypeOpenDispute, payload)
}

func runDisputeResolve(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dispute resolve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, disputeAddr, resolution string
	var notes optionalString
	var clientPct uint
	fs.StringVar(&keyFile, "key", "wallet.json", "arbitrator signing key file")
	fs.StringVar(&disputeAddr, "dispute", "", "dispute record address")
	fs.StringVar(&resolution, "resolution", "", "client, freelancer or split")
	fs.UintVar(&clientPct, "client-pct", 0, "client share of the deposit for a split, 0-100")
	fs.Var(&notes, "notes", "arbitrator notes")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"dispute", disputeAddr}, [2]string{"resolution", resolution}); err != nil {
		return 1
	}
	if clientPct > 100 {
		fmt.Fprintln(stderr, "Error: --client-pct must be between 0 and 100")
		return 1
	}
	payload := types.ResolveDisputePayload{
		Dispute:          strings.TrimSpace(disputeAddr),
		Resolution:       strings.TrimSpace(resolution),
		AdminNotes:       notes.value,
		ClientPercentage: uint64(clientPct),
	}
	return submit(stdout, stderr, keyFile, types.TxTypeResolveDispute, payload)
}

func disputeUsage() string {
	return strings.TrimSpace(`Usage:
  market-cli dispute <command> [flags]

Commands:
  open     Freeze a funded escrow pending arbitration
  resolve  Settle an open dispute (arbitrators only)
  show     Print the dispute attached to an escrow
`)
}
