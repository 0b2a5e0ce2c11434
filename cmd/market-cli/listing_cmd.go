package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"limitlesswork/core/types"
)

// optionalUint is a flag that distinguishes "not given" from zero.
type optionalUint struct {
	value *uint64
}

func (o *optionalUint) String() string {
	if o == nil || o.value == nil {
		return ""
	}
	return strconv.FormatUint(*o.value, 10)
}

func (o *optionalUint) Set(s string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	o.value = &v
	return nil
}

// optionalString records whether the flag was passed at all.
type optionalString struct {
	value *string
}

func (o *optionalString) String() string {
	if o == nil || o.value == nil {
		return ""
	}
	return *o.value
}

func (o *optionalString) Set(s string) error {
	o.value = &s
	return nil
}

func runListingCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, listingUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runListingCreate(args[1:], stdout, stderr)
	case "update":
		return runListingUpdate(args[1:], stdout, stderr)
	case "show":
		return runListingShow(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown listing subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, listingUsage())
		return 1
	}
}

func runListingCreate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("listing create", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, id, title, description, category string
	var standard uint64
	var deluxe, premium optionalUint
	fs.StringVar(&keyFile, "key", "wallet.json", "signing key file")
	fs.StringVar(&id, "id", "", "listing identifier, unique per freelancer")
	fs.StringVar(&title, "title", "", "listing title")
	fs.StringVar(&description, "description", "", "listing description")
	fs.StringVar(&category, "category", "", "listing category")
	fs.Uint64Var(&standard, "standard", 0, "standard package price")
	fs.Var(&deluxe, "deluxe", "optional deluxe package price")
	fs.Var(&premium, "premium", "optional premium package price")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"id", id}, [2]string{"title", title}, [2]string{"category", category}); err != nil {
		return 1
	}
	if standard == 0 {
		fmt.Fprintln(stderr, "Error: --standard must be greater than zero")
		return 1
	}
	payload := types.CreateListingPayload{
		ListingID:     strings.TrimSpace(id),
		Title:         title,
		Description:   description,
		Category:      category,
		StandardPrice: standard,
		DeluxePrice:   deluxe.value,
		PremiumPrice:  premium.value,
	}
	return submit(stdout, stderr, keyFile, types.TxTypeCreateListing, payload)
}

func runListingUpdate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("listing update", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var keyFile, id string
	var title, description, category optionalString
	var standard, deluxe, premium optionalUint
	var active string
	fs.StringVar(&keyFile, "key", "wallet.json", "signing key file")
	fs.StringVar(&id, "id", "", "listing identifier")
	fs.Var(&title, "title", "new title")
	fs.Var(&description, "description", "new description")
	fs.Var(&category, "category", "new category")
	fs.Var(&standard, "standard", "new standard price")
	fs.Var(&deluxe, "deluxe", "new deluxe price")
	fs.Var(&premium, "premium", "new premium price")
	fs.StringVar(&active, "active", "", "true or false to toggle availability")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return 1
	}
	if err := requireFlags(stderr, [2]string{"id", id}); err != nil {
		return 1
	}
	payload := types.UpdateListingPayload{
		ListingID:     strings.TrimSpace(id),
		Title:         title.value,
		Description:   description.value,
		Category:      category.value,
		StandardPrice: standard.value,
		DeluxePrice:   deluxe.value,
		PremiumPrice:  premium.value,
	}
	if strings.TrimSpace(active) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(active))
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid --active value %q\n", active)
			return 1
		}
		payload.Active = &v
	}
	return submit(stdout, stderr, keyFile, types.TxTypeUpdateListing, payload)
}

func runListingShow(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("listing show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var authority, id string
	fs.StringVar(&authority, "authority", "", "freelancer address owning the listing")
	fs.StringVar(&id, "id", "", "listing identifier")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := requireFlags(stderr, [2]string{"authority", authority}, [2]string{"id", id}); err != nil {
		return 1
	}
	params := map[string]string{"authority": strings.TrimSpace(authority), "listingId": strings.TrimSpace(id)}
	return query(stdout, stderr, "listing_get", params)
}

func listingUsage() string {
	return strings.TrimSpace(`Usage:
  market-cli listing <command> [flags]

Commands:
  create  Publish a listing owned by the signing key
  update  Change fields of an existing listing
  show    Print a listing by authority and id
`)
}
