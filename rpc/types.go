package rpc

import (
	"strconv"

	"limitlesswork/core"
	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/native/dispute"
	"limitlesswork/native/escrow"
	"limitlesswork/native/identity"
	"limitlesswork/native/listing"
	"limitlesswork/storage/eventlog"
)

// Amounts are rendered as decimal strings so JavaScript clients do not lose
// precision above 2^53.

// BalanceResult is the ledger view of one address.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// ProfileResult mirrors identity.Profile.
type ProfileResult struct {
	Address           string `json:"address"`
	Authority         string `json:"authority"`
	Username          string `json:"username"`
	Role              string `json:"role"`
	Premium           bool   `json:"premium"`
	Reputation        uint8  `json:"reputation"`
	TotalTransactions uint64 `json:"totalTransactions"`
	CreatedAt         int64  `json:"createdAt"`
}

// ListingResult mirrors listing.Listing.
type ListingResult struct {
	Address         string  `json:"address"`
	Authority       string  `json:"authority"`
	ListingID       string  `json:"listingId"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	StandardPrice   string  `json:"standardPrice"`
	DeluxePrice     *string `json:"deluxePrice,omitempty"`
	PremiumPrice    *string `json:"premiumPrice,omitempty"`
	Active          bool    `json:"active"`
	TotalOrders     uint64  `json:"totalOrders"`
	CompletedOrders uint64  `json:"completedOrders"`
	CreatedAt       int64   `json:"createdAt"`
}

// EscrowResult mirrors escrow.Escrow plus its custody vault.
type EscrowResult struct {
	Address        string `json:"address"`
	Vault          string `json:"vault"`
	Client         string `json:"client"`
	Freelancer     string `json:"freelancer"`
	Listing        string `json:"listing"`
	ListingID      string `json:"listingId"`
	OrderID        string `json:"orderId"`
	DepositAmount  string `json:"depositAmount"`
	Package        string `json:"package"`
	StandardFeeBps uint16 `json:"standardFeeBps"`
	PremiumFeeBps  uint16 `json:"premiumFeeBps"`
	Referrer       string `json:"referrer,omitempty"`
	Status         string `json:"status"`
	HasDispute     bool   `json:"hasDispute"`
	CreatedAt      int64  `json:"createdAt"`
	CompletedAt    *int64 `json:"completedAt,omitempty"`
}

// DisputeResult mirrors dispute.Dispute.
type DisputeResult struct {
	Address    string  `json:"address"`
	Escrow     string  `json:"escrow"`
	Client     string  `json:"client"`
	Freelancer string  `json:"freelancer"`
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"`
	ResolvedAt *int64  `json:"resolvedAt,omitempty"`
	AdminNotes *string `json:"adminNotes,omitempty"`
}

// DistributionResult is a payout split.
type DistributionResult struct {
	Client     string `json:"client"`
	Freelancer string `json:"freelancer"`
	Platform   string `json:"platform"`
	Referrer   string `json:"referrer"`
	FeeBps     uint16 `json:"feeBps"`
}

// PreviewResult answers escrow_previewRelease.
type PreviewResult struct {
	Escrow       EscrowResult       `json:"escrow"`
	Distribution DistributionResult `json:"distribution"`
}

// EventsResult is one page of the audit log.
type EventsResult struct {
	Events []eventlog.Entry `json:"events"`
	Next   int64            `json:"next"`
}

// ReceiptResult reflects a committed transaction.
type ReceiptResult struct {
	TransactionHash string         `json:"transactionHash"`
	Type            string         `json:"type"`
	Sender          string         `json:"sender"`
	Record          string         `json:"record,omitempty"`
	Logs            []*types.Event `json:"logs"`
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func formatOptional(v *uint64) *string {
	if v == nil {
		return nil
	}
	s := formatAmount(*v)
	return &s
}

func balanceResult(addr crypto.Address, account *types.Account) BalanceResult {
	return BalanceResult{Address: addr.String(), Balance: formatAmount(account.Balance), Nonce: account.Nonce}
}

func profileResult(p *identity.Profile) ProfileResult {
	return ProfileResult{
		Address:           identity.ProfileAddress(p.Authority).Hex(),
		Authority:         p.Authority.String(),
		Username:          p.Username,
		Role:              p.Role.String(),
		Premium:           p.Premium,
		Reputation:        p.Reputation,
		TotalTransactions: p.TotalTransactions,
		CreatedAt:         p.CreatedAt,
	}
}

func listingResult(l *listing.Listing) ListingResult {
	return ListingResult{
		Address:         listing.Address(l.Authority, l.ListingID).Hex(),
		Authority:       l.Authority.String(),
		ListingID:       l.ListingID,
		Title:           l.Title,
		Description:     l.Description,
		Category:        l.Category,
		StandardPrice:   formatAmount(l.StandardPrice),
		DeluxePrice:     formatOptional(l.DeluxePrice),
		PremiumPrice:    formatOptional(l.PremiumPrice),
		Active:          l.Active,
		TotalOrders:     l.TotalOrders,
		CompletedOrders: l.CompletedOrders,
		CreatedAt:       l.CreatedAt,
	}
}

func escrowResult(e *escrow.Escrow) EscrowResult {
	out := EscrowResult{
		Address:        e.Address.Hex(),
		Vault:          e.Vault().String(),
		Client:         e.Client.String(),
		Freelancer:     e.Freelancer.String(),
		Listing:        e.Listing.Hex(),
		ListingID:      e.ListingID,
		OrderID:        e.OrderID,
		DepositAmount:  formatAmount(e.DepositAmount),
		Package:        e.Package.String(),
		StandardFeeBps: e.StandardFeeBps,
		PremiumFeeBps:  e.PremiumFeeBps,
		Status:         e.Status.String(),
		HasDispute:     e.HasDispute,
		CreatedAt:      e.CreatedAt,
		CompletedAt:    e.CompletedAt,
	}
	if e.Referrer != nil {
		out.Referrer = e.Referrer.String()
	}
	return out
}

func disputeResult(d *dispute.Dispute) DisputeResult {
	return DisputeResult{
		Address:    d.Address.Hex(),
		Escrow:     d.Escrow.Hex(),
		Client:     d.Client.String(),
		Freelancer: d.Freelancer.String(),
		Reason:     d.Reason,
		Status:     d.Status.String(),
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
		AdminNotes: d.AdminNotes,
	}
}

func distributionResult(d escrow.Distribution) DistributionResult {
	return DistributionResult{
		Client:     formatAmount(d.Client),
		Freelancer: formatAmount(d.Freelancer),
		Platform:   formatAmount(d.Platform),
		Referrer:   formatAmount(d.Referrer),
		FeeBps:     d.FeeBps,
	}
}

func previewResult(p *core.ReleasePreview) PreviewResult {
	return PreviewResult{Escrow: escrowResult(p.Escrow), Distribution: distributionResult(p.Distribution)}
}

func receiptResult(r *types.Receipt) ReceiptResult {
	logs := r.Events
	if logs == nil {
		logs = []*types.Event{}
	}
	return ReceiptResult{TransactionHash: r.TxHash, Type: r.Type, Sender: r.Sender, Record: r.Record, Logs: logs}
}
