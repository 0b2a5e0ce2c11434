package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"limitlesswork/core/types"
	"limitlesswork/crypto"
	"limitlesswork/native/common"
	"limitlesswork/observability"
	"limitlesswork/storage/eventlog"
)

type method struct {
	module  string
	handler func(r *http.Request, params []json.RawMessage) (interface{}, error)
}

func (s *Server) methodTable() map[string]method {
	return map[string]method{
		"market_sendTransaction": {module: "market", handler: s.handleSendTransaction},
		"market_getBalance":      {module: "market", handler: s.handleGetBalance},
		"identity_getProfile":    {module: common.ModuleIdentity, handler: s.handleGetProfile},
		"listing_get":            {module: common.ModuleListing, handler: s.handleGetListing},
		"escrow_get":             {module: common.ModuleEscrow, handler: s.handleGetEscrow},
		"escrow_getDispute":      {module: common.ModuleDispute, handler: s.handleGetDispute},
		"escrow_previewRelease":  {module: common.ModuleEscrow, handler: s.handlePreviewRelease},
		"escrow_listEvents":      {module: common.ModuleEscrow, handler: s.handleListEvents},
	}
}

func singleParam(params []json.RawMessage, name string) (json.RawMessage, error) {
	if len(params) != 1 {
		return nil, invalidParams(name+" parameter required", nil)
	}
	return params[0], nil
}

// stringParam accepts either a bare JSON string or an object carrying field.
func stringParam(params []json.RawMessage, field string) (string, error) {
	raw, err := singleParam(params, field)
	if err != nil {
		return "", err
	}
	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return strings.TrimSpace(direct), nil
	}
	var wrapper map[string]string
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if value := strings.TrimSpace(wrapper[field]); value != "" {
			return value, nil
		}
	}
	return "", invalidParams("invalid "+field+" parameter", nil)
}

func addressParam(params []json.RawMessage, field string) (crypto.Address, error) {
	value, err := stringParam(params, field)
	if err != nil {
		return crypto.Address{}, err
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return crypto.Address{}, invalidParams("failed to decode "+field, err.Error())
	}
	return addr, nil
}

func recordParam(params []json.RawMessage, field string) (crypto.RecordAddress, error) {
	value, err := stringParam(params, field)
	if err != nil {
		return crypto.RecordAddress{}, err
	}
	addr, err := crypto.ParseRecordAddress(value)
	if err != nil {
		return crypto.RecordAddress{}, invalidParams("failed to decode "+field, err.Error())
	}
	return addr, nil
}

func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, error) {
	if rpcErr := s.requireAuth(r); rpcErr != nil {
		observability.ModuleMetrics().RecordThrottle("market", "unauthorized")
		return nil, rpcErr
	}
	now := s.now()
	source := clientSource(r)
	if !s.allowSource(source, now) {
		observability.ModuleMetrics().RecordThrottle("market", "rate_limit")
		return nil, &RPCError{HTTPStatus: http.StatusTooManyRequests, Code: codeRateLimited, Message: "transaction rate limit exceeded", Data: source}
	}

	raw, err := singleParam(params, "transaction")
	if err != nil {
		return nil, err
	}
	var tx types.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, invalidParams("invalid transaction format", err.Error())
	}
	hashBytes, err := tx.Hash()
	if err != nil {
		return nil, invalidParams("failed to hash transaction", err.Error())
	}
	hash := hex.EncodeToString(hashBytes)
	if s.seenTx(hash, now) {
		return nil, &RPCError{HTTPStatus: http.StatusConflict, Code: codeDuplicateTx, Message: "transaction has already been submitted", Data: hash}
	}

	receipt, err := s.processor.ApplyTransaction(r.Context(), &tx)
	if err != nil {
		return nil, err
	}
	s.rememberTx(hash, now)
	return receiptResult(receipt), nil
}

func (s *Server) handleGetBalance(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := addressParam(params, "address")
	if err != nil {
		return nil, err
	}
	account, err := s.processor.Account(addr)
	if err != nil {
		return nil, err
	}
	return balanceResult(addr, account), nil
}

func (s *Server) handleGetProfile(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := addressParam(params, "authority")
	if err != nil {
		return nil, err
	}
	profile, err := s.processor.Profile(addr)
	if err != nil {
		return nil, err
	}
	return profileResult(profile), nil
}

type listingParams struct {
	Authority string `json:"authority"`
	ListingID string `json:"listingId"`
}

func (s *Server) handleGetListing(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	raw, err := singleParam(params, "listing")
	if err != nil {
		return nil, err
	}
	var p listingParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidParams("invalid listing parameter", err.Error())
	}
	authority, err := crypto.DecodeAddress(p.Authority)
	if err != nil {
		return nil, invalidParams("failed to decode authority", err.Error())
	}
	l, err := s.processor.Listing(authority, p.ListingID)
	if err != nil {
		return nil, err
	}
	return listingResult(l), nil
}

func (s *Server) handleGetEscrow(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := recordParam(params, "escrow")
	if err != nil {
		return nil, err
	}
	esc, err := s.processor.Escrow(addr)
	if err != nil {
		return nil, err
	}
	return escrowResult(esc), nil
}

func (s *Server) handleGetDispute(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := recordParam(params, "escrow")
	if err != nil {
		return nil, err
	}
	d, err := s.processor.Dispute(addr)
	if err != nil {
		return nil, err
	}
	return disputeResult(d), nil
}

func (s *Server) handlePreviewRelease(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	addr, err := recordParam(params, "escrow")
	if err != nil {
		return nil, err
	}
	preview, err := s.processor.PreviewRelease(addr)
	if err != nil {
		return nil, err
	}
	return previewResult(preview), nil
}

type listEventsParams struct {
	Type  string `json:"type"`
	After int64  `json:"after"`
	Limit int    `json:"limit"`
}

func (s *Server) handleListEvents(r *http.Request, params []json.RawMessage) (interface{}, error) {
	if len(params) > 1 {
		return nil, invalidParams("too many parameters", nil)
	}
	if s.events == nil {
		return nil, &RPCError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "event log unavailable"}
	}
	var p listEventsParams
	if len(params) == 1 {
		if err := json.Unmarshal(params[0], &p); err != nil {
			return nil, invalidParams("invalid filter parameter", err.Error())
		}
	}
	if p.After < 0 || p.Limit < 0 {
		return nil, invalidParams("after and limit must not be negative", nil)
	}
	entries, err := s.events.List(r.Context(), eventlog.Filter{Type: strings.TrimSpace(p.Type), After: p.After, Limit: p.Limit})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []eventlog.Entry{}
	}
	next := p.After
	if len(entries) > 0 {
		next = entries[len(entries)-1].Sequence
	}
	return EventsResult{Events: entries, Next: next}, nil
}
