// Package nip47 holds the NIP-47 (Nostr Wallet Connect) payload models and
// protocol constants shared by the RPC layer and the wallet API.
package nip47

import (
	"encoding/json"
)

const (
	InfoEventKind = 13194
	RequestKind   = 23194
	ResponseKind  = 23195
)

const (
	PayInvoiceMethod       = "pay_invoice"
	GetBalanceMethod       = "get_balance"
	GetInfoMethod          = "get_info"
	MakeInvoiceMethod      = "make_invoice"
	LookupInvoiceMethod    = "lookup_invoice"
	ListTransactionsMethod = "list_transactions"
	PayKeysendMethod       = "pay_keysend"
)

// Standard NIP-47 error codes a service may return.
const (
	ErrorInternal            = "INTERNAL"
	ErrorNotImplemented      = "NOT_IMPLEMENTED"
	ErrorQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrorInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrorUnauthorized        = "UNAUTHORIZED"
	ErrorExpired             = "EXPIRED"
	ErrorRestricted          = "RESTRICTED"
	ErrorOther               = "OTHER"
)

// Request is the decrypted content of a kind-23194 event.
type Request struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// Response is the decrypted content of a kind-23195 event. Exactly one of
// Error and Result is present in a well-formed response.
type Response struct {
	ResultType string          `json:"result_type"`
	Error      *Error          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Transaction is the shape shared by make_invoice and lookup_invoice
// results. Amounts are millisatoshis.
type Transaction struct {
	Type            string `json:"type,omitempty"`
	Invoice         string `json:"invoice,omitempty"`
	Description     string `json:"description,omitempty"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Preimage        string `json:"preimage,omitempty"`
	PaymentHash     string `json:"payment_hash,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	FeesPaid        int64  `json:"fees_paid,omitempty"`
	CreatedAt       int64  `json:"created_at,omitempty"`
	ExpiresAt       *int64 `json:"expires_at,omitempty"`
	SettledAt       *int64 `json:"settled_at,omitempty"`
}

type PayParams struct {
	Invoice string `json:"invoice"`
	Amount  *int64 `json:"amount,omitempty"`
}

type PayResponse struct {
	Preimage string `json:"preimage"`
	FeesPaid *int64 `json:"fees_paid,omitempty"`
}

type MakeInvoiceParams struct {
	Amount          int64  `json:"amount"`
	Description     string `json:"description,omitempty"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Expiry          int64  `json:"expiry,omitempty"`
}

type LookupInvoiceParams struct {
	Invoice     string `json:"invoice,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
}

type BalanceResponse struct {
	Balance       int64  `json:"balance"`
	MaxAmount     int    `json:"max_amount,omitempty"`
	BudgetRenewal string `json:"budget_renewal,omitempty"`
}

type GetInfoResponse struct {
	Alias       string   `json:"alias"`
	Color       string   `json:"color"`
	Pubkey      string   `json:"pubkey"`
	Network     string   `json:"network"`
	BlockHeight uint32   `json:"block_height"`
	BlockHash   string   `json:"block_hash"`
	Methods     []string `json:"methods"`
}
