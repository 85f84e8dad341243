package nwc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	decodepay "github.com/nbd-wtf/ln-decodepay"

	"github.com/lnbits/nwc-client/nip47"
)

// defaultInvoiceExpiry is assumed when the service reports no expires_at.
const defaultInvoiceExpiry = 3600

// InvoiceResponse is the result of CreateInvoice.
type InvoiceResponse struct {
	// CheckingID is the payment hash, the stable identifier for lookups.
	CheckingID string
	// PaymentRequest is the BOLT11 invoice to hand to the payer.
	PaymentRequest string
}

// PaymentResponse is the result of PayInvoice. Settled is nil when the
// settlement state could not be determined.
type PaymentResponse struct {
	PaymentHash string
	FeeMsat     *int64
	Preimage    string
	Settled     *bool
}

// PaymentStatus is the result of InvoiceStatus and PaymentStatus. Settled
// is nil when the state is unknown.
type PaymentStatus struct {
	Settled  *bool
	FeeMsat  *int64
	Preimage string
}

// WalletStatus is the result of Status.
type WalletStatus struct {
	BalanceMsat int64
}

// CreateInvoice asks the wallet service for a new invoice over amountSat
// satoshis and registers it for settlement tracking.
//
// Description precedence: an explicit 32-byte descriptionHash wins; else a
// non-empty unhashedDescription is hashed and sent alongside its
// plaintext; else memo is sent as the description.
func (c *Client) CreateInvoice(ctx context.Context, amountSat int64, memo string, descriptionHash []byte, unhashedDescription string) (*InvoiceResponse, error) {
	if amountSat < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if len(descriptionHash) != 0 && len(descriptionHash) != 32 {
		return nil, fmt.Errorf("description hash must be exactly 32 bytes, got %d", len(descriptionHash))
	}
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Supports(nip47.MakeInvoiceMethod) {
		return nil, &UnsupportedError{Method: nip47.MakeInvoiceMethod}
	}

	params := nip47.MakeInvoiceParams{Amount: amountSat * 1000}
	switch {
	case len(descriptionHash) == 32:
		params.DescriptionHash = hex.EncodeToString(descriptionHash)
		params.Description = memo
	case unhashedDescription != "":
		sum := sha256.Sum256([]byte(unhashedDescription))
		params.DescriptionHash = hex.EncodeToString(sum[:])
		params.Description = unhashedDescription
	default:
		params.Description = memo
	}

	result, err := c.call(ctx, nip47.MakeInvoiceMethod, params)
	if err != nil {
		return nil, err
	}
	var tx nip47.Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, ErrMalformedResponse
	}
	if tx.PaymentHash == "" || tx.Invoice == "" {
		return nil, ErrMalformedResponse
	}

	if info.Supports(nip47.LookupInvoiceMethod) {
		c.tracker.track(tx.PaymentHash, invoiceExpiry(&tx))
	}
	return &InvoiceResponse{CheckingID: tx.PaymentHash, PaymentRequest: tx.Invoice}, nil
}

// PayInvoice pays a BOLT11 invoice. feeLimitMsat is advisory only: NIP-47
// defines no fee-limit field, so it is not sent on the wire.
func (c *Client) PayInvoice(ctx context.Context, bolt11 string, feeLimitMsat int64) (*PaymentResponse, error) {
	decoded, err := decodepay.Decodepay(bolt11)
	if err != nil {
		return nil, fmt.Errorf("invalid bolt11 invoice: %w", err)
	}

	result, err := c.call(ctx, nip47.PayInvoiceMethod, nip47.PayParams{Invoice: bolt11})
	if err != nil {
		return nil, err
	}
	var pay nip47.PayResponse
	if err := json.Unmarshal(result, &pay); err != nil {
		return nil, ErrMalformedResponse
	}

	resp := &PaymentResponse{
		PaymentHash: decoded.PaymentHash,
		Preimage:    pay.Preimage,
		FeeMsat:     pay.FeesPaid,
	}
	if pay.Preimage != "" {
		settled := true
		resp.Settled = &settled
	}

	// Best effort: the pay_invoice result rarely carries fees, so ask the
	// service for the transaction it just settled.
	if tx, err := c.lookupByInvoice(ctx, bolt11); err == nil {
		if tx.FeesPaid > 0 {
			fees := tx.FeesPaid
			resp.FeeMsat = &fees
		}
		if tx.Preimage != "" {
			resp.Preimage = tx.Preimage
		}
		settled := isSettled(tx)
		resp.Settled = &settled
	}
	return resp, nil
}

// InvoiceStatus reports the settlement state of an invoice created by this
// client. It never fails: remote errors collapse to an unknown state.
func (c *Client) InvoiceStatus(ctx context.Context, checkingID string) *PaymentStatus {
	return c.lookupStatus(ctx, checkingID)
}

// PaymentStatus reports the settlement state of an outgoing payment by its
// payment hash. Like InvoiceStatus it never fails.
func (c *Client) PaymentStatus(ctx context.Context, checkingID string) *PaymentStatus {
	return c.lookupStatus(ctx, checkingID)
}

func (c *Client) lookupStatus(ctx context.Context, checkingID string) *PaymentStatus {
	tx, err := c.lookupTransaction(ctx, checkingID)
	if err != nil {
		c.logger.WithError(err).WithField("checking_id", checkingID).Debug("Status lookup failed")
		return &PaymentStatus{}
	}
	status := &PaymentStatus{Preimage: tx.Preimage}
	if tx.FeesPaid > 0 {
		fees := tx.FeesPaid
		status.FeeMsat = &fees
	}
	if isSettled(tx) {
		settled := true
		status.Settled = &settled
		return status
	}
	if tx.ExpiresAt != nil && time.Now().Unix() > *tx.ExpiresAt {
		settled := false
		status.Settled = &settled
	}
	return status
}

// Status reports the wallet balance in millisatoshis. A service without
// get_balance yields a zero balance, not an error.
func (c *Client) Status(ctx context.Context) (*WalletStatus, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return nil, err
	}
	if !info.Supports(nip47.GetBalanceMethod) {
		return &WalletStatus{}, nil
	}
	result, err := c.call(ctx, nip47.GetBalanceMethod, struct{}{})
	if err != nil {
		return nil, err
	}
	var balance nip47.BalanceResponse
	if err := json.Unmarshal(result, &balance); err != nil {
		return nil, ErrMalformedResponse
	}
	return &WalletStatus{BalanceMsat: balance.Balance}, nil
}

// PaidInvoicesStream returns the channel of settled checking ids. Each id
// is delivered at most once per process; the channel closes on Shutdown.
func (c *Client) PaidInvoicesStream() <-chan string {
	return c.tracker.paid
}

func (c *Client) lookupByInvoice(ctx context.Context, bolt11 string) (*nip47.Transaction, error) {
	result, err := c.call(ctx, nip47.LookupInvoiceMethod, nip47.LookupInvoiceParams{Invoice: bolt11})
	if err != nil {
		return nil, err
	}
	var tx nip47.Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, ErrMalformedResponse
	}
	return &tx, nil
}

func invoiceExpiry(tx *nip47.Transaction) int64 {
	if tx.ExpiresAt != nil && *tx.ExpiresAt > 0 {
		return *tx.ExpiresAt
	}
	createdAt := tx.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	return createdAt + defaultInvoiceExpiry
}
