package nwc

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lnbits/nwc-client/nip47"
)

// paidQueueSize bounds the settlement queue. A slow consumer applies
// backpressure to the poller; settlements are never dropped.
const paidQueueSize = 64

// pendingInvoice is an unsettled invoice issued by this process.
type pendingInvoice struct {
	checkingID string
	expiresAt  int64
	settled    bool
}

// invoiceTracker polls lookup_invoice for invoices created locally and
// emits each settled checking id exactly once on the paid queue. Entries
// leave the tracker on settlement or expiry; nothing survives a restart.
type invoiceTracker struct {
	logger *log.Logger
	lookup func(ctx context.Context, paymentHash string) (*nip47.Transaction, error)

	mu       sync.Mutex
	invoices map[string]*pendingInvoice
	paid     chan string
}

func newInvoiceTracker(logger *log.Logger, lookup func(ctx context.Context, paymentHash string) (*nip47.Transaction, error)) *invoiceTracker {
	return &invoiceTracker{
		logger:   logger,
		lookup:   lookup,
		invoices: make(map[string]*pendingInvoice),
		paid:     make(chan string, paidQueueSize),
	}
}

// track registers an invoice for settlement polling. A checking id is
// tracked at most once.
func (t *invoiceTracker) track(checkingID string, expiresAt int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.invoices[checkingID]; exists {
		return
	}
	t.invoices[checkingID] = &pendingInvoice{checkingID: checkingID, expiresAt: expiresAt}
}

// pollLoop looks up every tracked invoice each interval and enqueues newly
// settled checking ids.
func (t *invoiceTracker) pollLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, checkingID := range t.unsettled() {
			tx, err := t.lookup(ctx, checkingID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.logger.WithError(err).WithField("checking_id", checkingID).Debug("Invoice lookup failed")
				continue
			}
			if !isSettled(tx) {
				continue
			}
			if !t.markSettled(checkingID) {
				continue
			}
			t.logger.WithField("checking_id", checkingID).Info("Invoice settled")
			select {
			case t.paid <- checkingID:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sweepLoop removes settled entries and expired unsettled ones.
func (t *invoiceTracker) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for id, inv := range t.invoices {
				if inv.settled || now.Unix() > inv.expiresAt {
					delete(t.invoices, id)
				}
			}
			t.mu.Unlock()
		}
	}
}

func (t *invoiceTracker) unsettled() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.invoices))
	for id, inv := range t.invoices {
		if !inv.settled {
			ids = append(ids, id)
		}
	}
	return ids
}

// markSettled flips the settled flag, reporting whether this caller won.
// The winner is the one that enqueues.
func (t *invoiceTracker) markSettled(checkingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	inv, ok := t.invoices[checkingID]
	if !ok || inv.settled {
		return false
	}
	inv.settled = true
	return true
}

func (t *invoiceTracker) tracked(checkingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.invoices[checkingID]
	return ok
}

// close ends the paid stream. Called only after the poll loop has exited.
func (t *invoiceTracker) close() {
	close(t.paid)
}

// isSettled is the NIP-47 settlement condition: a positive settled_at and
// a non-empty preimage.
func isSettled(tx *nip47.Transaction) bool {
	return tx.SettledAt != nil && *tx.SettledAt > 0 && tx.Preimage != ""
}
