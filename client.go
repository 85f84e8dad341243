// Package nwc implements the client side of Nostr Wallet Connect (NIP-47):
// a local wallet API bridged onto a NIP-01 relay websocket, with NIP-04
// encrypted request/response payloads.
package nwc

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lnbits/nwc-client/nip01"
	"github.com/lnbits/nwc-client/nip47"
)

// Client is the long-lived NWC client. It owns the relay connection, the
// pending-request registry and the invoice tracker, and runs their
// background tasks until Shutdown.
type Client struct {
	cfg    *Config
	opts   Options
	logger *log.Logger

	relay    *relayConn
	registry *registry
	tracker  *invoiceTracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	// infoSem keeps the 13194 lookup single-flight; infoMu only guards
	// the cached pointer, never a network await.
	infoSem chan struct{}
	infoMu  sync.Mutex
	info    *ServiceInfo
}

// NewClient connects to the relay named in cfg and starts the background
// tasks. The returned client is usable immediately; operations block until
// the first connection is up.
func NewClient(cfg *Config, logger *log.Logger, opts Options) *Client {
	if logger == nil {
		logger = log.New()
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		registry: newRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		infoSem:  make(chan struct{}, 1),
	}
	c.relay = newRelayConn(cfg.RelayURL, opts.ReconnectDelay, logger, c.handleRelayMessage, ctx.Done())
	c.tracker = newInvoiceTracker(logger, c.lookupTransaction)

	c.wg.Add(4)
	go func() {
		defer c.wg.Done()
		c.relay.run(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.sweepLoop(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.tracker.pollLoop(ctx, opts.InvoicePollInterval)
	}()
	go func() {
		defer c.wg.Done()
		c.tracker.sweepLoop(ctx, opts.InvoiceSweepInterval)
	}()
	return c
}

// Shutdown cancels all background tasks, closes the socket and fails every
// pending request with ErrShutdown. Safe to call more than once.
func (c *Client) Shutdown() {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.registry.failAll(ErrShutdown)
		c.tracker.close()
		c.logger.Info("NWC client shut down")
	})
}

// sweepLoop fails pending requests whose deadline has passed.
func (c *Client) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TimeoutSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, req := range c.registry.sweep(now) {
				c.logger.WithField("method", req.method).Warn("Request timed out")
				if !req.closed {
					c.sendClose(req.subID)
				}
			}
		}
	}
}

// handleRelayMessage dispatches one inbound frame. It runs on the receive
// loop, so it must not block on network writes.
func (c *Client) handleRelayMessage(msg *nip01.RelayMessage) {
	switch msg.Label {
	case "OK":
		if msg.Accepted {
			return
		}
		req := c.registry.completeByEventID(msg.EventID, outcome{err: &RelayRejectedError{Message: msg.Message}})
		if req != nil && !req.closed {
			c.sendClose(req.subID)
		}
	case "EVENT":
		c.handleEvent(msg.SubID, msg.Event)
	case "EOSE":
		// end of stored events, nothing to do
	case "CLOSED":
		c.registry.closeBySubID(msg.SubID, &SubscriptionClosedError{Reason: msg.Message})
	case "NOTICE":
		c.logger.Infof("Relay notice: %s", msg.Message)
	default:
		c.logger.Warnf("Ignoring unknown relay frame %q", msg.Label)
	}
}

func (c *Client) handleEvent(subID string, ev *nip01.Event) {
	if result := ev.Verify(); result != nip01.Valid {
		c.logger.WithField("event_id", ev.ID).Errorf("Dropping event: %s", result)
		return
	}

	// The info note is plaintext and correlated by subscription id.
	if ev.Kind == nip47.InfoEventKind {
		req := c.registry.completeByEventID(subID, outcome{payload: []byte(ev.Content)})
		if req != nil && !req.closed {
			c.sendClose(req.subID)
		}
		return
	}

	decrypted, err := decryptContent(ev.Content, c.cfg.sharedSecret)
	if err != nil {
		c.logger.WithError(err).WithField("event_id", ev.ID).Error("Dropping undecryptable event")
		return
	}
	// The first matching "e" tag consumes the event.
	for _, requestID := range ev.TagValues("e") {
		req := c.registry.completeByEventID(requestID, outcome{payload: decrypted})
		if req == nil {
			continue
		}
		if !req.closed {
			c.sendClose(req.subID)
		}
		return
	}
}

// sendClose unsubscribes in the background so dispatch never blocks on the
// write path.
func (c *Client) sendClose(subID string) {
	frame, err := nip01.CloseFrame(subID)
	if err != nil {
		return
	}
	go c.relay.send(c.ctx, frame)
}

// checkRunning maps a cancelled root context to ErrShutdown.
func (c *Client) checkRunning() error {
	select {
	case <-c.ctx.Done():
		return ErrShutdown
	default:
		return nil
	}
}
