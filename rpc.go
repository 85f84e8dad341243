package nwc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lnbits/nwc-client/nip01"
	"github.com/lnbits/nwc-client/nip04"
	"github.com/lnbits/nwc-client/nip47"
)

// ServiceInfo describes the remote wallet service: the methods it
// advertises plus the metadata an optional get_info call returned.
type ServiceInfo struct {
	Methods     map[string]bool
	Alias       string
	Color       string
	Pubkey      string
	Network     string
	BlockHeight uint32
	BlockHash   string
}

// Supports reports whether the service advertises the given NIP-47 method.
func (i *ServiceInfo) Supports(method string) bool {
	return i.Methods[method]
}

// call performs one NIP-47 RPC: it publishes an encrypted kind-23194
// request and awaits the first matching kind-23195 response. The REQ for
// the response filter goes out before the EVENT so the reply cannot race
// the subscription.
func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	if err := c.relay.waitForConnection(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(nip47.Request{Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	content, err := nip04.Encrypt(string(body), c.cfg.sharedSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ev := &nip01.Event{
		CreatedAt: now.Unix(),
		Kind:      nip47.RequestKind,
		Tags:      [][]string{{"p", c.cfg.ServicePubkey}},
		Content:   content,
	}
	if err := ev.Finalize(c.cfg.AccountSecret); err != nil {
		return nil, err
	}

	subID := c.registry.newSubID()
	filter := nip01.Filter{
		Kinds: []int{nip47.ResponseKind},
		PTags: []string{c.cfg.AccountPubkey},
		ETags: []string{ev.ID},
		Since: now.Unix(),
	}
	req, err := c.registry.insert(ev.ID, subID, method, now.Add(c.opts.RequestTimeout))
	if err != nil {
		return nil, err
	}

	reqFrame, err := nip01.ReqFrame(subID, filter)
	if err != nil {
		return nil, err
	}
	evFrame, err := nip01.EventFrame(ev)
	if err != nil {
		return nil, err
	}
	if err := c.relay.send(ctx, reqFrame); err != nil {
		return nil, c.abandon(ev.ID, req, err)
	}
	if err := c.relay.send(ctx, evFrame); err != nil {
		return nil, c.abandon(ev.ID, req, err)
	}

	out, err := c.await(ctx, ev.ID, req)
	if err != nil {
		return nil, err
	}
	return parseResponse(out.payload, method)
}

// await blocks on the completion slot, converting caller cancellation and
// client shutdown into a removed entry so a late response finds nothing.
func (c *Client) await(ctx context.Context, eventID string, req *pendingRequest) (outcome, error) {
	select {
	case out := <-req.done:
		if out.err != nil {
			return outcome{}, out.err
		}
		return out, nil
	case <-ctx.Done():
		return outcome{}, c.abandon(eventID, req, ctx.Err())
	case <-c.ctx.Done():
		return outcome{}, c.abandon(eventID, req, ErrShutdown)
	}
}

// abandon removes the pending entry and reports why. If the receive loop
// won the race, its outcome is already in the slot and is discarded.
func (c *Client) abandon(eventID string, req *pendingRequest, cause error) error {
	if entry := c.registry.completeByEventID(eventID, outcome{err: cause}); entry != nil && !entry.closed {
		c.sendClose(entry.subID)
	}
	out := <-req.done
	if out.err != nil {
		return out.err
	}
	return cause
}

// parseResponse demultiplexes a decrypted NIP-47 response payload.
func parseResponse(payload []byte, method string) (json.RawMessage, error) {
	var resp nip47.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, ErrMalformedResponse
	}
	if (resp.Error == nil) == (resp.Result == nil) {
		return nil, ErrMalformedResponse
	}
	if resp.Error != nil {
		return nil, &ServiceError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.ResultType != method {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedResultType, resp.ResultType, method)
	}
	return resp.Result, nil
}

func decryptContent(content string, key []byte) ([]byte, error) {
	plaintext, err := nip04.Decrypt(content, key)
	if err != nil {
		return nil, err
	}
	return []byte(plaintext), nil
}

// Info returns the wallet service capabilities, fetched once per process.
// The kind-13194 info note provides the space-separated method list; when
// get_info is among them its richer response is merged in. A get_info
// failure is non-fatal.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	if info := c.cachedInfo(); info != nil {
		return info, nil
	}

	// Single-flight via a semaphore rather than a held mutex, so waiting
	// for a slow fetch stays cancellable and no lock spans network I/O.
	select {
	case c.infoSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrShutdown
	}
	defer func() { <-c.infoSem }()

	// The fetch we waited on may have populated the cache.
	if info := c.cachedInfo(); info != nil {
		return info, nil
	}
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	if err := c.relay.waitForConnection(ctx); err != nil {
		return nil, err
	}

	// Synthetic registry entry keyed by the subscription id itself: the
	// dispatcher routes the plaintext info note through the same path as
	// RPC responses.
	subID := c.registry.newSubID()
	req, err := c.registry.insert(subID, subID, "info", time.Now().Add(c.opts.RequestTimeout))
	if err != nil {
		return nil, err
	}
	filter := nip01.Filter{
		Kinds:   []int{nip47.InfoEventKind},
		Authors: []string{c.cfg.ServicePubkey},
	}
	reqFrame, err := nip01.ReqFrame(subID, filter)
	if err != nil {
		return nil, err
	}
	if err := c.relay.send(ctx, reqFrame); err != nil {
		return nil, c.abandon(subID, req, err)
	}
	out, err := c.await(ctx, subID, req)
	if err != nil {
		return nil, err
	}

	info := &ServiceInfo{Methods: make(map[string]bool)}
	for _, method := range strings.Fields(string(out.payload)) {
		info.Methods[method] = true
	}

	if info.Supports(nip47.GetInfoMethod) {
		if err := c.mergeGetInfo(ctx, info); err != nil {
			c.logger.WithError(err).Warn("get_info failed, caching bare service info")
		}
	}
	c.infoMu.Lock()
	c.info = info
	c.infoMu.Unlock()
	c.logger.WithField("methods", len(info.Methods)).Info("Cached wallet service info")
	return info, nil
}

func (c *Client) cachedInfo() *ServiceInfo {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	return c.info
}

func (c *Client) mergeGetInfo(ctx context.Context, info *ServiceInfo) error {
	result, err := c.call(ctx, nip47.GetInfoMethod, struct{}{})
	if err != nil {
		return err
	}
	var gi nip47.GetInfoResponse
	if err := json.Unmarshal(result, &gi); err != nil {
		return ErrMalformedResponse
	}
	// The get_info method list is authoritative when present.
	if len(gi.Methods) > 0 {
		info.Methods = make(map[string]bool, len(gi.Methods))
		for _, method := range gi.Methods {
			info.Methods[method] = true
		}
	}
	info.Alias = gi.Alias
	info.Color = gi.Color
	info.Pubkey = gi.Pubkey
	info.Network = gi.Network
	info.BlockHeight = gi.BlockHeight
	info.BlockHash = gi.BlockHash
	return nil
}

// lookupTransaction is the tracker's view into the RPC layer.
func (c *Client) lookupTransaction(ctx context.Context, paymentHash string) (*nip47.Transaction, error) {
	result, err := c.call(ctx, nip47.LookupInvoiceMethod, nip47.LookupInvoiceParams{PaymentHash: paymentHash})
	if err != nil {
		return nil, err
	}
	var tx nip47.Transaction
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, ErrMalformedResponse
	}
	return &tx, nil
}
