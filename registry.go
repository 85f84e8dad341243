package nwc

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// outcome is the single-shot result of a pending request.
type outcome struct {
	payload []byte // decrypted response content
	err     error
}

// pendingRequest correlates one outbound RPC with its inbound response.
type pendingRequest struct {
	subID   string
	eventID string
	method  string

	deadline time.Time
	// done carries exactly one outcome. Buffered so the fulfilling side
	// never blocks on a caller that already gave up.
	done chan outcome
	// closed is set once CLOSE was sent or the relay sent CLOSED, so we
	// don't answer a CLOSED subscription with another CLOSE.
	closed bool
}

// registry is the in-memory map of in-flight requests. All entries are
// indexed by request event id and by subscription id; insertions and
// completions are serialized under one mutex.
type registry struct {
	mu      sync.Mutex
	byEvent map[string]*pendingRequest
	bySub   map[string]*pendingRequest
	counter uint64
}

func newRegistry() *registry {
	return &registry{
		byEvent: make(map[string]*pendingRequest),
		bySub:   make(map[string]*pendingRequest),
	}
}

const subIDLength = 64

var subIDAlphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// newSubID allocates a 64-character subscription id, unique for the
// lifetime of the registry: a fixed prefix, a monotonic counter and a
// random letter suffix filling the remainder.
func (r *registry) newSubID() string {
	r.mu.Lock()
	r.counter++
	n := r.counter
	r.mu.Unlock()

	head := fmt.Sprintf("lnbits%d", n)
	suffix := make([]byte, subIDLength-len(head))
	if _, err := rand.Read(suffix); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range suffix {
		suffix[i] = subIDAlphabet[int(b)%len(subIDAlphabet)]
	}
	return head + string(suffix)
}

// insert registers a new pending request keyed by event id.
func (r *registry) insert(eventID, subID, method string, deadline time.Time) (*pendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEvent[eventID]; exists {
		return nil, ErrDuplicateEventID
	}
	req := &pendingRequest{
		subID:    subID,
		eventID:  eventID,
		method:   method,
		deadline: deadline,
		done:     make(chan outcome, 1),
	}
	r.byEvent[eventID] = req
	r.bySub[subID] = req
	return req, nil
}

// completeByEventID removes the entry for eventID, fulfills it, and returns
// it so the caller can decide whether to send CLOSE. Returns nil when no
// entry matches, e.g. a late response after a timeout.
func (r *registry) completeByEventID(eventID string, out outcome) *pendingRequest {
	r.mu.Lock()
	req, ok := r.byEvent[eventID]
	if ok {
		delete(r.byEvent, eventID)
		delete(r.bySub, req.subID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	req.done <- out
	return req
}

// closeBySubID removes and fails the entry for subID after the relay sent
// CLOSED. The entry is marked closed so no CLOSE is sent back.
func (r *registry) closeBySubID(subID string, err error) *pendingRequest {
	r.mu.Lock()
	req, ok := r.bySub[subID]
	if ok {
		delete(r.byEvent, req.eventID)
		delete(r.bySub, subID)
		req.closed = true
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}
	req.done <- outcome{err: err}
	return req
}

// sweep removes and fails every entry whose deadline has passed.
func (r *registry) sweep(now time.Time) []*pendingRequest {
	r.mu.Lock()
	var expired []*pendingRequest
	for id, req := range r.byEvent {
		if now.After(req.deadline) {
			delete(r.byEvent, id)
			delete(r.bySub, req.subID)
			expired = append(expired, req)
		}
	}
	r.mu.Unlock()
	for _, req := range expired {
		req.done <- outcome{err: ErrTimeout}
	}
	return expired
}

// failAll drains the registry, failing every pending caller. Used on
// shutdown.
func (r *registry) failAll(err error) {
	r.mu.Lock()
	pending := make([]*pendingRequest, 0, len(r.byEvent))
	for _, req := range r.byEvent {
		pending = append(pending, req)
	}
	r.byEvent = make(map[string]*pendingRequest)
	r.bySub = make(map[string]*pendingRequest)
	r.mu.Unlock()
	for _, req := range pending {
		req.done <- outcome{err: err}
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEvent)
}
