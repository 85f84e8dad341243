package nwc

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubID(t *testing.T) {
	r := newRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.newSubID()
		assert.Len(t, id, 64)
		assert.True(t, strings.HasPrefix(id, "lnbits"))
		assert.False(t, seen[id], "sub id reused: %s", id)
		seen[id] = true
		for _, c := range id {
			assert.True(t, c > 0x20 && c < 0x7f, "non-printable char in sub id")
		}
	}
}

func TestInsertAndCompleteByEventID(t *testing.T) {
	r := newRegistry()
	deadline := time.Now().Add(time.Minute)
	req, err := r.insert("ev1", "sub1", "pay_invoice", deadline)
	require.NoError(t, err)
	assert.Equal(t, 1, r.len())

	// duplicate event id is a caller bug
	_, err = r.insert("ev1", "sub2", "pay_invoice", deadline)
	assert.ErrorIs(t, err, ErrDuplicateEventID)

	entry := r.completeByEventID("ev1", outcome{payload: []byte("hi")})
	require.NotNil(t, entry)
	assert.Equal(t, "sub1", entry.subID)
	assert.Equal(t, 0, r.len())

	out := <-req.done
	require.NoError(t, out.err)
	assert.Equal(t, []byte("hi"), out.payload)

	// a late completion finds nothing
	assert.Nil(t, r.completeByEventID("ev1", outcome{}))
}

func TestCloseBySubID(t *testing.T) {
	r := newRegistry()
	req, err := r.insert("ev1", "sub1", "get_balance", time.Now().Add(time.Minute))
	require.NoError(t, err)

	entry := r.closeBySubID("sub1", &SubscriptionClosedError{Reason: "auth required"})
	require.NotNil(t, entry)
	assert.True(t, entry.closed)
	assert.Equal(t, 0, r.len())

	out := <-req.done
	var closedErr *SubscriptionClosedError
	require.ErrorAs(t, out.err, &closedErr)
	assert.Equal(t, "auth required", closedErr.Reason)

	assert.Nil(t, r.closeBySubID("sub1", ErrTimeout))
}

func TestSweep(t *testing.T) {
	r := newRegistry()
	now := time.Now()
	expired, err := r.insert("ev1", "sub1", "get_info", now.Add(-time.Second))
	require.NoError(t, err)
	_, err = r.insert("ev2", "sub2", "get_info", now.Add(time.Minute))
	require.NoError(t, err)

	swept := r.sweep(now)
	require.Len(t, swept, 1)
	assert.Equal(t, "ev1", swept[0].eventID)
	assert.Equal(t, 1, r.len())

	out := <-expired.done
	assert.ErrorIs(t, out.err, ErrTimeout)
}

func TestFailAll(t *testing.T) {
	r := newRegistry()
	a, _ := r.insert("ev1", "sub1", "get_info", time.Now().Add(time.Minute))
	b, _ := r.insert("ev2", "sub2", "get_balance", time.Now().Add(time.Minute))

	r.failAll(ErrShutdown)
	assert.Equal(t, 0, r.len())
	assert.ErrorIs(t, (<-a.done).err, ErrShutdown)
	assert.ErrorIs(t, (<-b.done).err, ErrShutdown)
}
