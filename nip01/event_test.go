package nip01

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "91ba716fa9e7ea2fcbad360cf4f8e0d312f73984da63d90f524ad61a6a1e7dbe"
	testPubkey  = "b38ce15d3d9874ee710dfabb7ff9801b1e0e20aace6e9a1a05fa7482a04387d1"
	otherPubkey = "bfe148f43369765d43fa9b2075e656fcf58db8859c97e1d349b0443dcb418f20"
)

func fixtureEvent() *Event {
	return &Event{
		PubKey:    testPubkey,
		CreatedAt: 1700000000,
		Kind:      23194,
		Tags:      [][]string{{"p", otherPubkey}},
		Content:   "hello wörld",
	}
}

func TestCanonicalSerialization(t *testing.T) {
	ev := fixtureEvent()
	want := `[0,"` + testPubkey + `",1700000000,23194,[["p","` + otherPubkey + `"]],"hello wörld"]`
	assert.Equal(t, want, string(ev.Serialize()))
	assert.Equal(t,
		"a935780a056c55823b77684ddf06835d0268cc8f85f90b187792a9dcf5a22d66",
		ev.ComputeID())
}

func TestSerializeNilTags(t *testing.T) {
	ev := &Event{PubKey: testPubkey, CreatedAt: 1, Kind: 1, Content: ""}
	assert.Equal(t, `[0,"`+testPubkey+`",1,1,[],""]`, string(ev.Serialize()))
}

func TestSerializeDoesNotEscapeHTML(t *testing.T) {
	ev := &Event{PubKey: testPubkey, CreatedAt: 1, Kind: 1, Tags: [][]string{}, Content: `a<b&c>d`}
	assert.Contains(t, string(ev.Serialize()), `a<b&c>d`)
}

func TestFinalizeAndVerify(t *testing.T) {
	ev := fixtureEvent()
	require.NoError(t, ev.Finalize(testSecret))

	assert.Equal(t, testPubkey, ev.PubKey)
	assert.Len(t, ev.ID, 64)
	assert.Len(t, ev.Sig, 128)
	assert.Equal(t, Valid, ev.Verify())
}

func TestVerifyIDMismatch(t *testing.T) {
	ev := fixtureEvent()
	require.NoError(t, ev.Finalize(testSecret))
	ev.Content = "tampered"
	assert.Equal(t, IDMismatch, ev.Verify())
}

func TestVerifyInvalidSignature(t *testing.T) {
	ev := fixtureEvent()
	require.NoError(t, ev.Finalize(testSecret))

	// flip a signature bit, keep the id consistent
	sig := []byte(ev.Sig)
	if sig[0] == '0' {
		sig[0] = '1'
	} else {
		sig[0] = '0'
	}
	ev.Sig = string(sig)
	assert.Equal(t, InvalidSignature, ev.Verify())
}

func TestVerifyWrongAuthor(t *testing.T) {
	ev := fixtureEvent()
	require.NoError(t, ev.Finalize(testSecret))
	ev.PubKey = otherPubkey
	ev.ID = ev.ComputeID()
	assert.Equal(t, InvalidSignature, ev.Verify())
}

func TestFinalizeRejectsBadSecret(t *testing.T) {
	ev := fixtureEvent()
	assert.Error(t, ev.Finalize("not-hex"))
	assert.Error(t, ev.Finalize("abcd"))
}

func TestTagValues(t *testing.T) {
	ev := &Event{Tags: [][]string{
		{"e", "id1"},
		{"p", "pk1"},
		{"e", "id2"},
		{"e"}, // malformed, skipped
	}}
	assert.Equal(t, []string{"id1", "id2"}, ev.TagValues("e"))
	assert.Equal(t, []string{"pk1"}, ev.TagValues("p"))
	assert.Nil(t, ev.TagValues("a"))
}
