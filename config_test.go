package nwc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccountSecret = "91ba716fa9e7ea2fcbad360cf4f8e0d312f73984da63d90f524ad61a6a1e7dbe"
	testAccountPubkey = "b38ce15d3d9874ee710dfabb7ff9801b1e0e20aace6e9a1a05fa7482a04387d1"
	testServiceSecret = "a9b6e8cfd1a4b82f0c3e5d7091b2c4d6e8f0a1b3c5d7e9f102132435465768a9"
	testServicePubkey = "bfe148f43369765d43fa9b2075e656fcf58db8859c97e1d349b0443dcb418f20"
)

func TestParsePairingURL(t *testing.T) {
	cfg, err := ParsePairingURL("nostr+walletconnect://" + testServicePubkey +
		"?relay=wss%3A%2F%2Frelay.example.com%2Fv1&secret=" + testAccountSecret)
	require.NoError(t, err)
	assert.Equal(t, testServicePubkey, cfg.ServicePubkey)
	assert.Equal(t, testAccountSecret, cfg.AccountSecret)
	assert.Equal(t, testAccountPubkey, cfg.AccountPubkey)
	assert.Equal(t, "wss://relay.example.com/v1", cfg.RelayURL)
	assert.Len(t, cfg.sharedSecret, 32)
}

func TestParsePairingURLParameterOrder(t *testing.T) {
	a, err := ParsePairingURL("nostr+walletconnect://" + testServicePubkey +
		"?relay=ws://localhost:8080&secret=" + testAccountSecret)
	require.NoError(t, err)
	b, err := ParsePairingURL("nostr+walletconnect://" + testServicePubkey +
		"?secret=" + testAccountSecret + "&relay=ws://localhost:8080&extra=ignored")
	require.NoError(t, err)
	assert.Equal(t, a.RelayURL, b.RelayURL)
	assert.Equal(t, a.sharedSecret, b.sharedSecret)
}

func TestParsePairingURLRejectsBadInput(t *testing.T) {
	valid := "nostr+walletconnect://" + testServicePubkey +
		"?relay=wss://relay.example.com&secret=" + testAccountSecret

	cases := map[string]string{
		"wrong scheme":     strings.Replace(valid, "nostr+walletconnect", "https", 1),
		"short pubkey":     "nostr+walletconnect://abcd?relay=wss://r.example.com&secret=" + testAccountSecret,
		"uppercase pubkey": "nostr+walletconnect://" + strings.ToUpper(testServicePubkey) + "?relay=wss://r.example.com&secret=" + testAccountSecret,
		"non-hex pubkey":   "nostr+walletconnect://" + strings.Repeat("zz", 32) + "?relay=wss://r.example.com&secret=" + testAccountSecret,
		"missing relay":    "nostr+walletconnect://" + testServicePubkey + "?secret=" + testAccountSecret,
		"http relay":       "nostr+walletconnect://" + testServicePubkey + "?relay=https://r.example.com&secret=" + testAccountSecret,
		"missing secret":   "nostr+walletconnect://" + testServicePubkey + "?relay=wss://r.example.com",
		"short secret":     "nostr+walletconnect://" + testServicePubkey + "?relay=wss://r.example.com&secret=abcd",
		"non-hex secret":   "nostr+walletconnect://" + testServicePubkey + "?relay=wss://r.example.com&secret=" + strings.Repeat("zz", 32),
	}
	for name, input := range cases {
		_, err := ParsePairingURL(input)
		var perr *PairingURLError
		assert.ErrorAs(t, err, &perr, name)
	}
}
