package nwc

import (
	"encoding/hex"
	"net/url"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/lnbits/nwc-client/nip04"
)

// Config is the immutable client identity parsed from a pairing URL.
type Config struct {
	// AccountSecret is the client's 32-byte private key, hex encoded.
	AccountSecret string
	// AccountPubkey is the x-only public key derived from AccountSecret.
	AccountPubkey string
	// ServicePubkey identifies the remote wallet service.
	ServicePubkey string
	// RelayURL is the ws:// or wss:// relay both parties meet on.
	RelayURL string

	// sharedSecret is the cached NIP-04 key for the (account, service) pair.
	sharedSecret []byte
}

// Options tune timing behavior. The zero value selects the defaults; tests
// shorten these to keep the suite fast.
type Options struct {
	// RequestTimeout is the hard deadline for every RPC. Default 10s.
	RequestTimeout time.Duration
	// ReconnectDelay is the fixed backoff between relay dials. Default 5s.
	ReconnectDelay time.Duration
	// InvoicePollInterval is the cadence of lookup_invoice polling. Default 10s.
	InvoicePollInterval time.Duration
	// InvoiceSweepInterval is the cadence of expiry sweeping. Default 5s.
	InvoiceSweepInterval time.Duration
	// TimeoutSweepInterval is the cadence of pending-request sweeping. Default 1s.
	TimeoutSweepInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.ReconnectDelay == 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.InvoicePollInterval == 0 {
		o.InvoicePollInterval = 10 * time.Second
	}
	if o.InvoiceSweepInterval == 0 {
		o.InvoiceSweepInterval = 5 * time.Second
	}
	if o.TimeoutSweepInterval == 0 {
		o.TimeoutSweepInterval = time.Second
	}
	return o
}

// ParsePairingURL parses and validates a
// nostr+walletconnect://<service-pubkey>?relay=<url>&secret=<hex> string.
// Query parameter order is insignificant; values are percent-decoded by
// the URL parser. Any deviation fails with a PairingURLError.
func ParsePairingURL(pairingURL string) (*Config, error) {
	u, err := url.Parse(pairingURL)
	if err != nil {
		return nil, &PairingURLError{Reason: "not a valid url"}
	}
	if u.Scheme != "nostr+walletconnect" {
		return nil, &PairingURLError{Reason: "scheme must be nostr+walletconnect"}
	}
	if !isValid32ByteHex(u.Host) {
		return nil, &PairingURLError{Reason: "service pubkey must be 64 hex characters"}
	}
	query := u.Query()
	relay := query.Get("relay")
	if relay == "" {
		return nil, &PairingURLError{Reason: "missing relay parameter"}
	}
	relayURL, err := url.Parse(relay)
	if err != nil || (relayURL.Scheme != "ws" && relayURL.Scheme != "wss") || relayURL.Host == "" {
		return nil, &PairingURLError{Reason: "relay must be a ws:// or wss:// url"}
	}
	secret := query.Get("secret")
	if secret == "" {
		return nil, &PairingURLError{Reason: "missing secret parameter"}
	}
	if !isValid32ByteHex(secret) {
		return nil, &PairingURLError{Reason: "secret must be 64 hex characters"}
	}

	pubkey, err := derivePublicKey(secret)
	if err != nil {
		return nil, &PairingURLError{Reason: "secret is not a valid private key"}
	}
	sharedSecret, err := nip04.ComputeSharedSecret(u.Host, secret)
	if err != nil {
		return nil, &PairingURLError{Reason: "service pubkey is not a valid curve point"}
	}

	return &Config{
		AccountSecret: secret,
		AccountPubkey: pubkey,
		ServicePubkey: u.Host,
		RelayURL:      relay,
		sharedSecret:  sharedSecret,
	}, nil
}

func derivePublicKey(secretHex string) (string, error) {
	skBytes, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", err
	}
	_, pk := btcec.PrivKeyFromBytes(skBytes)
	return hex.EncodeToString(schnorr.SerializePubKey(pk)), nil
}

func isValid32ByteHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
