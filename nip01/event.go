package nip01

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event is a NIP-01 event. Field names match the wire format exactly.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// VerifyResult is the outcome of verifying an inbound event.
type VerifyResult int

const (
	Valid VerifyResult = iota
	IDMismatch
	InvalidSignature
)

func (r VerifyResult) String() string {
	switch r {
	case Valid:
		return "valid"
	case IDMismatch:
		return "id mismatch"
	default:
		return "invalid signature"
	}
}

// Serialize produces the canonical byte sequence the event id hashes over:
// the JSON array [0,pubkey,created_at,kind,tags,content] with no whitespace
// between tokens and non-ASCII code points preserved.
func (e *Event) Serialize() []byte {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode never fails for these types.
	enc.Encode([]interface{}{0, e.PubKey, e.CreatedAt, e.Kind, tags, e.Content})
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// ComputeID returns the lowercase hex SHA-256 of the canonical serialization.
func (e *Event) ComputeID() string {
	h := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(h[:])
}

// Finalize fills in PubKey, ID and Sig from the given hex secret key.
func (e *Event) Finalize(secretKeyHex string) error {
	skBytes, err := hex.DecodeString(secretKeyHex)
	if err != nil || len(skBytes) != 32 {
		return fmt.Errorf("invalid secret key")
	}
	sk, pk := btcec.PrivKeyFromBytes(skBytes)
	e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(pk))
	e.ID = e.ComputeID()
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return err
	}
	sig, err := schnorr.Sign(sk, idBytes)
	if err != nil {
		return fmt.Errorf("schnorr sign: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify recomputes the id and checks the Schnorr signature against the
// author pubkey. A malformed pubkey or signature counts as InvalidSignature.
func (e *Event) Verify() VerifyResult {
	if e.ComputeID() != e.ID {
		return IDMismatch
	}
	if len(e.Sig) != 128 || len(e.PubKey) != 64 {
		return InvalidSignature
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return InvalidSignature
	}
	pkBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return InvalidSignature
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return InvalidSignature
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return InvalidSignature
	}
	pk, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return InvalidSignature
	}
	if !sig.Verify(idBytes, pk) {
		return InvalidSignature
	}
	return Valid
}

// TagValues returns the values of every tag with the given name.
func (e *Event) TagValues(name string) []string {
	var values []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			values = append(values, tag[1])
		}
	}
	return values
}
