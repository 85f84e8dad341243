// Package nip04 implements the NIP-04 encrypted content envelope:
// ECDH over secp256k1 for the shared key and AES-256-CBC with PKCS#7
// padding for the payload, serialized as "<base64(ct)>?iv=<base64(iv)>".
package nip04

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ErrInvalidCiphertext is returned for any envelope that cannot be decrypted:
// missing separator, bad base64, misaligned ciphertext or bad padding.
var ErrInvalidCiphertext = errors.New("nip04: invalid ciphertext")

// ComputeSharedSecret derives the symmetric key for a (secret key, peer
// pubkey) pair: the x coordinate of the ECDH point. The peer key is an
// x-only hex pubkey and is lifted with even parity, per NIP-04 convention.
func ComputeSharedSecret(peerPubHex string, secretKeyHex string) ([]byte, error) {
	skBytes, err := hex.DecodeString(secretKeyHex)
	if err != nil || len(skBytes) != 32 {
		return nil, fmt.Errorf("nip04: invalid secret key")
	}
	sk, _ := btcec.PrivKeyFromBytes(skBytes)

	pkBytes, err := hex.DecodeString("02" + peerPubHex)
	if err != nil {
		return nil, fmt.Errorf("nip04: invalid peer pubkey")
	}
	pk, err := btcec.ParsePubKey(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("nip04: invalid peer pubkey: %w", err)
	}
	return btcec.GenerateSharedSecret(sk, pk), nil
}

// Encrypt encrypts plaintext under the 32-byte key with a fresh random IV.
func Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("nip04: key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("nip04: reading random iv: %w", err)
	}

	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padding)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	zero(padded)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt. All failures collapse to ErrInvalidCiphertext.
func Decrypt(envelope string, key []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("nip04: key must be 32 bytes")
	}
	parts := strings.Split(envelope, "?iv=")
	if len(parts) != 2 {
		return "", ErrInvalidCiphertext
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	padding := int(plaintext[len(plaintext)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(plaintext) {
		zero(plaintext)
		return "", ErrInvalidCiphertext
	}
	for _, b := range plaintext[len(plaintext)-padding:] {
		if int(b) != padding {
			zero(plaintext)
			return "", ErrInvalidCiphertext
		}
	}
	out := string(plaintext[:len(plaintext)-padding])
	zero(plaintext)
	return out, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
