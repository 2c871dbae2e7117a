package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// Encryptor encrypts evidence blobs at rest in the object store adapter
// (SPEC_FULL.md domain stack). Adapted from the teacher's
// security.EncryptionService: Argon2id key derivation feeding AES-256-GCM.
type Encryptor struct {
	key []byte
}

// NewEncryptor derives a 256-bit key from the configured master key. A
// blank passphrase yields a zero-value Encryptor whose Encrypt/Decrypt
// are no-ops, so object-store tests can run without a configured key.
func NewEncryptor(passphrase string) *Encryptor {
	if passphrase == "" {
		return &Encryptor{}
	}
	salt := sha256.Sum256([]byte("payment-orchestrator-evidence-salt-v1"))
	key := argon2.IDKey([]byte(passphrase), salt[:], argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return &Encryptor{key: key}
}

func (e *Encryptor) enabled() bool { return len(e.key) == 32 }

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if !e.enabled() {
		return plaintext, nil
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if !e.enabled() {
		return ciphertext, nil
	}
	data := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(data, ciphertext)
	if err != nil {
		return nil, err
	}
	data = data[:n]

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, sealed, nil)
}
