// Package cryptox seals directory exports at rest. The key is derived from
// an operator passphrase with Argon2id and the payload is encrypted with
// AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	kdfArgon2id = "argon2id"
	cipherAES   = "aes-256-gcm"
	saltSize    = 16
	keySize     = 32
)

var (
	ErrEmptyPassphrase = errors.New("empty passphrase")
	ErrUnsupported     = errors.New("unsupported sealed envelope")
	ErrOpen            = errors.New("cannot open sealed envelope")
)

// randRead is swapped in tests.
var randRead = rand.Read

// Envelope is the JSON document produced by Seal. Byte fields are base64
// encoded by encoding/json.
type Envelope struct {
	KDF        string `json:"kdf"`
	Cipher     string `json:"cipher"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// DeriveKey stretches a passphrase into a 256-bit key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under passphrase and returns the marshalled Envelope.
// Every call uses a fresh salt and nonce.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, saltSize)
	if _, err := randRead(salt); err != nil {
		return nil, err
	}

	aesgcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := randRead(nonce); err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		KDF:        kdfArgon2id,
		Cipher:     cipherAES,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aesgcm.Seal(nil, nonce, plaintext, nil),
	})
}

// Open reverses Seal. A wrong passphrase or a modified envelope yields ErrOpen.
func Open(sealed, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if env.KDF != kdfArgon2id || env.Cipher != cipherAES {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupported, env.KDF, env.Cipher)
	}

	aesgcm, err := newGCM(DeriveKey(passphrase, env.Salt))
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce", ErrOpen)
	}

	plaintext, err := aesgcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}
