// Package cryptox encrypts and decrypts managed-account passwords at rest.
//
// The scheme is AES-256-CBC with a fresh random IV per record. A blob on the
// wire is "hex(iv):hex(ciphertext)". The AES key is derived once from the
// deployment's master passphrase with scrypt and held for the process
// lifetime; identical plaintexts therefore still produce distinct blobs
// because only the IV varies.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt reports a blob that could not be decrypted: wrong key,
// truncated ciphertext, missing separator, bad hex or bad padding. Callers
// on the read path treat it as "secret unavailable", not as a request
// failure.
var ErrDecrypt = errors.New("cryptox: cannot decrypt blob")

const (
	blobSeparator = ":"

	// scrypt parameters match the deployed key derivation so existing
	// ciphertext stays readable. Changing them invalidates every stored
	// secret.
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
)

var kdfSalt = []byte("salt")

// Cipher encrypts and decrypts secret fields with a key derived once from
// the master passphrase. The zero value is unusable; use New.
type Cipher struct {
	key []byte
}

// New derives the AES key from the master passphrase. Derivation is slow by
// design; do it once at startup and share the Cipher.
func New(masterKey string) (*Cipher, error) {
	if masterKey == "" {
		return nil, errors.New("cryptox: master key is empty")
	}
	key, err := scrypt.Key([]byte(masterKey), kdfSalt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("cryptox: key derivation failed: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns "hex(iv):hex(ciphertext)" for the given plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("cryptox: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("cryptox: iv generation failed: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + blobSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Any malformed or undecryptable blob yields
// ErrDecrypt; the error intentionally does not say which check failed.
func (c *Cipher) Decrypt(blob string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(blob, blobSeparator)
	if !ok {
		return "", ErrDecrypt
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrDecrypt
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrDecrypt
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", ErrDecrypt
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("invalid padding byte")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
