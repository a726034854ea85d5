package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"github.com/zeebo/blake3"
)

var ErrSealedValue = errors.New("sealed value is malformed")

// Sealer encrypts short secrets with AES-256-GCM. The output is base64 of
// nonce followed by ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from secret, so any secret length works.
func NewSealer(secret string) (*Sealer, error) {
	key := blake3.Sum256([]byte("plex-ai token sealing\x00" + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

func (s *Sealer) Seal(plainText string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrSealedValue
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrSealedValue
	}
	plain, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrSealedValue
	}
	return string(plain), nil
}
