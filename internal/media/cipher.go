package media

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	errBlockSize = errors.New("ciphertext is not a multiple of the block size")
	errPadding   = errors.New("invalid pkcs7 padding")
)

// CipherState is the key and initialization vector of an AES-128-CBC
// decryptor. Every Decrypt call starts a fresh CBC chain from IV, so a state
// can be cloned per segment and used from several goroutines.
type CipherState struct {
	key [aes.BlockSize]byte
	iv  [aes.BlockSize]byte
}

// NewCipherState builds a decryptor state from a 16 byte key and IV.
func NewCipherState(key, iv []byte) (*CipherState, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("aes-128 key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	s := &CipherState{}
	copy(s.key[:], key)
	copy(s.iv[:], iv)
	return s, nil
}

// Clone returns an independent copy of s. Cloning nil yields nil.
func (s *CipherState) Clone() *CipherState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Key returns a copy of the key bytes.
func (s *CipherState) Key() []byte { return append([]byte(nil), s.key[:]...) }

// IV returns a copy of the initialization vector.
func (s *CipherState) IV() []byte { return append([]byte(nil), s.iv[:]...) }

// Decrypt decrypts data in place with key and strips the PKCS7 padding. A
// nil key returns data unchanged. On failure the returned DecodeError holds
// a copy of the ciphertext.
func Decrypt(data []byte, key *CipherState) ([]byte, error) {
	if key == nil {
		return data, nil
	}
	content := append([]byte(nil), data...)

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, decryptError(content, errBlockSize)
	}
	block, err := aes.NewCipher(key.key[:])
	if err != nil {
		return nil, decryptError(content, err)
	}
	cipher.NewCBCDecrypter(block, key.iv[:]).CryptBlocks(data, data)

	n, err := unpad(data)
	if err != nil {
		return nil, decryptError(content, err)
	}
	return data[:n], nil
}

func decryptError(content []byte, err error) *DecodeError {
	return &DecodeError{Message: err.Error(), Content: content, URL: "n/a", Err: fmt.Errorf("%w: %w", ErrDecrypt, err)}
}

// unpad returns the length of data without its PKCS7 padding.
func unpad(data []byte) (int, error) {
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return 0, errPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return 0, errPadding
		}
	}
	return len(data) - pad, nil
}

// parseIV turns an EXT-X-KEY IV attribute into bytes. The attribute is a
// 0x-prefixed hex string; a value that is not hex but already 16 bytes long
// is taken as raw bytes.
func parseIV(attr string) ([]byte, error) {
	if s, ok := strings.CutPrefix(strings.ToLower(attr), "0x"); ok {
		if len(s)%2 == 1 {
			s = "0" + s
		}
		iv, err := hex.DecodeString(s)
		if err == nil {
			if len(iv) > aes.BlockSize {
				return nil, fmt.Errorf("iv %q longer than %d bytes", attr, aes.BlockSize)
			}
			// Shorter hex values are big-endian numbers.
			padded := make([]byte, aes.BlockSize)
			copy(padded[aes.BlockSize-len(iv):], iv)
			return padded, nil
		}
	}
	if len(attr) == aes.BlockSize {
		return []byte(attr), nil
	}
	return nil, fmt.Errorf("unsupported iv %q", attr)
}
