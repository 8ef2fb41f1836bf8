package media

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"
	"testing"
)

// mapFetcher serves fixed bodies by URL and records every request.
type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func newMapFetcher(bodies map[string]string) *mapFetcher {
	f := &mapFetcher{bodies: make(map[string][]byte, len(bodies))}
	for u, b := range bodies {
		f.bodies[u] = []byte(b)
	}
	return f
}

func (f *mapFetcher) set(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

func (f *mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.bodies[url]
	if !ok {
		return nil, &TransportError{URL: url, StatusCode: 404}
	}
	// Callers decrypt in place, so hand out a copy.
	return bytes.Clone(body), nil
}

func (f *mapFetcher) requested(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

// encryptCBC pads plaintext with PKCS7 and encrypts it with AES-128-CBC.
func encryptCBC(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	buf := append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(pad)}, pad)...)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf
}

// encryptRawCBC encrypts whole blocks without adding padding.
func encryptRawCBC(t *testing.T, key, iv, blocks []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	buf := bytes.Clone(blocks)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf
}

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, aes.BlockSize)
}

func mustCipherState(t *testing.T, key, iv []byte) *CipherState {
	t.Helper()
	s, err := NewCipherState(key, iv)
	if err != nil {
		t.Fatalf("NewCipherState: %v", err)
	}
	return s
}

func segmentURL(i int) string {
	return fmt.Sprintf("https://cdn.example/seg%d.ts", i)
}
