package gateway

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"log/slog"
	"os"
	"testing"

	"stream-resolver/internal/media"
)

const (
	testMasterURL = "https://cdn.example/master.m3u8"
	testMPDURL    = "https://cdn.example/manifest.mpd"
	testKeyURL    = "https://cdn.example/key"
)

const testMaster = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720
720/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
360/index.m3u8
`

const testMedia = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
s0.ts
#EXT-X-KEY:METHOD=AES-128,URI="https://cdn.example/key"
#EXTINF:5.5,
s1.ts
#EXT-X-ENDLIST
`

const testMPD = `<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static">
  <Period>
    <AdaptationSet mimeType="video/mp4" maxWidth="1920">
      <SegmentTemplate timescale="1000" initialization="$RepresentationID$/init.mp4" media="$RepresentationID$/$Number$.m4s" startNumber="1">
        <SegmentTimeline><S d="4000" r="1"/></SegmentTimeline>
      </SegmentTemplate>
      <Representation id="v1" bandwidth="3000000" width="1920" height="1080">
        <BaseURL>https://cdn.example/dash/</BaseURL>
      </Representation>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4">
      <SegmentTemplate timescale="1000" initialization="$RepresentationID$/init.mp4" media="$RepresentationID$/$Number$.m4s" startNumber="1">
        <SegmentTimeline><S d="4000"/></SegmentTimeline>
      </SegmentTemplate>
      <Representation id="a1" bandwidth="128000">
        <BaseURL>https://cdn.example/dash/</BaseURL>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>
`

var testKey = bytes.Repeat([]byte{0x2a}, aes.BlockSize)

// upstream is an in-memory CDN keyed by URL.
type upstream map[string][]byte

func (u upstream) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, ok := u[url]
	if !ok {
		return nil, &media.TransportError{URL: url, StatusCode: 404}
	}
	return bytes.Clone(body), nil
}

// newUpstream serves one HLS stream with a plaintext and an encrypted
// segment, and one DASH stream.
func newUpstream(t *testing.T) upstream {
	t.Helper()
	return upstream{
		testMasterURL:                          []byte(testMaster),
		"https://cdn.example/720/index.m3u8":   []byte(testMedia),
		"https://cdn.example/720/s0.ts":        []byte("plain-0"),
		"https://cdn.example/720/s1.ts":        encrypt(t, testKey, []byte("secret-1")),
		testKeyURL:                             testKey,
		testMPDURL:                             []byte(testMPD),
		"https://cdn.example/dash/v1/init.mp4": []byte("init-v1"),
		"https://cdn.example/dash/v1/1.m4s":    []byte("v1-1"),
		"https://cdn.example/dash/v1/2.m4s":    []byte("v1-2"),
		"https://cdn.example/dash/a1/init.mp4": []byte("init-a1"),
		"https://cdn.example/dash/a1/1.m4s":    []byte("a1-1"),
	}
}

func testStreams() media.RawStreamSet {
	return media.RawStreamSet{
		"":      {HLS: testMasterURL, DASH: testMPDURL},
		"en-US": {HLS: "https://cdn.example/en/master.m3u8"},
	}
}

// encrypt pads with PKCS7 and encrypts with AES-128-CBC using the key as IV.
func encrypt(t *testing.T, key, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	buf := append(bytes.Clone(plaintext), bytes.Repeat([]byte{byte(pad)}, pad)...)
	cipher.NewCBCEncrypter(block, key).CryptBlocks(buf, buf)
	return buf
}

func newTestService(t *testing.T, up upstream) *Service {
	t.Helper()
	resolver := media.NewResolver(up, nil)
	return NewService(NewInMemoryRepository(), resolver, 2)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
