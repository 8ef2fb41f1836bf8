package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080,FRAME-RATE=23.974,CODECS="avc1.640028,mp4a.40.2"
https://cdn.example/1080/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000
360/index.m3u8
`

const mediaPlaylistKeys = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:4.0,
https://cdn.example/seg0.ts
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/a"
#EXTINF:4.0,
https://cdn.example/seg1.ts
#EXTINF:4.0,
https://cdn.example/seg2.ts
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/b",IV=0x000102030405060708090a0b0c0d0e0f
#EXTINF:2.5,
https://cdn.example/seg3.ts
#EXT-X-ENDLIST
`

func TestParseMaster(t *testing.T) {
	variants, err := ParseMaster([]byte(masterPlaylist), "https://cdn.example/master.m3u8")
	require.NoError(t, err)
	require.Len(t, variants, 2)

	full := variants[0]
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, full.Resolution)
	assert.Equal(t, "1920x1080", full.Resolution.String())
	assert.Equal(t, uint64(5000000), full.Bandwidth)
	assert.InDelta(t, 23.974, full.FPS, 0.0001)
	assert.Equal(t, "avc1.640028,mp4a.40.2", full.Codecs)
	u, ok := full.HLSURL()
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/1080/index.m3u8", u)

	sparse := variants[1]
	assert.Equal(t, Resolution{}, sparse.Resolution)
	assert.Equal(t, uint64(800000), sparse.Bandwidth)
	assert.Zero(t, sparse.FPS)
	assert.Empty(t, sparse.Codecs)
	u, _ = sparse.HLSURL()
	assert.Equal(t, "https://cdn.example/360/index.m3u8", u)

	tr, ok := sparse.Transport()
	require.True(t, ok)
	assert.Equal(t, TransportHLS, tr)
}

func TestParseMaster_malformed(t *testing.T) {
	raw := []byte("this is not a playlist")
	_, err := ParseMaster(raw, "https://cdn.example/master.m3u8")

	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, raw, de.Content)
	assert.Equal(t, "https://cdn.example/master.m3u8", de.URL)
	assert.NotEmpty(t, de.Message)
}

func TestParseMaster_rejectsMediaPlaylist(t *testing.T) {
	_, err := ParseMaster([]byte(mediaPlaylistKeys), "https://cdn.example/media.m3u8")

	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "expected master playlist", de.Message)
}

func TestParseResolution(t *testing.T) {
	tests := map[string]Resolution{
		"1280x720": {Width: 1280, Height: 720},
		"":         {},
		"1280":     {},
		"axb":      {},
		"1280x":    {},
	}
	for in, want := range tests {
		assert.Equal(t, want, parseResolution(in), in)
	}
}

func TestParseMedia_keyPersistence(t *testing.T) {
	keyA, keyB := testKey(0xaa), testKey(0xbb)
	fetcher := newMapFetcher(nil)
	fetcher.set("https://keys.example/a", keyA)
	fetcher.set("https://keys.example/b", keyB)
	r := NewResolver(fetcher, nil)

	segments, err := r.parseMedia(context.Background(), []byte(mediaPlaylistKeys), "https://cdn.example/media.m3u8")
	require.NoError(t, err)
	require.Len(t, segments, 4)

	explicitIV := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	assert.Nil(t, segments[0].Key)
	assert.False(t, segments[0].Encrypted())

	require.NotNil(t, segments[1].Key)
	assert.Equal(t, keyA, segments[1].Key.Key())
	assert.Equal(t, keyA, segments[1].Key.IV(), "iv falls back to the key bytes")

	require.NotNil(t, segments[2].Key)
	assert.Equal(t, keyA, segments[2].Key.Key())
	assert.Equal(t, keyA, segments[2].Key.IV())
	assert.NotSame(t, segments[1].Key, segments[2].Key, "segments get their own clone")

	require.NotNil(t, segments[3].Key)
	assert.Equal(t, keyB, segments[3].Key.Key())
	assert.Equal(t, explicitIV, segments[3].Key.IV())

	var urls []string
	var lengths []time.Duration
	for _, s := range segments {
		urls = append(urls, s.URL)
		lengths = append(lengths, s.Length)
	}
	wantURLs := []string{segmentURL(0), segmentURL(1), segmentURL(2), segmentURL(3)}
	if diff := cmp.Diff(wantURLs, urls); diff != "" {
		t.Errorf("segment urls (-want +got):\n%s", diff)
	}
	wantLengths := []time.Duration{4 * time.Second, 4 * time.Second, 4 * time.Second, 2500 * time.Millisecond}
	if diff := cmp.Diff(wantLengths, lengths); diff != "" {
		t.Errorf("segment lengths (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, fetcher.requested("https://keys.example/a"), "inherited key is not refetched")
}

func TestParseMedia_plaintextAndRelativeURIs(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
chunk-0.ts
#EXTINF:6.0,
/abs/chunk-1.ts
#EXT-X-ENDLIST
`
	r := NewResolver(newMapFetcher(nil), nil)
	segments, err := r.parseMedia(context.Background(), []byte(playlist), "https://cdn.example/v/720/index.m3u8")
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, "https://cdn.example/v/720/chunk-0.ts", segments[0].URL)
	assert.Equal(t, "https://cdn.example/abs/chunk-1.ts", segments[1].URL)
	for _, s := range segments {
		assert.Nil(t, s.Key)
	}
}

func TestParseMedia_keyFetchError(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/missing"
#EXTINF:4.0,
https://cdn.example/seg0.ts
#EXT-X-ENDLIST
`
	r := NewResolver(newMapFetcher(nil), nil)
	_, err := r.parseMedia(context.Background(), []byte(playlist), "https://cdn.example/media.m3u8")

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "https://keys.example/missing", te.URL)
}

func TestParseMedia_badKeyLength(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/short"
#EXTINF:4.0,
https://cdn.example/seg0.ts
#EXT-X-ENDLIST
`
	fetcher := newMapFetcher(map[string]string{"https://keys.example/short": "tooshort"})
	r := NewResolver(fetcher, nil)
	_, err := r.parseMedia(context.Background(), []byte(playlist), "https://cdn.example/media.m3u8")

	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "https://keys.example/short", de.URL)
	assert.Equal(t, []byte("tooshort"), de.Content)
}

func TestParseMedia_rejectsMasterPlaylist(t *testing.T) {
	r := NewResolver(newMapFetcher(nil), nil)
	_, err := r.parseMedia(context.Background(), []byte(masterPlaylist), "https://cdn.example/master.m3u8")

	var de *DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, "expected media playlist", de.Message)
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://a.example/x/master.m3u8", "https://b.example/y.m3u8", "https://b.example/y.m3u8"},
		{"https://a.example/x/master.m3u8", "y/z.m3u8", "https://a.example/x/y/z.m3u8"},
		{"https://a.example/x/master.m3u8", "../up.m3u8", "https://a.example/up.m3u8"},
		{"not a url", "seg.ts", "seg.ts"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, resolveReference(tc.base, tc.ref), tc.ref)
	}
}
