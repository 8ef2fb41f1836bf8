package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

// ParseMaster decodes an HLS master playlist into one Variant per
// EXT-X-STREAM-INF entry. Missing RESOLUTION, FRAME-RATE or CODECS
// attributes default to zero values. Relative variant URIs are resolved
// against manifestURL.
func ParseMaster(raw []byte, manifestURL string) ([]Variant, error) {
	pl, err := decodePlaylist(raw, manifestURL, m3u8.MASTER)
	if err != nil {
		return nil, err
	}
	master := pl.(*m3u8.MasterPlaylist)

	variants := make([]Variant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		variants = append(variants, Variant{
			Resolution: parseResolution(v.Resolution),
			Bandwidth:  uint64(v.Bandwidth),
			FPS:        v.FrameRate,
			Codecs:     v.Codecs,
			Addressing: HLSAddressing{URL: resolveReference(manifestURL, v.URI)},
		})
	}
	return variants, nil
}

// parseMedia decodes an HLS media playlist into segments. The current key
// starts as nil and is replaced by every segment whose EXT-X-KEY carries a
// URI; segments without a key tag keep the previous key.
func (r *Resolver) parseMedia(ctx context.Context, raw []byte, manifestURL string) ([]Segment, error) {
	pl, err := decodePlaylist(raw, manifestURL, m3u8.MEDIA)
	if err != nil {
		return nil, err
	}
	playlist := pl.(*m3u8.MediaPlaylist)

	var (
		segments []Segment
		key      *CipherState
	)
	for _, s := range playlist.Segments {
		// The decoder preallocates the segment slice; unused slots are nil.
		if s == nil {
			continue
		}
		if s.Key != nil && s.Key.URI != "" {
			key, err = r.fetchKey(ctx, s.Key, manifestURL)
			if err != nil {
				return nil, err
			}
		}
		segments = append(segments, Segment{
			Key:    key.Clone(),
			URL:    resolveReference(manifestURL, s.URI),
			Length: time.Duration(s.Duration * float64(time.Second)),
		})
	}
	return segments, nil
}

// fetchKey downloads the key behind an EXT-X-KEY tag. When the tag has no
// IV the key bytes double as the IV.
func (r *Resolver) fetchKey(ctx context.Context, k *m3u8.Key, manifestURL string) (*CipherState, error) {
	keyURL := resolveReference(manifestURL, k.URI)
	raw, err := r.fetcher.Fetch(ctx, keyURL)
	if err != nil {
		return nil, err
	}

	iv := raw
	if k.IV != "" {
		iv, err = parseIV(k.IV)
		if err != nil {
			return nil, decodeError(manifestURL, []byte(k.IV), err)
		}
	}

	state, err := NewCipherState(raw, iv)
	if err != nil {
		return nil, decodeError(keyURL, raw, err)
	}
	r.log.Debug("hls key rotated", slog.String("key_url", keyURL), slog.Bool("explicit_iv", k.IV != ""))
	return state, nil
}

func decodePlaylist(raw []byte, manifestURL string, want m3u8.ListType) (m3u8.Playlist, error) {
	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(raw), true)
	if err != nil {
		return nil, decodeError(manifestURL, raw, err)
	}
	if listType != want {
		return nil, &DecodeError{
			Message: fmt.Sprintf("expected %s playlist", listTypeName(want)),
			Content: raw,
			URL:     manifestURL,
		}
	}
	return pl, nil
}

func listTypeName(t m3u8.ListType) string {
	if t == m3u8.MASTER {
		return "master"
	}
	return "media"
}

// parseResolution reads a WIDTHxHEIGHT attribute; anything else is 0x0.
func parseResolution(s string) Resolution {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}
	}
	width, err := strconv.ParseUint(strings.TrimSpace(w), 10, 64)
	if err != nil {
		return Resolution{}
	}
	height, err := strconv.ParseUint(strings.TrimSpace(h), 10, 64)
	if err != nil {
		return Resolution{}
	}
	return Resolution{Width: width, Height: height}
}

// resolveReference resolves ref against base. Absolute refs and unparsable
// input are returned as they are.
func resolveReference(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
