package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Resolver turns raw stream sets into variants and variants into segments.
// It keeps no state between calls; every result is rebuilt from the
// manifests.
type Resolver struct {
	fetcher Fetcher
	log     *slog.Logger
}

// NewResolver returns a Resolver that fetches through f. A nil log
// discards output.
func NewResolver(f Fetcher, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{fetcher: f, log: log}
}

// HLSVariants resolves the HLS master playlist for hardsub and returns its
// variants. A nil hardsub selects the unsubtitled stream.
func (r *Resolver) HLSVariants(ctx context.Context, streams RawStreamSet, hardsub *Locale) ([]Variant, error) {
	masterURL, err := ResolveURL(streams, hardsub, TransportHLS)
	if err != nil {
		return nil, err
	}
	raw, err := r.fetcher.Fetch(ctx, masterURL)
	if err != nil {
		return nil, err
	}
	variants, err := ParseMaster(raw, masterURL)
	if err != nil {
		return nil, err
	}
	r.log.Debug("hls variants resolved", slog.String("url", masterURL), slog.Int("variants", len(variants)))
	return variants, nil
}

// DASHVariants resolves the MPD for hardsub and splits its representations
// into video and audio variants.
func (r *Resolver) DASHVariants(ctx context.Context, streams RawStreamSet, hardsub *Locale) (video, audio []Variant, err error) {
	mpdURL, err := ResolveURL(streams, hardsub, TransportDASH)
	if err != nil {
		return nil, nil, err
	}
	raw, err := r.fetcher.Fetch(ctx, mpdURL)
	if err != nil {
		return nil, nil, err
	}
	sets, err := ParseMPD(raw, mpdURL)
	if err != nil {
		return nil, nil, err
	}

	for _, set := range sets {
		variants, err := set.Variants()
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) && de.URL == "" {
				de.URL = mpdURL
				de.Content = raw
			}
			return nil, nil, err
		}
		if set.Video {
			video = append(video, variants...)
		} else {
			audio = append(audio, variants...)
		}
	}
	r.log.Debug("dash variants resolved",
		slog.String("url", mpdURL),
		slog.Int("video", len(video)),
		slog.Int("audio", len(audio)))
	return video, audio, nil
}

// Segments returns the segments of v in playback order. DASH variants start
// with a zero-length initialization segment.
func (r *Resolver) Segments(ctx context.Context, v Variant) ([]Segment, error) {
	switch v.Addressing.(type) {
	case HLSAddressing:
		return r.hlsSegments(ctx, v)
	case DASHAddressing:
		return dashSegments(v)
	}
	return nil, &InternalError{Message: "variant has no addressing"}
}

func (r *Resolver) hlsSegments(ctx context.Context, v Variant) ([]Segment, error) {
	a, ok := v.Addressing.(HLSAddressing)
	if !ok {
		return nil, &InternalError{Message: "variant url should be hls"}
	}
	raw, err := r.fetcher.Fetch(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	return r.parseMedia(ctx, raw, a.URL)
}

// WriteSegment fetches seg, decrypts it and writes the plaintext to w in a
// single call. Nothing is written when fetching or decrypting fails.
func (r *Resolver) WriteSegment(ctx context.Context, seg Segment, w io.Writer) error {
	data, err := r.fetchSegment(ctx, seg)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write segment %s: %w", seg.URL, err)
	}
	return nil
}

// Download writes every segment to w in order. Up to workers segments are
// fetched and decrypted at the same time.
func (r *Resolver) Download(ctx context.Context, segments []Segment, w io.Writer, workers int) error {
	if workers < 1 {
		workers = 1
	}
	for start := 0; start < len(segments); start += workers {
		end := min(start+workers, len(segments))
		batch := make([][]byte, end-start)

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				data, err := r.fetchSegment(gctx, segments[i])
				if err != nil {
					return err
				}
				batch[i-start] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i, data := range batch {
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write segment %s: %w", segments[start+i].URL, err)
			}
		}
	}
	return nil
}

func (r *Resolver) fetchSegment(ctx context.Context, seg Segment) ([]byte, error) {
	raw, err := r.fetcher.Fetch(ctx, seg.URL)
	if err != nil {
		return nil, err
	}
	data, err := Decrypt(raw, seg.Key)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.URL = seg.URL
		}
		return nil, err
	}
	return data, nil
}
