package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	"stream-resolver/internal/media"
)

// DefaultDownloadWorkers is the number of segments fetched at once by
// Download when the configured value is not positive.
const DefaultDownloadWorkers = 4

var (
	// ErrStreamNotFound is returned for an id that was never registered.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrUnknownTrack is returned for a track other than hls, video or audio.
	ErrUnknownTrack = errors.New("unknown track")

	// ErrIndexOutOfRange is returned for a variant or segment index outside
	// the resolved list.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Service resolves registered streams on demand and delegates storage to
// Repository. Nothing derived from a manifest is cached.
type Service struct {
	repo     Repository
	resolver *media.Resolver
	workers  int
}

// NewService returns a Service that stores streams in repo and resolves
// them with resolver. If workers <= 0, DefaultDownloadWorkers is used.
func NewService(repo Repository, resolver *media.Resolver, workers int) *Service {
	if workers <= 0 {
		workers = DefaultDownloadWorkers
	}
	return &Service{repo: repo, resolver: resolver, workers: workers}
}

// Register stores the raw stream set of id.
func (s *Service) Register(id StreamID, streams media.RawStreamSet) error {
	return s.repo.Register(id, streams)
}

// Remove forgets id.
func (s *Service) Remove(id StreamID) {
	s.repo.Remove(id)
}

// HardsubLocales lists the locales registered for id, sorted.
func (s *Service) HardsubLocales(id StreamID) ([]media.Locale, error) {
	streams, ok := s.repo.Streams(id)
	if !ok {
		return nil, ErrStreamNotFound
	}
	return media.HardsubLocales(streams), nil
}

// Variants resolves the variant list of one track of id.
func (s *Service) Variants(ctx context.Context, id StreamID, track Track, hardsub *media.Locale) ([]media.Variant, error) {
	if !track.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrack, track)
	}
	streams, ok := s.repo.Streams(id)
	if !ok {
		return nil, ErrStreamNotFound
	}

	if track == TrackHLS {
		return s.resolver.HLSVariants(ctx, streams, hardsub)
	}
	video, audio, err := s.resolver.DASHVariants(ctx, streams, hardsub)
	if err != nil {
		return nil, err
	}
	if track == TrackVideo {
		return video, nil
	}
	return audio, nil
}

// Segments resolves the segment list of the variant ref points at.
func (s *Service) Segments(ctx context.Context, ref VariantRef) ([]media.Segment, error) {
	v, err := s.variant(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.resolver.Segments(ctx, v)
}

// WriteSegment writes the decrypted segment at index to w.
func (s *Service) WriteSegment(ctx context.Context, ref VariantRef, index int, w io.Writer) error {
	segments, err := s.Segments(ctx, ref)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(segments) {
		return fmt.Errorf("%w: segment %d of %d", ErrIndexOutOfRange, index, len(segments))
	}
	return s.resolver.WriteSegment(ctx, segments[index], w)
}

// Download writes every segment of the variant to w, decrypted and in
// order.
func (s *Service) Download(ctx context.Context, ref VariantRef, w io.Writer) error {
	segments, err := s.Segments(ctx, ref)
	if err != nil {
		return err
	}
	return s.resolver.Download(ctx, segments, w, s.workers)
}

// Playlist renders the variant as an HLS VOD playlist whose entries are
// produced by segmentURL. DASH tracks carry their init segment as
// #EXT-X-MAP.
func (s *Service) Playlist(ctx context.Context, ref VariantRef, segmentURL func(i int) string) (string, error) {
	segments, err := s.Segments(ctx, ref)
	if err != nil {
		return "", err
	}
	return BuildVODPlaylist(segments, ref.Track != TrackHLS, segmentURL), nil
}

// StreamCount returns the number of registered streams.
func (s *Service) StreamCount() int {
	return s.repo.StreamCount()
}

func (s *Service) variant(ctx context.Context, ref VariantRef) (media.Variant, error) {
	variants, err := s.Variants(ctx, ref.Stream, ref.Track, ref.Hardsub)
	if err != nil {
		return media.Variant{}, err
	}
	if ref.Index < 0 || ref.Index >= len(variants) {
		return media.Variant{}, fmt.Errorf("%w: variant %d of %d", ErrIndexOutOfRange, ref.Index, len(variants))
	}
	return variants[ref.Index], nil
}
