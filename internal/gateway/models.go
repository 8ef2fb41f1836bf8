package gateway

import "stream-resolver/internal/media"

// StreamID identifies a registered stream, usually the upstream episode or
// media id.
type StreamID string

// Track selects which variant list of a stream is used.
type Track string

const (
	// TrackHLS selects the variants of the HLS master playlist.
	TrackHLS Track = "hls"
	// TrackVideo selects the video adaptation sets of the MPD.
	TrackVideo Track = "video"
	// TrackAudio selects the audio adaptation sets of the MPD.
	TrackAudio Track = "audio"
)

// Valid reports whether t is one of the known tracks.
func (t Track) Valid() bool {
	switch t {
	case TrackHLS, TrackVideo, TrackAudio:
		return true
	}
	return false
}

// StreamState is the stored form of a registered stream. Only the raw input
// is kept; variants and segments are resolved again on every request.
type StreamState struct {
	ID      StreamID
	Streams media.RawStreamSet
}

// VariantRef addresses one variant of a registered stream.
type VariantRef struct {
	Stream  StreamID
	Track   Track
	Hardsub *media.Locale
	Index   int
}
