package gateway

import (
	"fmt"
	"math"
	"strings"

	"stream-resolver/internal/media"
)

// BuildVODPlaylist renders resolved segments as an HLS VOD media playlist.
// uri maps a segment index to the URI written into the playlist. When
// withMap is true the first segment is an initialization segment and is
// emitted as #EXT-X-MAP instead of a media entry.
// An empty segments slice produces a minimal valid playlist.
func BuildVODPlaylist(segments []media.Segment, withMap bool, uri func(i int) string) string {
	var b strings.Builder

	version := 3
	if withMap && len(segments) > 0 {
		// EXT-X-MAP in a media playlist needs version 6.
		version = 6
	}

	b.WriteString("#EXTM3U\n")
	b.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", version))
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	first := 0
	if withMap && len(segments) > 0 {
		first = 1
	}
	entries := segments[first:]

	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDurationFromSegments(entries)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")

	if first == 1 {
		b.WriteString(fmt.Sprintf("#EXT-X-MAP:URI=%q\n", uri(0)))
	}
	b.WriteString("\n")

	for i, seg := range entries {
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", seg.Length.Seconds()))
		b.WriteString(uri(first + i))
		b.WriteString("\n")
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// targetDurationFromSegments returns the HLS #EXT-X-TARGETDURATION value:
// the ceiling of the maximum segment length in seconds, at least 1.
func targetDurationFromSegments(segments []media.Segment) int {
	max := 0.0
	for _, seg := range segments {
		if s := seg.Length.Seconds(); s > max {
			max = s
		}
	}
	if max <= 0 {
		return 1
	}
	return int(math.Ceil(max))
}
