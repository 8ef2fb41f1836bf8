package gateway

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"stream-resolver/internal/media"
)

func indexURI(i int) string { return "segments/" + strconv.Itoa(i) }

func TestBuildVODPlaylist_empty(t *testing.T) {
	out := BuildVODPlaylist(nil, false, indexURI)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Errorf("expected #EXTM3U header: %s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:1") {
		t.Errorf("expected target duration 1 for empty playlist: %s", out)
	}
	if !strings.HasSuffix(out, "#EXT-X-ENDLIST\n") {
		t.Errorf("expected #EXT-X-ENDLIST: %s", out)
	}
	if strings.Contains(out, "#EXTINF") {
		t.Errorf("expected no entries: %s", out)
	}

	// withMap on an empty list has nothing to map.
	if strings.Contains(BuildVODPlaylist(nil, true, indexURI), "#EXT-X-MAP") {
		t.Error("expected no map for empty playlist")
	}
}

func TestBuildVODPlaylist_entries(t *testing.T) {
	segs := []media.Segment{
		{URL: "https://cdn/a.ts", Length: 6 * time.Second},
		{URL: "https://cdn/b.ts", Length: 6500 * time.Millisecond},
		{URL: "https://cdn/c.ts", Length: 2 * time.Second},
	}
	out := BuildVODPlaylist(segs, false, indexURI)

	for _, want := range []string{
		"#EXT-X-VERSION:3\n",
		"#EXT-X-PLAYLIST-TYPE:VOD\n",
		"#EXT-X-TARGETDURATION:7\n",
		"#EXT-X-MEDIA-SEQUENCE:0\n",
		"#EXTINF:6.000,\nsegments/0\n",
		"#EXTINF:6.500,\nsegments/1\n",
		"#EXTINF:2.000,\nsegments/2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("playlist missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "https://cdn/") {
		t.Errorf("upstream urls must not leak into the playlist:\n%s", out)
	}
}

func TestBuildVODPlaylist_withMap(t *testing.T) {
	segs := []media.Segment{
		{URL: "https://cdn/init.mp4"},
		{URL: "https://cdn/1.m4s", Length: 4 * time.Second},
		{URL: "https://cdn/2.m4s", Length: 4 * time.Second},
	}
	out := BuildVODPlaylist(segs, true, indexURI)

	if !strings.Contains(out, "#EXT-X-VERSION:6\n") {
		t.Errorf("expected version 6 with map:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-MAP:URI=\"segments/0\"\n") {
		t.Errorf("expected init segment as map:\n%s", out)
	}
	if strings.Count(out, "#EXTINF") != 2 {
		t.Errorf("expected 2 media entries:\n%s", out)
	}
	if !strings.Contains(out, "#EXTINF:4.000,\nsegments/1\n") || !strings.Contains(out, "segments/2\n") {
		t.Errorf("media entries keep their segment index:\n%s", out)
	}
	if !strings.Contains(out, "#EXT-X-TARGETDURATION:4\n") {
		t.Errorf("expected target duration 4:\n%s", out)
	}
}

func TestTargetDurationFromSegments(t *testing.T) {
	tests := []struct {
		lengths []time.Duration
		want    int
	}{
		{nil, 1},
		{[]time.Duration{0}, 1},
		{[]time.Duration{2 * time.Second}, 2},
		{[]time.Duration{2100 * time.Millisecond, time.Second}, 3},
	}
	for _, tc := range tests {
		segs := make([]media.Segment, len(tc.lengths))
		for i, l := range tc.lengths {
			segs[i].Length = l
		}
		if got := targetDurationFromSegments(segs); got != tc.want {
			t.Errorf("targetDurationFromSegments(%v) = %d, want %d", tc.lengths, got, tc.want)
		}
	}
}
