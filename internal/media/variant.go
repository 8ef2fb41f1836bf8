package media

import (
	"fmt"
	"time"
)

// Resolution is a video frame size. Audio variants report 0x0.
type Resolution struct {
	Width  uint64 `json:"width"`
	Height uint64 `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Addressing tells a Segments call how to build the segment list of a
// variant. It is implemented by HLSAddressing and DASHAddressing only.
type Addressing interface {
	transport() Transport
}

// HLSAddressing points at the media playlist of an HLS variant.
type HLSAddressing struct {
	URL string
}

func (HLSAddressing) transport() Transport { return TransportHLS }

// DASHAddressing carries the SegmentTemplate parameters of one
// representation.
type DASHAddressing struct {
	RepresentationID string
	BaseURL          string
	Initialization   string
	Media            string
	StartNumber      uint32
	// Durations holds one entry per media segment, in milliseconds.
	Durations []uint32
}

func (DASHAddressing) transport() Transport { return TransportDASH }

// Variant is one playable rendition, independent of the manifest family it
// came from.
type Variant struct {
	Resolution Resolution `json:"resolution"`
	Bandwidth  uint64     `json:"bandwidth"`
	FPS        float64    `json:"fps"`
	Codecs     string     `json:"codecs"`

	Addressing Addressing `json:"-"`
}

// Transport reports the manifest family of v.
func (v Variant) Transport() (Transport, bool) {
	if v.Addressing == nil {
		return 0, false
	}
	return v.Addressing.transport(), true
}

// HLSURL returns the media playlist URL of an HLS variant, for handing the
// download to an external tool.
func (v Variant) HLSURL() (string, bool) {
	a, ok := v.Addressing.(HLSAddressing)
	if !ok {
		return "", false
	}
	return a.URL, true
}

// Segment is one fetchable chunk of a variant.
type Segment struct {
	// Key is nil when the segment is plaintext.
	Key    *CipherState  `json:"-"`
	URL    string        `json:"url"`
	Length time.Duration `json:"length"`
}

// Encrypted reports whether the segment needs decryption.
func (s Segment) Encrypted() bool { return s.Key != nil }
