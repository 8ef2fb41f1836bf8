package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Eyevinn/dash-mpd/mpd"
)

// AdaptationSet is one adaptation set of the first MPD period.
type AdaptationSet struct {
	// Video is true when the set declares maxWidth or maxHeight.
	Video           bool
	SegmentTemplate *mpd.SegmentTemplateType
	Representations []*mpd.RepresentationType
}

// Variants expands the representations of a.
func (a AdaptationSet) Variants() ([]Variant, error) {
	return ExpandRepresentations(a.SegmentTemplate, a.Representations)
}

// ParseMPD decodes a DASH manifest. Only the first period is read;
// multi-period manifests are not supported.
func ParseMPD(raw []byte, manifestURL string) ([]AdaptationSet, error) {
	manifest, err := mpd.ReadFromString(string(raw))
	if err != nil {
		return nil, decodeError(manifestURL, raw, err)
	}
	if len(manifest.Periods) == 0 || manifest.Periods[0] == nil {
		return nil, &DecodeError{Message: "mpd has no period", Content: raw, URL: manifestURL}
	}

	period := manifest.Periods[0]
	sets := make([]AdaptationSet, 0, len(period.AdaptationSets))
	for _, as := range period.AdaptationSets {
		if as == nil {
			continue
		}
		sets = append(sets, AdaptationSet{
			Video:           as.MaxWidth != 0 || as.MaxHeight != 0,
			SegmentTemplate: as.SegmentTemplate,
			Representations: as.Representations,
		})
	}
	return sets, nil
}

// ExpandRepresentations turns representations into DASH-addressed variants.
// A representation level SegmentTemplate overrides template. Every
// addressing field is required: a missing one makes the whole manifest
// unusable and is reported as a DecodeError.
func ExpandRepresentations(template *mpd.SegmentTemplateType, representations []*mpd.RepresentationType) ([]Variant, error) {
	variants := make([]Variant, 0, len(representations))
	for _, rep := range representations {
		if rep == nil {
			continue
		}
		addr, err := dashAddressing(template, rep)
		if err != nil {
			return nil, err
		}
		variants = append(variants, Variant{
			Resolution: Resolution{Width: uint64(rep.Width), Height: uint64(rep.Height)},
			Bandwidth:  uint64(rep.Bandwidth),
			FPS:        parseFrameRate(string(rep.FrameRate)),
			Codecs:     rep.Codecs,
			Addressing: addr,
		})
	}
	return variants, nil
}

func dashAddressing(template *mpd.SegmentTemplateType, rep *mpd.RepresentationType) (DASHAddressing, error) {
	missing := func(field string) error {
		return &DecodeError{Message: fmt.Sprintf("dash representation %q: missing %s", rep.Id, field)}
	}

	if rep.SegmentTemplate != nil {
		template = rep.SegmentTemplate
	}
	switch {
	case rep.Id == "":
		return DASHAddressing{}, missing("id")
	case len(rep.BaseURLs) == 0 || rep.BaseURLs[0] == nil || rep.BaseURLs[0].Value == "":
		return DASHAddressing{}, missing("base url")
	case template == nil:
		return DASHAddressing{}, missing("segment template")
	case template.Initialization == "":
		return DASHAddressing{}, missing("initialization url")
	case template.Media == "":
		return DASHAddressing{}, missing("media url")
	case template.StartNumber == nil:
		return DASHAddressing{}, missing("start number")
	case template.SegmentTimeline == nil:
		return DASHAddressing{}, missing("segment timeline")
	}

	return DASHAddressing{
		RepresentationID: rep.Id,
		BaseURL:          string(rep.BaseURLs[0].Value),
		Initialization:   template.Initialization,
		Media:            template.Media,
		StartNumber:      *template.StartNumber,
		Durations:        expandTimeline(template.SegmentTimeline.S),
	}, nil
}

// expandTimeline flattens run-length encoded S entries into one duration
// per segment. Every entry contributes r+1 copies of its d, read as
// milliseconds; a negative r counts as 0.
func expandTimeline(entries []*mpd.S) []uint32 {
	var durations []uint32
	for _, s := range entries {
		if s == nil {
			continue
		}
		ms := uint32(s.D)
		repeat := s.R
		if repeat < 0 {
			repeat = 0
		}
		for i := 0; i <= repeat; i++ {
			durations = append(durations, ms)
		}
	}
	return durations
}

// parseFrameRate reads "N/D" or a decimal. Unparsable input and fractions
// with a zero term give 0.
func parseFrameRate(s string) float64 {
	if n, d, ok := strings.Cut(s, "/"); ok {
		num, err := strconv.ParseFloat(n, 64)
		if err != nil {
			num = 0
		}
		den, err := strconv.ParseFloat(d, 64)
		if err != nil {
			den = 0
		}
		if num == 0 || den == 0 {
			return 0
		}
		return num / den
	}
	fps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return fps
}

// dashSegments builds the init segment followed by one segment per
// timeline duration. DASH segments are never encrypted here.
func dashSegments(v Variant) ([]Segment, error) {
	a, ok := v.Addressing.(DASHAddressing)
	if !ok {
		return nil, &InternalError{Message: "variant url should be dash"}
	}

	segments := make([]Segment, 0, len(a.Durations)+1)
	segments = append(segments, Segment{
		URL: a.BaseURL + strings.ReplaceAll(a.Initialization, "$RepresentationID$", a.RepresentationID),
	})
	for i, ms := range a.Durations {
		number := a.StartNumber + uint32(i)
		media := strings.NewReplacer(
			"$Number$", strconv.FormatUint(uint64(number), 10),
			"$RepresentationID$", a.RepresentationID,
		).Replace(a.Media)
		segments = append(segments, Segment{
			URL:    a.BaseURL + media,
			Length: time.Duration(ms) * time.Millisecond,
		})
	}
	return segments, nil
}
