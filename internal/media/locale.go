package media

import (
	"fmt"
	"sort"
)

// Locale is a language/region tag such as "en-US". Two values act as the
// unsubtitled fallback: the empty string and the literal ":".
type Locale string

const (
	// LocaleNone is the first sentinel tried when no hardsub is requested.
	LocaleNone Locale = ""
	// LocaleColon is the second sentinel; some upstream stream sets key
	// their unsubtitled variant under ":".
	LocaleColon Locale = ":"
)

// Hardsub returns a pointer to l, for use as the optional locale argument.
func Hardsub(l Locale) *Locale { return &l }

// Transport selects which manifest family of a RawStreamDescriptor is used.
type Transport int

const (
	TransportHLS Transport = iota
	TransportDASH
)

func (t Transport) String() string {
	switch t {
	case TransportHLS:
		return "hls"
	case TransportDASH:
		return "dash"
	}
	return fmt.Sprintf("transport(%d)", int(t))
}

// RawStreamDescriptor holds the manifest URLs upstream offers for one
// hardsub locale. Either field may be empty.
type RawStreamDescriptor struct {
	HLS  string `json:"hls,omitempty"`
	DASH string `json:"dash,omitempty"`
}

func (d RawStreamDescriptor) url(t Transport) string {
	if t == TransportDASH {
		return d.DASH
	}
	return d.HLS
}

// RawStreamSet maps hardsub locales to their raw stream descriptors.
type RawStreamSet map[Locale]RawStreamDescriptor

// HardsubLocales returns every locale of streams, sorted.
func HardsubLocales(streams RawStreamSet) []Locale {
	locales := make([]Locale, 0, len(streams))
	for l := range streams {
		locales = append(locales, l)
	}
	sort.Slice(locales, func(i, j int) bool { return locales[i] < locales[j] })
	return locales
}

// ResolveURL picks the manifest URL of transport t. With hardsub set, that
// exact locale must exist. With hardsub nil the "" sentinel is tried before
// the ":" sentinel. It never returns an empty URL without an error.
func ResolveURL(streams RawStreamSet, hardsub *Locale, t Transport) (string, error) {
	if hardsub != nil {
		desc, ok := streams[*hardsub]
		if !ok {
			return "", &NotFoundError{Message: fmt.Sprintf("no stream with hardsub locale %s", *hardsub)}
		}
		return transportURL(desc, t)
	}

	for _, sentinel := range []Locale{LocaleNone, LocaleColon} {
		if desc, ok := streams[sentinel]; ok {
			return transportURL(desc, t)
		}
	}
	return "", &InternalError{Message: "could not find supported stream"}
}

func transportURL(desc RawStreamDescriptor, t Transport) (string, error) {
	u := desc.url(t)
	if u == "" {
		return "", &NotFoundError{Message: "no stream available"}
	}
	return u, nil
}
