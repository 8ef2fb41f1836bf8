package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"stream-resolver/internal/media"
	"stream-resolver/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	jsonContentType     = "application/json"
)

// Handler exposes the resolver over HTTP using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/streams/{stream_id}", func(r chi.Router) {
		r.Put("/", h.RegisterStream)
		r.Delete("/", h.RemoveStream)
		r.Get("/locales", h.GetLocales)
		r.Route("/tracks/{track}/variants", func(r chi.Router) {
			r.Get("/", h.GetVariants)
			r.Route("/{variant}", func(r chi.Router) {
				r.Get("/segments", h.GetSegments)
				r.Get("/segments/{segment}", h.GetSegment)
				r.Get("/playlist.m3u8", h.GetPlaylist)
				r.Get("/download", h.Download)
			})
		})
	})
}

// RegisterStream handles PUT /streams/{stream_id}.
// Body: { "<locale>": { "hls": "...", "dash": "..." } }.
func (h *Handler) RegisterStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	var streams media.RawStreamSet
	if err := json.NewDecoder(r.Body).Decode(&streams); err != nil {
		h.log.Debug("invalid stream body", slog.String("error", err.Error()))
		h.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	if err := h.svc.Register(streamID, streams); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info("stream registered",
		slog.String("stream_id", string(streamID)),
		slog.Int("locales", len(streams)))
	w.WriteHeader(http.StatusNoContent)
}

// RemoveStream handles DELETE /streams/{stream_id}.
func (h *Handler) RemoveStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	h.svc.Remove(streamID)
	h.log.Info("stream removed", slog.String("stream_id", string(streamID)))
	w.WriteHeader(http.StatusNoContent)
}

// GetLocales handles GET /streams/{stream_id}/locales.
func (h *Handler) GetLocales(w http.ResponseWriter, r *http.Request) {
	locales, err := h.svc.HardsubLocales(StreamID(chi.URLParam(r, "stream_id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locales)
}

// GetVariants handles GET /streams/{stream_id}/tracks/{track}/variants.
func (h *Handler) GetVariants(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	track := Track(chi.URLParam(r, "track"))

	variants, err := h.svc.Variants(r.Context(), streamID, track, hardsubParam(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		transport := media.TransportDASH
		if track == TrackHLS {
			transport = media.TransportHLS
		}
		h.metrics.AddVariantsResolved(transport.String(), len(variants))
	}
	if variants == nil {
		variants = []media.Variant{}
	}
	writeJSON(w, http.StatusOK, variants)
}

// GetSegments handles GET .../variants/{variant}/segments.
func (h *Handler) GetSegments(w http.ResponseWriter, r *http.Request) {
	ref, err := variantRef(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	segments, err := h.svc.Segments(r.Context(), ref)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if segments == nil {
		segments = []media.Segment{}
	}
	writeJSON(w, http.StatusOK, segments)
}

// GetPlaylist handles GET .../variants/{variant}/playlist.m3u8. Entries point
// at the decrypted segment endpoint relative to the playlist.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	ref, err := variantRef(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	query := ""
	if ref.Hardsub != nil {
		query = "?" + url.Values{"hardsub": {string(*ref.Hardsub)}}.Encode()
	}
	m3u8, err := h.svc.Playlist(r.Context(), ref, func(i int) string {
		return "segments/" + strconv.Itoa(i) + query
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}

// GetSegment handles GET .../variants/{variant}/segments/{segment} and
// responds with the decrypted bytes.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	ref, err := variantRef(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	index, err := indexParam(r, "segment")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cw := &countingWriter{w: w}
	w.Header().Set("Content-Type", segmentContentType(ref.Track))
	if err := h.svc.WriteSegment(r.Context(), ref, index, cw); err != nil {
		h.writeStreamError(w, r, cw, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AddSegmentsServed(1)
	}
}

// Download handles GET .../variants/{variant}/download and streams every
// segment, decrypted and in order. The response is flushed after each
// segment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ref, err := variantRef(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ext := "mp4"
	if ref.Track == TrackHLS {
		ext = "ts"
	}
	w.Header().Set("Content-Type", segmentContentType(ref.Track))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s-%d.%s", ref.Stream, ref.Track, ref.Index, ext)))

	cw := &countingWriter{w: w, flush: http.NewResponseController(w).Flush}
	if err := h.svc.Download(r.Context(), ref, cw); err != nil {
		h.writeStreamError(w, r, cw, err)
		return
	}
	if h.metrics != nil {
		h.metrics.AddSegmentsServed(cw.writes)
	}
	h.log.Info("variant downloaded",
		slog.String("stream_id", string(ref.Stream)),
		slog.String("track", string(ref.Track)),
		slog.Int("variant", ref.Index),
		slog.Int64("bytes", cw.n))
}

var errBadRequest = errors.New("bad request")

// statusFor maps service and resolver errors to HTTP status codes.
func statusFor(err error) int {
	var (
		decodeErr    *media.DecodeError
		transportErr *media.TransportError
	)
	switch {
	case errors.Is(err, ErrStreamNotFound),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, ErrUnknownTrack),
		errors.Is(err, ErrEmptyStreamID),
		errors.Is(err, ErrEmptyStreamSet):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	if errors.Is(err, media.ErrDecrypt) && h.metrics != nil {
		h.metrics.IncDecryptFailures()
	}

	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", attrs...)
	} else {
		h.log.Debug("request rejected", attrs...)
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeStreamError reports err as a status code if nothing has been sent
// yet. Once bytes are out the status is fixed and the error is only logged.
func (h *Handler) writeStreamError(w http.ResponseWriter, r *http.Request, cw *countingWriter, err error) {
	if cw.n == 0 {
		w.Header().Del("Content-Disposition")
		h.writeError(w, r, err)
		return
	}
	h.log.Error("stream aborted",
		slog.String("path", r.URL.Path),
		slog.Int64("bytes", cw.n),
		slog.String("error", err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// hardsubParam reads the optional hardsub query. A present but empty value
// selects the "" locale; an absent one lets the resolver fall back.
func hardsubParam(r *http.Request) *media.Locale {
	q := r.URL.Query()
	if !q.Has("hardsub") {
		return nil
	}
	return media.Hardsub(media.Locale(q.Get("hardsub")))
}

func variantRef(r *http.Request) (VariantRef, error) {
	index, err := indexParam(r, "variant")
	if err != nil {
		return VariantRef{}, err
	}
	return VariantRef{
		Stream:  StreamID(chi.URLParam(r, "stream_id")),
		Track:   Track(chi.URLParam(r, "track")),
		Hardsub: hardsubParam(r),
		Index:   index,
	}, nil
}

func indexParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s index %q", errBadRequest, name, raw)
	}
	return n, nil
}

func segmentContentType(t Track) string {
	switch t {
	case TrackHLS:
		return "video/mp2t"
	case TrackAudio:
		return "audio/mp4"
	default:
		return "video/mp4"
	}
}

// countingWriter tracks how much of a response body has been sent. When
// flush is set it runs after every successful write.
type countingWriter struct {
	w      io.Writer
	flush  func() error
	n      int64
	writes int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.writes++
	if err == nil && c.flush != nil {
		// Writers without flush support report ErrNotSupported.
		_ = c.flush()
	}
	return n, err
}
