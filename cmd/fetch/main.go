// Command fetch resolves one variant of a stream and writes its decrypted
// segments to a file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"stream-resolver/internal/gateway"
	"stream-resolver/internal/media"
	"stream-resolver/internal/platform/logger"

	"github.com/spf13/cobra"
)

type options struct {
	streamsPath string
	track       string
	hardsub     *media.Locale
	variant     int
	output      string
	workers     int
	list        bool
	timeout     time.Duration
	userAgent   string
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts    options
		hardsub string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download one variant of a stream",
		Long: "Reads a stream set ({\"<locale>\": {\"hls\": \"...\", \"dash\": \"...\"}}), " +
			"resolves the selected variant and writes its decrypted segments in order.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("hardsub") {
				opts.hardsub = media.Hardsub(media.Locale(hardsub))
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
			fetcher := media.NewHTTPFetcher(opts.timeout, media.WithUserAgent(opts.userAgent))
			return run(cmd.Context(), opts, media.NewResolver(fetcher, log), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.streamsPath, "streams", "", "path to the stream set JSON file, - for stdin")
	f.StringVar(&opts.track, "track", string(gateway.TrackHLS), "track to resolve: hls, video or audio")
	f.StringVar(&hardsub, "hardsub", "", "hardsub locale; omit to use the unsubtitled stream")
	f.IntVar(&opts.variant, "variant", 0, "variant index, see --list")
	f.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	f.IntVar(&opts.workers, "workers", gateway.DefaultDownloadWorkers, "segments fetched at once")
	f.BoolVar(&opts.list, "list", false, "list locales and variants instead of downloading")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per request timeout")
	f.StringVar(&opts.userAgent, "user-agent", "stream-resolver", "User-Agent sent upstream")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.MarkFlagRequired("streams")

	return cmd
}

func run(ctx context.Context, opts options, resolver *media.Resolver, stdout io.Writer) error {
	streams, err := readStreams(opts.streamsPath)
	if err != nil {
		return err
	}

	track := gateway.Track(opts.track)
	if !track.Valid() {
		return fmt.Errorf("%w: %q", gateway.ErrUnknownTrack, opts.track)
	}

	variants, err := resolveVariants(ctx, resolver, streams, track, opts.hardsub)
	if err != nil {
		return err
	}
	if opts.list {
		return printList(stdout, streams, variants)
	}

	if opts.variant < 0 || opts.variant >= len(variants) {
		return fmt.Errorf("%w: variant %d of %d", gateway.ErrIndexOutOfRange, opts.variant, len(variants))
	}
	segments, err := resolver.Segments(ctx, variants[opts.variant])
	if err != nil {
		return err
	}

	if opts.output == "-" {
		return resolver.Download(ctx, segments, stdout, opts.workers)
	}
	file, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := resolver.Download(ctx, segments, file, opts.workers); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func resolveVariants(ctx context.Context, r *media.Resolver, streams media.RawStreamSet, track gateway.Track, hardsub *media.Locale) ([]media.Variant, error) {
	if track == gateway.TrackHLS {
		return r.HLSVariants(ctx, streams, hardsub)
	}
	video, audio, err := r.DASHVariants(ctx, streams, hardsub)
	if err != nil {
		return nil, err
	}
	if track == gateway.TrackVideo {
		return video, nil
	}
	return audio, nil
}

func readStreams(path string) (media.RawStreamSet, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read stream set: %w", err)
	}

	var streams media.RawStreamSet
	if err := json.Unmarshal(raw, &streams); err != nil {
		return nil, fmt.Errorf("parse stream set %s: %w", path, err)
	}
	if len(streams) == 0 {
		return nil, gateway.ErrEmptyStreamSet
	}
	return streams, nil
}

func printList(w io.Writer, streams media.RawStreamSet, variants []media.Variant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCALES")
	for _, l := range media.HardsubLocales(streams) {
		fmt.Fprintf(tw, "%q\n", l)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "INDEX\tRESOLUTION\tBANDWIDTH\tFPS\tCODECS")
	for i, v := range variants {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f\t%s\n", i, v.Resolution, v.Bandwidth, v.FPS, v.Codecs)
	}
	return tw.Flush()
}
