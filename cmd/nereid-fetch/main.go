// Command nereid-fetch fetches GeoJSON data from the Overpass and Nominatim
// APIs and writes it to a file, for use as map layers in NEREID deployments.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb/geojson"

	"github.com/yuiseki/NEREID/pkg/convert"
	"github.com/yuiseki/NEREID/pkg/osm"
	"github.com/yuiseki/NEREID/pkg/osm/queries"
	"github.com/yuiseki/NEREID/pkg/output"
	ver "github.com/yuiseki/NEREID/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	query     string
	area      string
	nominatim string
	output    string

	timeout        int
	userAgent      string
	overpassURL    string
	nominatimURL   string
	overpassRPS    float64
	overpassBurst  int
	nominatimRPS   float64
	nominatimBurst int

	debug       bool
	check       bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("nereid-fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usageText())
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.query, "query", "", `Overpass tag query (e.g. "leisure=park")`)
	fs.StringVar(&opts.area, "area", "", `Area name for Overpass (e.g. "東京都台東区")`)
	fs.StringVar(&opts.nominatim, "nominatim", "", "Nominatim search query")
	fs.StringVar(&opts.output, "output", "public/data.geojson", "Output file path")

	fs.IntVar(&opts.timeout, "timeout", queries.DefaultTimeout, "Overpass server-side query timeout in seconds")
	fs.StringVar(&opts.userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent string for API requests")
	fs.StringVar(&opts.overpassURL, "overpass-url", osm.DefaultOverpassBaseURL, "Overpass interpreter endpoint")
	fs.StringVar(&opts.nominatimURL, "nominatim-url", osm.DefaultNominatimBaseURL, "Nominatim endpoint")

	fs.Float64Var(&opts.overpassRPS, "overpass-rps", 1.0, "Overpass rate limit in requests per second")
	fs.IntVar(&opts.overpassBurst, "overpass-burst", 1, "Overpass rate limit burst size")
	fs.Float64Var(&opts.nominatimRPS, "nominatim-rps", 1.0, "Nominatim rate limit in requests per second")
	fs.IntVar(&opts.nominatimBurst, "nominatim-burst", 1, "Nominatim rate limit burst size")

	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.check, "check", false, "Check that the Overpass and Nominatim services are reachable, then exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Display version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, ver.String())
		return nil
	}

	logLevel := slog.LevelInfo
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if opts.userAgent != osm.DefaultUserAgent {
		osm.SetUserAgent(opts.userAgent)
	}
	if opts.overpassURL != osm.DefaultOverpassBaseURL {
		osm.SetOverpassBaseURL(opts.overpassURL)
	}
	if opts.nominatimURL != osm.DefaultNominatimBaseURL {
		osm.SetNominatimBaseURL(opts.nominatimURL)
	}
	if opts.overpassRPS != 1.0 || opts.overpassBurst != 1 {
		osm.UpdateOverpassRateLimits(opts.overpassRPS, opts.overpassBurst)
	}
	if opts.nominatimRPS != 1.0 || opts.nominatimBurst != 1 {
		osm.UpdateNominatimRateLimits(opts.nominatimRPS, opts.nominatimBurst)
	}

	if opts.check {
		return runCheck(logger, stdout)
	}

	if opts.query == "" && opts.nominatim == "" {
		return usageError("one of --query or --nominatim is required")
	}

	client := osm.NewClient()
	client.SetLogger(logger)

	var fc *geojson.FeatureCollection
	switch {
	case opts.query != "":
		if opts.area == "" {
			return errors.New("--area is required with --query")
		}
		tag, err := queries.ParseTagFilter(opts.query)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Fetching Overpass data: %s in %s...\n", opts.query, opts.area)
		ql := queries.NewAreaQueryBuilder().
			WithTimeout(opts.timeout).
			WithArea(opts.area).
			WithTag(tag).
			Build()
		resp, err := client.QueryOverpass(ctx, ql)
		if err != nil {
			return err
		}
		fc = convert.OverpassFeatureCollection(resp)

	default:
		fmt.Fprintf(stdout, "Fetching Nominatim data: %s...\n", opts.nominatim)
		places, err := client.SearchNominatim(ctx, opts.nominatim)
		if err != nil {
			return err
		}
		fc, err = convert.NominatimFeatureCollection(places)
		if err != nil {
			return err
		}
	}

	if err := output.WriteFeatureCollection(opts.output, fc); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Done. %d features written to %s\n", len(fc.Features), opts.output)
	return nil
}

// runCheck probes both services and reports their reachability.
func runCheck(logger *slog.Logger, stdout io.Writer) error {
	var failed bool

	if err := osm.CheckOverpassHealth(); err != nil {
		logger.Error("overpass health check failed", "error", err)
		failed = true
	} else {
		fmt.Fprintln(stdout, "Overpass: ok")
	}

	if err := osm.CheckNominatimHealth(); err != nil {
		logger.Error("nominatim health check failed", "error", err)
		failed = true
	} else {
		fmt.Fprintln(stdout, "Nominatim: ok")
	}

	if failed {
		return errors.New("one or more services are unreachable")
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\n\n%s", msg, usageText())
}

func usageText() string {
	return `Usage:
  nereid-fetch --query "leisure=park" --area "東京都台東区" --output public/parks.geojson
  nereid-fetch --nominatim "東京駅" --output public/station.geojson
  nereid-fetch --check

One of --query or --nominatim selects the data source; --query also requires
--area. The result is written as a GeoJSON FeatureCollection (default
public/data.geojson).`
}
