// cmd/pipeline/main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"streampulse/internal/adapter/messaging"
	"streampulse/internal/adapter/storage"
	"streampulse/internal/config"
	"streampulse/internal/domain/metric"
	"streampulse/internal/logging"
	"streampulse/internal/retry"
	"streampulse/internal/service/aggregation"
	"streampulse/internal/service/ingestion"
	"streampulse/internal/service/pipeline"
	"streampulse/internal/service/sentiment"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const usage = `Usage: pipeline <command> [flags]

Commands:
  setup            create the schema and register the configured titles
  collect          fetch reactions from every source
  sentiment        score every pending reaction
  aggregate        recompute daily rows (-date, -from/-to, -title)
  aggregate-week   recompute daily rows for the trailing week
  full             setup, collect, sentiment and aggregate-week
  schedule         run the full pipeline every PIPELINE_INTERVAL until stopped
`

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	command, rest := args[0], args[1:]

	var aggregateArgs aggregateFlags
	switch command {
	case "setup", "collect", "sentiment", "aggregate-week", "full", "schedule":
		if len(rest) > 0 {
			fmt.Fprintf(stderr, "%s takes no arguments\n", command)
			return exitUsage
		}
	case "aggregate":
		parsed, err := parseAggregateFlags(rest, stderr)
		if err != nil {
			return exitUsage
		}
		aggregateArgs = parsed
	case "-h", "--help", "help":
		fmt.Fprint(stderr, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return exitUsage
	}

	// Local development reads a .env file when present
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize pipeline")
		return exitFailure
	}
	defer app.Close()

	switch command {
	case "setup":
		err = app.setup(ctx)
	case "collect":
		err = app.collect(ctx)
	case "sentiment":
		err = app.sentiment(ctx)
	case "aggregate":
		err = app.aggregate(ctx, aggregateArgs)
	case "aggregate-week":
		err = app.aggregateWeek(ctx)
	case "full":
		err = app.full(ctx)
	case "schedule":
		err = app.schedule(ctx)
	}

	if err != nil {
		if pipeline.IsCancelled(err) {
			logging.Warn().Str("command", command).Msg("Interrupted")
		} else {
			logging.Error().Err(err).Str("command", command).Msg("Command failed")
		}
		return exitFailure
	}

	return exitOK
}

type aggregateFlags struct {
	date  string
	from  string
	to    string
	title string
}

// Range resolves the flags to calendar days in loc
func (f aggregateFlags) Range(now time.Time, loc *time.Location) (metric.DateRange, error) {
	return dateRange(f.date, f.from, f.to, now, loc)
}

// parseAggregateFlags accepts either -date or -from/-to; the default is yesterday
func parseAggregateFlags(args []string, stderr io.Writer) (aggregateFlags, error) {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	date := fs.String("date", "", "single day to aggregate (YYYY-MM-DD)")
	from := fs.String("from", "", "first day of the range (YYYY-MM-DD)")
	to := fs.String("to", "", "last day of the range (YYYY-MM-DD)")
	title := fs.String("title", "", "aggregate only this title")

	if err := fs.Parse(args); err != nil {
		return aggregateFlags{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return aggregateFlags{}, errors.New("unexpected arguments")
	}

	parsed := aggregateFlags{date: *date, from: *from, to: *to, title: *title}
	if _, err := parsed.Range(time.Now(), time.UTC); err != nil {
		fmt.Fprintln(stderr, err)
		return aggregateFlags{}, err
	}

	return parsed, nil
}

func dateRange(date, from, to string, now time.Time, loc *time.Location) (metric.DateRange, error) {
	switch {
	case date != "" && (from != "" || to != ""):
		return metric.DateRange{}, fmt.Errorf("%w: -date cannot be combined with -from/-to", metric.ErrInvalidRange)

	case date != "":
		d, err := parseDay(date, loc)
		if err != nil {
			return metric.DateRange{}, err
		}
		return metric.DateRange{From: d, To: d}, nil

	case from != "" || to != "":
		if from == "" || to == "" {
			return metric.DateRange{}, fmt.Errorf("%w: -from and -to must be used together", metric.ErrInvalidRange)
		}
		f, err := parseDay(from, loc)
		if err != nil {
			return metric.DateRange{}, err
		}
		t, err := parseDay(to, loc)
		if err != nil {
			return metric.DateRange{}, err
		}
		r := metric.DateRange{From: f, To: t}
		return r, r.Validate()

	default:
		y := metric.Day(now, loc).AddDate(0, 0, -1)
		return metric.DateRange{From: y, To: y}, nil
	}
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", metric.ErrInvalidRange, s)
	}
	return d, nil
}

type app struct {
	db       *pgxpool.Pool
	natsConn *nats.Conn
	pipeline *pipeline.Pipeline
	config   config.Config
	loc      *time.Location
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	loc, err := cfg.Aggregation.Location()
	if err != nil {
		return nil, err
	}

	db, err := storage.Connect(ctx, cfg.Database.ConnString(),
		int32(cfg.Database.MaxOpenConns), int32(cfg.Database.MaxIdleConns), cfg.Database.MaxLifetime)
	if err != nil {
		return nil, err
	}

	a := &app{db: db, config: cfg, loc: loc}

	// bus stays a nil interface when NATS is off
	var bus aggregation.Publisher
	if cfg.NATS.Enabled {
		nc, err := messaging.Connect(cfg.NATS, "streampulse-pipeline")
		if err != nil {
			logging.Warn().Err(err).Msg("NATS unavailable, aggregation events disabled")
		} else {
			a.natsConn = nc
			bus = nc
		}
	}

	titleStore := storage.NewTitleStore(db, cfg.Database.QueryTimeout)
	reactionStore := storage.NewReactionStore(db, cfg.Database.QueryTimeout)
	metricStore := storage.NewMetricStore(db, loc, cfg.Database.QueryTimeout)

	sources, err := buildSources(cfg.Ingestion)
	if err != nil {
		a.Close()
		return nil, err
	}

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = cfg.Ingestion.RetryAttempts
	retryConfig.InitialDelay = cfg.Ingestion.RetryDelay
	retryConfig.Multiplier = cfg.Ingestion.RetryBackoff

	collector := ingestion.NewCollector(titleStore, reactionStore, sources, ingestion.CollectorConfig{
		Titles: cfg.Ingestion.Titles,
		Retry:  retryConfig,
	})

	scorer := sentiment.NewScorer(reactionStore, sentiment.NewAnalyzer(), cfg.Sentiment.BatchSize)

	aggregator := aggregation.NewDailyAggregator(reactionStore, metricStore, loc)
	scheduler := aggregation.NewBatchScheduler(aggregator, bus, loc, aggregation.SchedulerConfig{
		MaxConcurrency: cfg.Aggregation.MaxConcurrency,
		UnitTimeout:    cfg.Aggregation.UnitTimeout,
		EventsTopic:    cfg.Aggregation.EventsTopic,
	})

	a.pipeline = pipeline.New(titleStore, collector, scorer, scheduler)
	return a, nil
}

// buildSources skips twitter when no bearer token is configured
func buildSources(cfg config.IngestionConfig) ([]ingestion.Source, error) {
	var sources []ingestion.Source

	if cfg.TwitterBearerToken != "" {
		tw, err := ingestion.NewTwitterSource(ingestion.TwitterConfig{
			BearerToken: cfg.TwitterBearerToken,
			Host:        cfg.TwitterHost,
			MaxResults:  cfg.TweetsPerTitle,
			Timeout:     cfg.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, tw)
	} else {
		logging.Warn().Msg("TWITTER_BEARER_TOKEN not set, skipping twitter collection")
	}

	sources = append(sources,
		ingestion.NewRedditSource(ingestion.RedditConfig{
			BaseURL:      cfg.RedditBaseURL,
			UserAgent:    cfg.RedditUserAgent,
			Subreddits:   cfg.RedditSubreddits,
			PostsLimit:   cfg.RedditPostsLimit,
			CommentLimit: cfg.RedditCommentLimit,
			RequestEvery: cfg.RedditRequestEvery,
			Timeout:      cfg.RequestTimeout,
		}),
		ingestion.NewMockSurveySource(ingestion.MockSurveyConfig{
			Responses: cfg.SurveyResponses,
			DaysBack:  cfg.SurveyDaysBack,
		}),
	)

	return sources, nil
}

func (a *app) Close() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
	a.db.Close()
}

func (a *app) setup(ctx context.Context) error {
	if err := storage.Migrate(ctx, a.db); err != nil {
		return err
	}
	_, err := a.pipeline.Setup(ctx)
	return err
}

func (a *app) collect(ctx context.Context) error {
	report, err := a.pipeline.Collect(ctx)
	if err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d collections failed", len(failed), len(report.Results))
	}
	return nil
}

func (a *app) sentiment(ctx context.Context) error {
	_, err := a.pipeline.Score(ctx)
	return err
}

func (a *app) aggregate(ctx context.Context, args aggregateFlags) error {
	r, err := args.Range(time.Now(), a.loc)
	if err != nil {
		return err
	}
	report, err := a.pipeline.Aggregate(ctx, r, args.title)
	return reportError(report, err)
}

func (a *app) aggregateWeek(ctx context.Context) error {
	report, err := a.pipeline.AggregateWeek(ctx)
	return reportError(report, err)
}

func (a *app) full(ctx context.Context) error {
	if err := storage.Migrate(ctx, a.db); err != nil {
		return err
	}

	result, err := a.pipeline.RunOnce(ctx)
	if err != nil {
		return err
	}
	if !result.OK() {
		return fmt.Errorf("%d collections and %d units failed",
			len(result.Collected.Failed()), len(result.Aggregated.Failed))
	}
	return nil
}

func (a *app) schedule(ctx context.Context) error {
	if err := storage.Migrate(ctx, a.db); err != nil {
		return err
	}

	runner := pipeline.NewRunner(a.pipeline, pipeline.RunnerConfig{
		Interval:   a.config.Pipeline.Interval,
		RunOnStart: a.config.Pipeline.RunOnStart,
	})
	if err := runner.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return runner.Stop(stopCtx)
}

func reportError(report metric.Report, err error) error {
	for _, f := range report.Failed {
		logging.Error().Err(f.Err).Str("title", f.Title).Str("day", f.Day.Format("2006-01-02")).Msg("Unit failed")
	}
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%d of %d units failed", len(report.Failed), report.Succeeded+len(report.Failed))
	}
	return nil
}
