package aggregation

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

func testTitles() []reaction.Title {
	return []reaction.Title{
		{ID: 1, Name: "Stranger Things"},
		{ID: 2, Name: "The Witcher"},
		{ID: 3, Name: "Wednesday"},
	}
}

func seedEvents(events *fakeEvents, titles []reaction.Title, days []time.Time) {
	for _, d := range days {
		for i, title := range titles {
			p := float64(i+1) / 10
			events.social(title.ID, reaction.PlatformTwitter, d.Add(time.Hour), p, reaction.ClassPositive)
			events.social(title.ID, reaction.PlatformReddit, d.Add(2*time.Hour), -p, reaction.ClassNegative)
			events.survey(title.ID, d.Add(3*time.Hour), 4, i%2 == 0, 0.75)
		}
	}
}

func TestSchedulerRunsEveryUnit(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	titles := testTitles()
	r := metric.DateRange{From: date(2024, 3, 8), To: date(2024, 3, 10)}
	seedEvents(events, titles, r.Days(time.UTC))

	bus := &fakePublisher{}
	s := NewBatchScheduler(NewDailyAggregator(events, rows, time.UTC), bus, time.UTC, SchedulerConfig{MaxConcurrency: 1})

	report, err := s.Run(context.Background(), r, titles)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Succeeded != 9 || !report.OK() {
		t.Fatalf("expected 9 successful units, got %+v", report)
	}
	if report.RowsWritten != 27 {
		t.Fatalf("expected 27 rows, got %d", report.RowsWritten)
	}
	if report.RunID == "" {
		t.Fatal("expected a run id")
	}
	if got := bus.count(UnitSubject("aggregate")); got != 9 {
		t.Fatalf("expected 9 unit events, got %d", got)
	}
	if got := bus.count(RunSubject("aggregate")); got != 1 {
		t.Fatalf("expected 1 run event, got %d", got)
	}

	var event RunCompletedEvent
	if err := json.Unmarshal(bus.payloads[len(bus.payloads)-1], &event); err != nil {
		t.Fatalf("decode run event: %v", err)
	}
	if event.RunID != report.RunID || event.Succeeded != 9 || event.Cancelled {
		t.Fatalf("unexpected run event: %+v", event)
	}
}

func TestSchedulerRerunIsIdempotent(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	titles := testTitles()
	r := metric.DateRange{From: date(2024, 3, 9), To: date(2024, 3, 10)}
	seedEvents(events, titles, r.Days(time.UTC))

	s := NewBatchScheduler(NewDailyAggregator(events, rows, time.UTC), nil, time.UTC, SchedulerConfig{})

	if _, err := s.Run(context.Background(), r, titles); err != nil {
		t.Fatalf("run: %v", err)
	}
	first := rows.snapshot()

	if _, err := s.Run(context.Background(), r, titles); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if !reflect.DeepEqual(first, rows.snapshot()) {
		t.Fatal("rerun changed row contents")
	}
}

func TestSchedulerToleratesPartialFailure(t *testing.T) {
	titles := testTitles()
	failDay := date(2024, 3, 9)

	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		if title.ID == 2 && day.Equal(failDay) {
			return nil, metric.ErrSourceUnavailable
		}
		return []metric.Row{{TitleID: title.ID, Platform: reaction.PlatformTwitter, Day: day, TotalCount: 1}}, nil
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{MaxConcurrency: 1})
	report, err := s.Run(context.Background(), metric.DateRange{From: date(2024, 3, 8), To: date(2024, 3, 10)}, titles)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(report.Failed) != 1 {
		t.Fatalf("expected exactly one failure, got %d", len(report.Failed))
	}
	f := report.Failed[0]
	if f.TitleID != 2 || !f.Day.Equal(failDay) || !errors.Is(f.Err, metric.ErrSourceUnavailable) {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if report.Succeeded != 8 {
		t.Fatalf("expected 8 successes, got %d", report.Succeeded)
	}
}

func TestSchedulerRecoversPanickingUnit(t *testing.T) {
	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		if title.ID == 1 {
			panic("unexpected")
		}
		return nil, nil
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{})
	report, err := s.Run(context.Background(), metric.DateRange{From: date(2024, 3, 10), To: date(2024, 3, 10)}, testTitles())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Failed) != 1 || report.Succeeded != 2 {
		t.Fatalf("expected one recovered failure, got %+v", report)
	}
}

func TestSchedulerFailureOrderWithConcurrency(t *testing.T) {
	titles := testTitles()

	// Later titles finish first so completion order differs from catalog order
	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		time.Sleep(time.Duration(len(titles)-int(title.ID)) * 5 * time.Millisecond)
		return nil, errBoom
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{MaxConcurrency: 3})
	r := metric.DateRange{From: date(2024, 3, 9), To: date(2024, 3, 10)}
	report, err := s.Run(context.Background(), r, titles)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(report.Failed) != 6 {
		t.Fatalf("expected 6 failures, got %d", len(report.Failed))
	}
	i := 0
	for _, day := range r.Days(time.UTC) {
		for _, title := range titles {
			f := report.Failed[i]
			if f.TitleID != title.ID || !f.Day.Equal(day) {
				t.Fatalf("failure %d: expected title %d on %s, got title %d on %s",
					i, title.ID, day.Format("2006-01-02"), f.TitleID, f.Day.Format("2006-01-02"))
			}
			i++
		}
	}
}

func TestSchedulerConcurrentMatchesSequential(t *testing.T) {
	titles := testTitles()
	r := metric.DateRange{From: date(2024, 3, 4), To: date(2024, 3, 10)}

	run := func(concurrency int) (metric.Report, map[rowKey]metric.Row) {
		events := &fakeEvents{}
		rows := newFakeRows()
		seedEvents(events, titles, r.Days(time.UTC))

		s := NewBatchScheduler(NewDailyAggregator(events, rows, time.UTC), nil, time.UTC, SchedulerConfig{MaxConcurrency: concurrency})
		report, err := s.Run(context.Background(), r, titles)
		if err != nil {
			t.Fatalf("run with concurrency %d: %v", concurrency, err)
		}
		return report, rows.snapshot()
	}

	seqReport, seqRows := run(1)
	parReport, parRows := run(4)

	if seqReport.Succeeded != parReport.Succeeded || seqReport.RowsWritten != parReport.RowsWritten {
		t.Fatalf("reports differ: sequential %+v, concurrent %+v", seqReport, parReport)
	}
	if !reflect.DeepEqual(seqRows, parRows) {
		t.Fatal("concurrent run produced different rows")
	}
}

func TestSchedulerCancellationStopsNewUnits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		cancel()
		return nil, nil
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{MaxConcurrency: 1})
	report, err := s.Run(ctx, metric.DateRange{From: date(2024, 3, 8), To: date(2024, 3, 10)}, testTitles())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one unit to start, got %d", calls)
	}
	if report.Succeeded != 1 || len(report.Failed) != 0 {
		t.Fatalf("expected partial report with one success, got %+v", report)
	}
}

func TestSchedulerUnitTimeout(t *testing.T) {
	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{UnitTimeout: 10 * time.Millisecond})
	report, err := s.Run(context.Background(), metric.DateRange{From: date(2024, 3, 10), To: date(2024, 3, 10)}, testTitles()[:1])
	if err != nil {
		t.Fatalf("a unit timeout must not fail the run: %v", err)
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected one deadline failure, got %+v", report.Failed)
	}
}

func TestSchedulerRejectsInvalidRange(t *testing.T) {
	s := NewBatchScheduler(aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		t.Fatal("no unit may run for an invalid range")
		return nil, nil
	}), nil, time.UTC, SchedulerConfig{})

	_, err := s.Run(context.Background(), metric.DateRange{From: date(2024, 3, 10), To: date(2024, 3, 9)}, testTitles())
	if !errors.Is(err, metric.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestSchedulerRunWeek(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	agg := aggregatorFunc(func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
		mu.Lock()
		seen[day.Format("2006-01-02")] = true
		mu.Unlock()
		return nil, nil
	})

	s := NewBatchScheduler(agg, nil, time.UTC, SchedulerConfig{})
	s.now = func() time.Time { return time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC) }

	report, err := s.RunWeek(context.Background(), testTitles()[:1])
	if err != nil {
		t.Fatalf("run week: %v", err)
	}
	if report.Succeeded != 8 {
		t.Fatalf("expected 8 days, got %d", report.Succeeded)
	}
	if !seen["2024-03-03"] || !seen["2024-03-10"] {
		t.Fatalf("expected range 2024-03-03..2024-03-10, saw %v", seen)
	}
}
