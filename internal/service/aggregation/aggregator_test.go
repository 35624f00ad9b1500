package aggregation

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

func TestSocialAggregatorWeightedMean(t *testing.T) {
	events := &fakeEvents{}
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformTwitter, day.Add(1*time.Hour), 0.5, reaction.ClassPositive)
	events.social(1, reaction.PlatformTwitter, day.Add(2*time.Hour), 0.5, reaction.ClassPositive)
	events.social(1, reaction.PlatformTwitter, day.Add(3*time.Hour), -1.0, reaction.ClassNegative)
	// outside the window
	events.social(1, reaction.PlatformTwitter, day.Add(24*time.Hour), 1.0, reaction.ClassPositive)

	row, err := NewSocialAggregator(reaction.PlatformTwitter).Aggregate(context.Background(), events, 1, metric.DayWindow(day, time.UTC))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row == nil {
		t.Fatal("expected a row")
	}
	if row.PositiveCount != 2 || row.NeutralCount != 0 || row.NegativeCount != 1 || row.TotalCount != 3 {
		t.Fatalf("unexpected counts: %+v", row)
	}
	if row.AvgSentiment == nil || math.Abs(*row.AvgSentiment) > 1e-9 {
		t.Fatalf("expected avg 0.0, got %v", row.AvgSentiment)
	}
	if row.AvgSatisfaction != nil || row.RecommendationRate != nil {
		t.Fatalf("social row must not carry survey fields: %+v", row)
	}
}

func TestSocialAggregatorCountInvariant(t *testing.T) {
	events := &fakeEvents{}
	day := date(2024, 3, 10)
	polarities := []struct {
		polarity float64
		class    reaction.Class
	}{
		{0.8, reaction.ClassPositive},
		{0.01, reaction.ClassNeutral},
		{-0.02, reaction.ClassNeutral},
		{-0.6, reaction.ClassNegative},
		{0.3, reaction.ClassPositive},
	}
	for i, p := range polarities {
		events.social(1, reaction.PlatformReddit, day.Add(time.Duration(i)*time.Minute), p.polarity, p.class)
	}

	row, err := NewSocialAggregator(reaction.PlatformReddit).Aggregate(context.Background(), events, 1, metric.DayWindow(day, time.UTC))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row.TotalCount != row.PositiveCount+row.NeutralCount+row.NegativeCount {
		t.Fatalf("total %d does not match class counts %+v", row.TotalCount, row)
	}
	if row.TotalCount != len(polarities) {
		t.Fatalf("expected %d events, got %d", len(polarities), row.TotalCount)
	}

	want := (0.8 + 0.01 - 0.02 - 0.6 + 0.3) / 5
	if math.Abs(*row.AvgSentiment-want) > 1e-9 {
		t.Fatalf("expected avg %f, got %f", want, *row.AvgSentiment)
	}
}

func TestSurveyAggregatorMeans(t *testing.T) {
	events := &fakeEvents{}
	day := date(2024, 3, 10)
	events.survey(1, day.Add(1*time.Hour), 4, true, 0.5)
	events.survey(1, day.Add(2*time.Hour), 5, true, 1.0)
	events.survey(1, day.Add(3*time.Hour), 3, false, 0.0)

	row, err := NewSurveyAggregator().Aggregate(context.Background(), events, 1, metric.DayWindow(day, time.UTC))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if row == nil {
		t.Fatal("expected a row")
	}
	if row.TotalCount != 3 {
		t.Fatalf("expected 3 responses, got %d", row.TotalCount)
	}
	if math.Abs(*row.AvgSatisfaction-4.0) > 1e-9 {
		t.Fatalf("expected satisfaction 4.0, got %f", *row.AvgSatisfaction)
	}
	if math.Abs(*row.RecommendationRate-2.0/3.0) > 1e-9 {
		t.Fatalf("expected recommendation rate 0.667, got %f", *row.RecommendationRate)
	}
	if math.Abs(*row.AvgCompletionRate-0.5) > 1e-9 {
		t.Fatalf("expected completion 0.5, got %f", *row.AvgCompletionRate)
	}
}

func TestDailyAggregatorAbsenceOnEmpty(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformReddit, day.Add(time.Hour), 0.4, reaction.ClassPositive)

	written, err := NewDailyAggregator(events, rows, time.UTC).Aggregate(context.Background(), reaction.Title{ID: 1, Name: "Dark"}, day)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected only the reddit row, got %d rows", len(written))
	}

	if _, ok := rows.get(1, reaction.PlatformTwitter, day); ok {
		t.Fatal("twitter row must be absent when no events exist")
	}
	if _, ok := rows.get(1, reaction.PlatformSurvey, day); ok {
		t.Fatal("survey row must be absent when no responses exist")
	}
	if _, ok := rows.get(1, reaction.PlatformReddit, day); !ok {
		t.Fatal("expected a reddit row")
	}
}

func TestDailyAggregatorNothingToWrite(t *testing.T) {
	rows := newFakeRows()

	written, err := NewDailyAggregator(&fakeEvents{}, rows, time.UTC).Aggregate(context.Background(), reaction.Title{ID: 1, Name: "Dark"}, date(2024, 3, 10))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(written) != 0 || rows.upserts != 0 {
		t.Fatalf("expected no write, got %d rows and %d upserts", len(written), rows.upserts)
	}
}

func TestDailyAggregatorIdempotent(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformTwitter, day.Add(time.Hour), 0.7, reaction.ClassPositive)
	events.social(1, reaction.PlatformTwitter, day.Add(2*time.Hour), -0.3, reaction.ClassNegative)
	events.survey(1, day.Add(3*time.Hour), 5, true, 0.9)

	agg := NewDailyAggregator(events, rows, time.UTC)
	title := reaction.Title{ID: 1, Name: "Dark"}

	if _, err := agg.Aggregate(context.Background(), title, day); err != nil {
		t.Fatalf("first aggregate: %v", err)
	}
	first := rows.snapshot()

	for i := 0; i < 3; i++ {
		if _, err := agg.Aggregate(context.Background(), title, day); err != nil {
			t.Fatalf("aggregate %d: %v", i, err)
		}
	}

	if !reflect.DeepEqual(first, rows.snapshot()) {
		t.Fatal("re-aggregation changed row contents")
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(first))
	}
}

func TestDailyAggregatorOverwritesWithNewEvents(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformTwitter, day.Add(time.Hour), 0.6, reaction.ClassPositive)

	agg := NewDailyAggregator(events, rows, time.UTC)
	title := reaction.Title{ID: 1, Name: "Dark"}
	if _, err := agg.Aggregate(context.Background(), title, day); err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	events.social(1, reaction.PlatformTwitter, day.Add(2*time.Hour), -0.6, reaction.ClassNegative)
	if _, err := agg.Aggregate(context.Background(), title, day); err != nil {
		t.Fatalf("aggregate again: %v", err)
	}

	row, _ := rows.get(1, reaction.PlatformTwitter, day)
	if row.TotalCount != 2 || row.PositiveCount != 1 || row.NegativeCount != 1 {
		t.Fatalf("row was not recomputed: %+v", row)
	}
	if math.Abs(*row.AvgSentiment) > 1e-9 {
		t.Fatalf("expected avg 0, got %f", *row.AvgSentiment)
	}
}

func TestDailyAggregatorSourceFailureWritesNothing(t *testing.T) {
	events := &fakeEvents{fail: map[reaction.Platform]error{reaction.PlatformSurvey: errBoom}}
	rows := newFakeRows()
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformTwitter, day.Add(time.Hour), 0.6, reaction.ClassPositive)

	_, err := NewDailyAggregator(events, rows, time.UTC).Aggregate(context.Background(), reaction.Title{ID: 1, Name: "Dark"}, day)
	if !errors.Is(err, metric.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
	if len(rows.snapshot()) != 0 {
		t.Fatal("no row may be written when a read fails")
	}
}

func TestDailyAggregatorStorageFailure(t *testing.T) {
	events := &fakeEvents{}
	rows := newFakeRows()
	rows.fail = errBoom
	day := date(2024, 3, 10)
	events.social(1, reaction.PlatformTwitter, day.Add(time.Hour), 0.6, reaction.ClassPositive)

	_, err := NewDailyAggregator(events, rows, time.UTC).Aggregate(context.Background(), reaction.Title{ID: 1, Name: "Dark"}, day)
	if !errors.Is(err, metric.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
}

func TestDailyAggregatorUnknownTitle(t *testing.T) {
	_, err := NewDailyAggregator(&fakeEvents{}, newFakeRows(), time.UTC).Aggregate(context.Background(), reaction.Title{Name: "ghost"}, date(2024, 3, 10))
	if !errors.Is(err, metric.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestDailyAggregatorUsesLocationWindow(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	events := &fakeEvents{}
	rows := newFakeRows()

	// 23:30 UTC on March 9 is already March 10 in UTC+2
	events.social(1, reaction.PlatformTwitter, time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC), 0.5, reaction.ClassPositive)

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	written, err := NewDailyAggregator(events, rows, loc).Aggregate(context.Background(), reaction.Title{ID: 1, Name: "Dark"}, day)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected the event in the local day window, got %d rows", len(written))
	}
}
