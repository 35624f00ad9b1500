package metric

import (
	"errors"
	"fmt"
	"time"

	"streampulse/internal/domain/reaction"
)

// Error kinds surfaced by the aggregation core
var (
	ErrSourceUnavailable = errors.New("event source unavailable")
	ErrStorageWrite      = errors.New("storage write failure")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrUnknownEntity     = errors.New("unknown entity")
)

// Row is one daily summary keyed by (title, platform, day)
type Row struct {
	TitleID            int64             `json:"title_id"`
	Platform           reaction.Platform `json:"platform"`
	Day                time.Time         `json:"day"`
	PositiveCount      int               `json:"positive_count"`
	NeutralCount       int               `json:"neutral_count"`
	NegativeCount      int               `json:"negative_count"`
	TotalCount         int               `json:"total_count"`
	AvgSentiment       *float64          `json:"avg_sentiment,omitempty"`
	AvgSatisfaction    *float64          `json:"avg_satisfaction,omitempty"`
	AvgCompletionRate  *float64          `json:"avg_completion_rate,omitempty"`
	RecommendationRate *float64          `json:"recommendation_rate,omitempty"`
}

// Window is a half-open time interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight in loc
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayWindow returns the [00:00, 24:00) window of day in loc
func DayWindow(day time.Time, loc *time.Location) Window {
	start := Day(day, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects empty and inverted ranges
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: both ends are required", ErrInvalidRange)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange, r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	return nil
}

// Days returns every day of the range in chronological order
func (r DateRange) Days(loc *time.Location) []time.Time {
	from, to := Day(r.From, loc), Day(r.To, loc)
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Breakdown counts social items per sentiment class
type Breakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// PlatformSummary is the multi-day view of one platform.
// Averages are unweighted means of the daily rows.
type PlatformSummary struct {
	Platform           reaction.Platform `json:"platform"`
	Days               int               `json:"days"`
	TotalCount         int               `json:"total_count"`
	AvgSentiment       float64           `json:"avg_sentiment"`
	Breakdown          *Breakdown        `json:"sentiment_breakdown,omitempty"`
	AvgSatisfaction    float64           `json:"avg_satisfaction"`
	RecommendationRate float64           `json:"recommendation_rate"`
}

// Summary is the presentation view of one title over recent days
type Summary struct {
	TitleID   int64             `json:"title_id"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Platforms []PlatformSummary `json:"platforms"`
}

// Platform returns the summary of one platform
func (s Summary) Platform(p reaction.Platform) (PlatformSummary, bool) {
	for _, ps := range s.Platforms {
		if ps.Platform == p {
			return ps, true
		}
	}
	return PlatformSummary{}, false
}

// UnitFailure records one (title, day) aggregation that failed
type UnitFailure struct {
	TitleID int64     `json:"title_id"`
	Title   string    `json:"title"`
	Day     time.Time `json:"day"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (f UnitFailure) Error() string {
	return fmt.Sprintf("%s on %s: %v", f.Title, f.Day.Format("2006-01-02"), f.Err)
}

// Report summarizes one batch run
type Report struct {
	RunID       string        `json:"run_id"`
	Range       DateRange     `json:"range"`
	Succeeded   int           `json:"succeeded"`
	Failed      []UnitFailure `json:"failed"`
	RowsWritten int           `json:"rows_written"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// OK reports whether every unit succeeded
func (r Report) OK() bool {
	return len(r.Failed) == 0
}
