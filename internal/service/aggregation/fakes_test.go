package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"streampulse/internal/domain/metric"
	"streampulse/internal/domain/reaction"
)

var errBoom = errors.New("boom")

type fakeEvents struct {
	mu     sync.Mutex
	events []reaction.ClassifiedEvent
	fail   map[reaction.Platform]error
}

func (f *fakeEvents) add(titleID int64, platform reaction.Platform, ts time.Time, s *reaction.Sentiment, sv *reaction.Survey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, reaction.ClassifiedEvent{
		ID:        int64(len(f.events) + 1),
		TitleID:   titleID,
		Platform:  platform,
		NativeID:  fmt.Sprintf("%s-%d", platform, len(f.events)+1),
		Timestamp: ts,
		Sentiment: s,
		Survey:    sv,
	})
}

func (f *fakeEvents) social(titleID int64, platform reaction.Platform, ts time.Time, polarity float64, class reaction.Class) {
	f.add(titleID, platform, ts, &reaction.Sentiment{Polarity: polarity, Class: class, Confidence: 1, Model: "test"}, nil)
}

func (f *fakeEvents) survey(titleID int64, ts time.Time, satisfaction int, recommend bool, completion float64) {
	f.add(titleID, reaction.PlatformSurvey, ts, nil, &reaction.Survey{Satisfaction: satisfaction, WouldRecommend: recommend, CompletionRate: completion})
}

func (f *fakeEvents) FindEvents(ctx context.Context, titleID int64, platform reaction.Platform, start, end time.Time) ([]reaction.ClassifiedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fail[platform]; err != nil {
		return nil, err
	}

	var out []reaction.ClassifiedEvent
	for _, e := range f.events {
		if e.TitleID != titleID || e.Platform != platform {
			continue
		}
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEvents) ListEvents(ctx context.Context, titleID int64, platform reaction.Platform, limit int) ([]reaction.ClassifiedEvent, error) {
	return nil, nil
}

type rowKey struct {
	titleID  int64
	platform reaction.Platform
	day      string
}

type fakeRows struct {
	mu      sync.Mutex
	rows    map[rowKey]metric.Row
	fail    error
	upserts int
}

func newFakeRows() *fakeRows {
	return &fakeRows{rows: make(map[rowKey]metric.Row)}
}

func keyOf(r metric.Row) rowKey {
	return rowKey{titleID: r.TitleID, platform: r.Platform, day: r.Day.Format("2006-01-02")}
}

func (f *fakeRows) UpsertRows(ctx context.Context, rows []metric.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	f.upserts++
	for _, r := range rows {
		f.rows[keyOf(r)] = r
	}
	return nil
}

func (f *fakeRows) FindRows(ctx context.Context, titleID int64, from, to time.Time) ([]metric.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}

	fromKey, toKey := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []metric.Row
	for k, r := range f.rows {
		if k.titleID == titleID && k.day >= fromKey && k.day <= toKey {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := keyOf(out[i]), keyOf(out[j])
		if ki.day != kj.day {
			return ki.day < kj.day
		}
		return ki.platform < kj.platform
	})
	return out, nil
}

func (f *fakeRows) get(titleID int64, platform reaction.Platform, day time.Time) (metric.Row, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[rowKey{titleID: titleID, platform: platform, day: day.Format("2006-01-02")}]
	return r, ok
}

func (f *fakeRows) snapshot() map[rowKey]metric.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[rowKey]metric.Row, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out
}

type fakeCatalog struct {
	titles []reaction.Title
}

func (f *fakeCatalog) EnsureTitle(ctx context.Context, name string) (*reaction.Title, error) {
	for _, t := range f.titles {
		if t.Name == name {
			return &t, nil
		}
	}
	t := reaction.Title{ID: int64(len(f.titles) + 1), Name: name}
	f.titles = append(f.titles, t)
	return &t, nil
}

func (f *fakeCatalog) GetTitle(ctx context.Context, id int64) (*reaction.Title, error) {
	for _, t := range f.titles {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: title %d", metric.ErrUnknownEntity, id)
}

func (f *fakeCatalog) GetTitleByName(ctx context.Context, name string) (*reaction.Title, error) {
	for _, t := range f.titles {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: title %s", metric.ErrUnknownEntity, name)
}

func (f *fakeCatalog) ListTitles(ctx context.Context) ([]reaction.Title, error) {
	return f.titles, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type aggregatorFunc func(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error)

func (f aggregatorFunc) Aggregate(ctx context.Context, title reaction.Title, day time.Time) ([]metric.Row, error) {
	return f(ctx, title, day)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
