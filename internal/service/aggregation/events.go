// internal/service/aggregation/events.go

package aggregation

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"streampulse/internal/domain/metric"
)

// Publisher sends notifications to the event bus; *nats.Conn satisfies it
type Publisher interface {
	Publish(subject string, data []byte) error
}

// UnitCompletedEvent is published after one (title, day) unit is written
type UnitCompletedEvent struct {
	RunID   string       `json:"run_id"`
	TitleID int64        `json:"title_id"`
	Title   string       `json:"title"`
	Day     string       `json:"day"`
	Rows    []metric.Row `json:"rows"`
}

// RunCompletedEvent is published once a batch run finishes
type RunCompletedEvent struct {
	RunID       string    `json:"run_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	RowsWritten int       `json:"rows_written"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Cancelled   bool      `json:"cancelled"`
}

// UnitSubject returns the subject for unit notifications
func UnitSubject(topic string) string {
	return fmt.Sprintf("%s.unit.completed", topic)
}

// RunSubject returns the subject for run notifications
func RunSubject(topic string) string {
	return fmt.Sprintf("%s.run.completed", topic)
}

func publishJSON(p Publisher, subject string, v interface{}) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding %s event: %w", subject, err)
	}

	if err := p.Publish(subject, data); err != nil {
		return fmt.Errorf("error publishing %s event: %w", subject, err)
	}

	return nil
}
