package reaction

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies where a reaction was collected
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformReddit  Platform = "reddit"
	PlatformSurvey  Platform = "survey"
)

// Platforms lists every supported platform in aggregation order
var Platforms = []Platform{PlatformTwitter, PlatformReddit, PlatformSurvey}

// IsSocial reports whether items from this platform carry free text and a sentiment score
func (p Platform) IsSocial() bool {
	return p == PlatformTwitter || p == PlatformReddit
}

// ParsePlatform converts a string into a known platform
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformTwitter, PlatformReddit, PlatformSurvey:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported platform: %q", s)
	}
}

// Class is the categorical sentiment of a text
type Class string

const (
	ClassPositive Class = "positive"
	ClassNeutral  Class = "neutral"
	ClassNegative Class = "negative"
)

// ParseClass converts a string into a sentiment class
func ParseClass(s string) (Class, error) {
	switch c := Class(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassPositive, ClassNeutral, ClassNegative:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported sentiment class: %q", s)
	}
}

// Title is a tracked subject reactions are collected about
type Title struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentiment is the classifier output for one social item
type Sentiment struct {
	Polarity   float64 `json:"polarity"`
	Class      Class   `json:"class"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

// Survey holds the fields of one survey response
type Survey struct {
	Satisfaction   int     `json:"satisfaction"`
	WouldRecommend bool    `json:"would_recommend"`
	CompletionRate float64 `json:"completion_rate"`
}

// Validate checks the survey ranges
func (s Survey) Validate() error {
	if s.Satisfaction < 1 || s.Satisfaction > 5 {
		return fmt.Errorf("satisfaction must be within 1..5, got %d", s.Satisfaction)
	}
	if s.CompletionRate < 0 || s.CompletionRate > 1 {
		return fmt.Errorf("completion rate must be within [0,1], got %f", s.CompletionRate)
	}
	return nil
}

// ClassifiedEvent is one analyzed social item or survey response.
// Social events carry Sentiment, survey events carry Survey.
type ClassifiedEvent struct {
	ID         int64      `json:"id"`
	TitleID    int64      `json:"title_id"`
	Platform   Platform   `json:"platform"`
	NativeID   string     `json:"native_id"`
	Text       string     `json:"text,omitempty"`
	Author     string     `json:"author,omitempty"`
	Channel    string     `json:"channel,omitempty"`
	Engagement int        `json:"engagement"`
	Timestamp  time.Time  `json:"timestamp"`
	Sentiment  *Sentiment `json:"sentiment,omitempty"`
	Survey     *Survey    `json:"survey,omitempty"`
}

// RawItem is a collected item before it is stored
type RawItem struct {
	NativeID   string
	Text       string
	Author     string
	Channel    string
	Engagement int
	CreatedAt  time.Time
	Survey     *Survey
}

// PendingItem is a stored social item still waiting for a sentiment score
type PendingItem struct {
	ID       int64
	Platform Platform
	Text     string
}

// Score links a sentiment result to a stored social item
type Score struct {
	ReactionID int64
	Sentiment  Sentiment
}
