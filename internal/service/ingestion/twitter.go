// internal/service/ingestion/twitter.go

package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/g8rswimmer/go-twitter/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"streampulse/internal/domain/reaction"
)

const (
	tweetsPageMin = 10
	tweetsPageMax = 100
)

// TwitterConfig contains configuration for the twitter source
type TwitterConfig struct {
	BearerToken string
	Host        string
	MaxResults  int
	Timeout     time.Duration
}

type bearerAuthorizer struct {
	token string
}

func (a bearerAuthorizer) Add(req *http.Request) {
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", a.token))
}

// TwitterSource collects recent tweets through the v2 recent search endpoint
type TwitterSource struct {
	client     *twitter.Client
	maxResults int
	breaker    *gobreaker.CircuitBreaker[*twitter.TweetRecentSearchResponse]
}

// NewTwitterSource creates a new twitter source
func NewTwitterSource(config TwitterConfig) (*TwitterSource, error) {
	if config.BearerToken == "" {
		return nil, fmt.Errorf("twitter bearer token not configured")
	}
	if config.Host == "" {
		config.Host = "https://api.twitter.com"
	}
	if config.MaxResults <= 0 {
		config.MaxResults = tweetsPageMax
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &TwitterSource{
		client: &twitter.Client{
			Authorizer: bearerAuthorizer{token: config.BearerToken},
			Client:     &http.Client{Timeout: config.Timeout},
			Host:       strings.TrimRight(config.Host, "/"),
		},
		maxResults: config.MaxResults,
		breaker:    newBreaker[*twitter.TweetRecentSearchResponse]("twitter"),
	}, nil
}

// Platform returns the twitter platform
func (s *TwitterSource) Platform() reaction.Platform {
	return reaction.PlatformTwitter
}

// TwitterQuery matches the quoted title or its hashtag, excluding retweets
func TwitterQuery(title string) string {
	return fmt.Sprintf(`"%s" OR #%s -is:retweet lang:en`, title, strings.ReplaceAll(title, " ", ""))
}

// Fetch pages through recent tweets until maxResults items are collected
func (s *TwitterSource) Fetch(ctx context.Context, title string) ([]reaction.RawItem, error) {
	query := TwitterQuery(title)

	var items []reaction.RawItem
	nextToken := ""
	for len(items) < s.maxResults {
		pageSize := s.maxResults - len(items)
		if pageSize > tweetsPageMax {
			pageSize = tweetsPageMax
		}
		if pageSize < tweetsPageMin {
			pageSize = tweetsPageMin
		}

		opts := twitter.TweetRecentSearchOpts{
			TweetFields: []twitter.TweetField{
				twitter.TweetFieldCreatedAt,
				twitter.TweetFieldAuthorID,
				twitter.TweetFieldPublicMetrics,
			},
			MaxResults: pageSize,
			NextToken:  nextToken,
		}

		resp, err := s.breaker.Execute(func() (*twitter.TweetRecentSearchResponse, error) {
			return s.client.TweetRecentSearch(ctx, query, opts)
		})
		if err != nil {
			return nil, fmt.Errorf("error searching tweets: %w", err)
		}

		if resp.Raw != nil {
			for _, tw := range resp.Raw.Tweets {
				if tw == nil {
					continue
				}
				items = append(items, tweetItem(tw))
			}
		}

		if resp.Meta == nil || resp.Meta.NextToken == "" {
			break
		}
		nextToken = resp.Meta.NextToken
	}

	if len(items) > s.maxResults {
		items = items[:s.maxResults]
	}

	return items, nil
}

func tweetItem(tw *twitter.TweetObj) reaction.RawItem {
	item := reaction.RawItem{
		NativeID: tw.ID,
		Text:     tw.Text,
		Author:   tw.AuthorID,
	}

	if created, err := time.Parse(time.RFC3339, tw.CreatedAt); err == nil {
		item.CreatedAt = created.UTC()
	} else {
		item.CreatedAt = time.Now().UTC()
	}

	if m := tw.PublicMetrics; m != nil {
		item.Engagement = m.Likes + m.Retweets + m.Replies
	}

	return item
}
