// internal/service/ingestion/reddit.go

package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"streampulse/internal/domain/reaction"
	"streampulse/internal/logging"
)

const minCommentLength = 10

// RedditConfig contains configuration for the reddit source
type RedditConfig struct {
	BaseURL      string
	UserAgent    string
	Subreddits   []string
	PostsLimit   int
	CommentLimit int
	RequestEvery time.Duration
	Timeout      time.Duration
}

// RedditSource collects comments from posts that mention a title
type RedditSource struct {
	httpClient *http.Client
	config     RedditConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	log        zerolog.Logger
}

type redditListing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string        `json:"after"`
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type redditPost struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subreddit   string `json:"subreddit"`
	NumComments int    `json:"num_comments"`
}

type redditComment struct {
	ID         string          `json:"id"`
	Body       string          `json:"body"`
	Author     string          `json:"author"`
	Subreddit  string          `json:"subreddit"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// NewRedditSource creates a new reddit source
func NewRedditSource(config RedditConfig) *RedditSource {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.reddit.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.UserAgent == "" {
		config.UserAgent = "streampulse/1.0"
	}
	if config.PostsLimit <= 0 {
		config.PostsLimit = 10
	}
	if config.CommentLimit <= 0 {
		config.CommentLimit = 50
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if config.RequestEvery > 0 {
		limit = rate.Every(config.RequestEvery)
	}

	return &RedditSource{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker[[]byte]("reddit"),
		log:        logging.With().Str("component", "reddit").Logger(),
	}
}

// Platform returns the reddit platform
func (s *RedditSource) Platform() reaction.Platform {
	return reaction.PlatformReddit
}

// Fetch searches every subreddit for the title and collects comments of the matching posts.
// A failing subreddit is skipped; the fetch fails only when every subreddit fails.
func (s *RedditSource) Fetch(ctx context.Context, title string) ([]reaction.RawItem, error) {
	var items []reaction.RawItem
	seen := make(map[string]bool)
	failures := 0
	var lastErr error

	for _, sub := range s.config.Subreddits {
		posts, err := s.searchPosts(ctx, sub, title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			lastErr = err
			s.log.Warn().Err(err).Str("subreddit", sub).Str("title", title).Msg("Error searching subreddit")
			continue
		}

		for _, post := range posts {
			comments, err := s.postComments(ctx, post.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.log.Warn().Err(err).Str("post", post.ID).Msg("Error reading comments")
				continue
			}

			for _, c := range comments {
				if seen[c.ID] || utf8.RuneCountInString(c.Body) <= minCommentLength {
					continue
				}
				seen[c.ID] = true
				items = append(items, commentItem(c, sub))
			}
		}
	}

	if len(s.config.Subreddits) > 0 && failures == len(s.config.Subreddits) {
		return nil, fmt.Errorf("all subreddits failed: %w", lastErr)
	}

	return items, nil
}

func (s *RedditSource) searchPosts(ctx context.Context, subreddit, title string) ([]redditPost, error) {
	q := url.Values{}
	q.Set("q", title)
	q.Set("restrict_sr", "1")
	q.Set("t", "week")
	q.Set("sort", "relevance")
	q.Set("limit", fmt.Sprintf("%d", s.config.PostsLimit))

	body, err := s.get(ctx, fmt.Sprintf("%s/r/%s/search.json?%s", s.config.BaseURL, url.PathEscape(subreddit), q.Encode()))
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var posts []redditPost
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var p redditPost
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode post: %w", err)
		}
		posts = append(posts, p)
		if len(posts) == s.config.PostsLimit {
			break
		}
	}

	return posts, nil
}

// postComments returns up to CommentLimit comments of a post in breadth-first order
func (s *RedditSource) postComments(ctx context.Context, postID string) ([]redditComment, error) {
	body, err := s.get(ctx, fmt.Sprintf("%s/comments/%s.json?limit=%d", s.config.BaseURL, url.PathEscape(postID), s.config.CommentLimit))
	if err != nil {
		return nil, err
	}

	// The response holds the post listing followed by the comment listing
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode comments response: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	queue := listings[1].Data.Children
	var comments []redditComment
	for len(queue) > 0 && len(comments) < s.config.CommentLimit {
		thing := queue[0]
		queue = queue[1:]
		if thing.Kind != "t1" {
			continue
		}

		var c redditComment
		if err := json.Unmarshal(thing.Data, &c); err != nil {
			return nil, fmt.Errorf("failed to decode comment: %w", err)
		}
		comments = append(comments, c)

		// replies is an empty string when there are none
		if len(c.Replies) > 0 && c.Replies[0] == '{' {
			var replies redditListing
			if err := json.Unmarshal(c.Replies, &replies); err == nil {
				queue = append(queue, replies.Data.Children...)
			}
		}
	}

	return comments, nil
}

func (s *RedditSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return s.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", s.config.UserAgent)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Reddit API: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Reddit API returned status code %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read Reddit API response: %w", err)
		}
		return body, nil
	})
}

func commentItem(c redditComment, subreddit string) reaction.RawItem {
	author := c.Author
	if author == "" {
		author = "[deleted]"
	}
	channel := c.Subreddit
	if channel == "" {
		channel = subreddit
	}

	return reaction.RawItem{
		NativeID:   c.ID,
		Text:       c.Body,
		Author:     author,
		Channel:    channel,
		Engagement: c.Score,
		CreatedAt:  time.Unix(int64(c.CreatedUTC), 0).UTC(),
	}
}
