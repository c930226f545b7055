package datasource

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/avinashsk/equitydesk/internal/cache"
)

// NewsSource is one configured RSS feed.
type NewsSource struct {
	Name   string
	RSSURL string
}

// DefaultNewsSources lists the Indian financial market feeds polled for
// company headlines.
var DefaultNewsSources = []NewsSource{
	{Name: "Moneycontrol", RSSURL: "https://www.moneycontrol.com/rss/marketreports.xml"},
	{Name: "Economic Times Markets", RSSURL: "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"},
	{Name: "LiveMint Markets", RSSURL: "https://www.livemint.com/rss/markets"},
}

// Headline is one news item matched to a company.
type Headline struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// News fetches market headlines from RSS feeds. Feeds are cached whole and
// filtered per query, so repeated lookups do not refetch.
type News struct {
	sources []NewsSource
	parser  *gofeed.Parser
	cache   *cache.Store[[]Headline]
}

// NewNews creates the news fetcher with the default feeds.
func NewNews(timeout time.Duration) *News {
	parser := gofeed.NewParser()
	parser.Client = NewHTTPClient(timeout)
	parser.UserAgent = DefaultUserAgent
	return &News{
		sources: DefaultNewsSources,
		parser:  parser,
		cache:   cache.New[[]Headline](10 * time.Minute),
	}
}

// Headlines returns recent items whose title mentions the query (company
// name or base symbol), newest first, at most limit entries.
func (n *News) Headlines(ctx context.Context, query string, limit int) ([]Headline, error) {
	if limit <= 0 {
		limit = 5
	}

	all, err := n.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var matched []Headline
	for _, h := range all {
		if q == "" || strings.Contains(strings.ToLower(h.Title), q) {
			matched = append(matched, h)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (n *News) fetchAll(ctx context.Context) ([]Headline, error) {
	if cached, ok := n.cache.Get("feeds"); ok {
		return cached, nil
	}

	var all []Headline
	var lastErr error
	for _, src := range n.sources {
		feed, err := n.parser.ParseURLWithContext(src.RSSURL, ctx)
		if err != nil {
			lastErr = err
			continue
		}
		for _, item := range feed.Items {
			h := Headline{
				Title:  item.Title,
				Link:   item.Link,
				Source: src.Name,
			}
			if item.PublishedParsed != nil {
				h.PublishedAt = *item.PublishedParsed
			}
			all = append(all, h)
		}
	}
	if len(all) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}

	n.cache.Put("feeds", all)
	return all, nil
}
