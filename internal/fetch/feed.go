package fetch

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
)

// Feed fetches and parses an RSS/Atom feed. Used by the news sources, which
// publish feeds that are far more stable than their listing markup.
func (c *Client) Feed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed
	err := c.withRetry(ctx, feedURL, func() error {
		parser := gofeed.NewParser()
		parser.UserAgent = c.cfg.UserAgent
		f, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return &httpError{url: feedURL, cause: err}
		}
		feed = f
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
