package topics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"
)

// RedditSource pulls hot post titles from a subreddit as topic candidates.
// Read-only API, no credentials needed. Falls back to the seed list on any
// failure so a reddit outage never empties a batch.
type RedditSource struct {
	Subreddit string
	Seed      *SeedSource

	hotPosts func(ctx context.Context, subreddit string, limit int) ([]string, error)
}

func NewRedditSource(subreddit string, seed *SeedSource) *RedditSource {
	return &RedditSource{
		Subreddit: subreddit,
		Seed:      seed,
		hotPosts:  fetchHotPosts,
	}
}

func (r *RedditSource) Topics(ctx context.Context, n int) ([]Topic, error) {
	titles, err := r.hotPosts(ctx, r.Subreddit, n*3)
	if err != nil {
		log.Printf("[topics] reddit fetch warning: %v — falling back to seed list", err)
		return r.Seed.Topics(ctx, n)
	}

	out := headlinesToTopics(titles, n)
	for i := range out {
		out[i].Source = "reddit"
	}
	if len(out) == 0 {
		return r.Seed.Topics(ctx, n)
	}
	log.Printf("[topics] r/%s supplied %d topic(s)", r.Subreddit, len(out))
	return out, nil
}

func fetchHotPosts(ctx context.Context, subreddit string, limit int) ([]string, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}

	posts, _, err := client.Subreddit.HotPosts(ctx, subreddit, &reddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("reddit hot posts: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -1)
	var titles []string
	for _, post := range posts {
		if post.Created != nil && post.Created.Before(cutoff) {
			continue
		}
		titles = append(titles, post.Title)
	}
	return titles, nil
}
