package topics

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Topic is one candidate subject for a video. Immutable once produced.
type Topic struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Source produces a bounded, non-restartable sequence of topics.
type Source interface {
	Topics(ctx context.Context, n int) ([]Topic, error)
}

// SeedSource returns a shuffled sample of a static list. It is the terminal
// fallback: it only fails when the list itself is empty.
type SeedSource struct {
	Seeds []string
}

func NewSeedSource(seeds []string) *SeedSource {
	return &SeedSource{Seeds: seeds}
}

func (s *SeedSource) Topics(_ context.Context, n int) ([]Topic, error) {
	shuffled := make([]string, len(s.Seeds))
	copy(shuffled, s.Seeds)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if n > len(shuffled) {
		n = len(shuffled)
	}

	now := time.Now().UTC()
	out := make([]Topic, 0, n)
	for _, text := range shuffled[:n] {
		out = append(out, Topic{Text: text, Source: "seed", FetchedAt: now})
	}
	log.Printf("[topics] seed list supplied %d topic(s)", len(out))
	return out, nil
}
