package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const metadataPrompt = `Generate YouTube Shorts metadata for a video with this narration:

%s

You MUST respond with ONLY valid JSON, no markdown, with exactly these fields:
- "title": string, max 90 chars, curiosity hook, ends with #shorts
- "description": string, 2-3 sentences plus 4 hashtags
- "tags": array of 10 short strings`

// Metadata is the upload-facing text for one video.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// GenerateMetadata produces title/description/tags via the dispatcher. Any
// failure degrades to deterministic metadata derived from the topic so a
// finished video is never blocked on a cosmetic call.
func GenerateMetadata(ctx context.Context, d *Dispatcher, topic, script string) Metadata {
	raw, err := d.Generate(ctx, fmt.Sprintf(metadataPrompt, script))
	if err != nil {
		log.Printf("[llm] metadata generation failed: %v — using fallback metadata", err)
		return FallbackMetadata(topic)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(CleanText(raw)), &meta); err != nil {
		log.Printf("[llm] metadata JSON parse failed: %v — using fallback metadata", err)
		return FallbackMetadata(topic)
	}
	if meta.Title == "" {
		return FallbackMetadata(topic)
	}

	if len(meta.Title) > 100 {
		meta.Title = meta.Title[:97] + "..."
	}
	if len(meta.Tags) > 15 {
		meta.Tags = meta.Tags[:15]
	}
	return meta
}

// FallbackMetadata builds serviceable metadata straight from the topic.
func FallbackMetadata(topic string) Metadata {
	title := topic
	if len(title) > 90 {
		title = title[:87] + "..."
	}
	return Metadata{
		Title:       title + " #shorts",
		Description: fmt.Sprintf("%s\n\n#shorts #tech #news #trending", topic),
		Tags:        append(strings.Fields(strings.ToLower(topic)), "shorts", "tech news"),
	}
}
