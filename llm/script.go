package llm

import (
	"context"
	"fmt"
	"strings"
)

const scriptPrompt = `You are a scriptwriter for a faceless YouTube Shorts channel.
Write a narration script for a 50-55 second vertical video about the topic below.

Rules:
- Open with a hook in the first sentence. No greetings, no channel intro.
- Plain spoken English, short sentences, ~140 words total.
- End with a question that drives comments.
- Respond with ONLY the narration text. No markdown, no stage directions, no quotes.

TOPIC: %s`

// GenerateScript asks the dispatcher for a narration script on topic and
// normalizes the output into plain spoken text.
func GenerateScript(ctx context.Context, d *Dispatcher, topic string) (string, error) {
	raw, err := d.Generate(ctx, fmt.Sprintf(scriptPrompt, topic))
	if err != nil {
		return "", err
	}

	script := CleanText(raw)
	if script == "" {
		return "", fmt.Errorf("script generation returned empty text for topic %q", topic)
	}
	return script, nil
}

// CleanText strips markdown fences and surrounding quotes that models wrap
// responses in despite instructions.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}
