package compose

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Composer wraps ffmpeg to turn a background clip, narration audio and a
// script into a 9:16 short plus an optional thumbnail. The tool is opaque:
// only exit status and output file existence matter.
type Composer struct {
	MaxDurationSec int
	FontFile       string

	run      func(ctx context.Context, args ...string) error
	duration func(ctx context.Context, path string) (float64, error)
}

func New(maxDurationSec int, fontFile string) *Composer {
	return &Composer{
		MaxDurationSec: maxDurationSec,
		FontFile:       fontFile,
		run:            runFFmpeg,
		duration:       probeDuration,
	}
}

// Compose produces video.mp4 (and thumbnail.jpg when possible) in outDir.
// A failed ffmpeg run degrades to the raw background clip with no thumbnail:
// an ugly upload beats a dead batch, and upload errors still surface
// downstream.
func (c *Composer) Compose(ctx context.Context, backgroundPath, audioPath, script, title, outDir string) (string, string) {
	videoPath := filepath.Join(outDir, "video.mp4")

	if err := c.render(ctx, backgroundPath, audioPath, script, videoPath); err != nil {
		log.Printf("[compose] render failed: %v — degrading to raw background clip", err)
		return backgroundPath, ""
	}

	thumbPath := filepath.Join(outDir, "thumbnail.jpg")
	if err := c.thumbnail(ctx, videoPath, title, thumbPath); err != nil {
		log.Printf("[compose] thumbnail failed: %v — continuing without one", err)
		thumbPath = ""
	}

	log.Printf("[compose] video ready: %s", videoPath)
	return videoPath, thumbPath
}

// render scales/crops to 1080x1920, burns the caption text bottom-center and
// clamps duration to min(MaxDurationSec, audio length).
func (c *Composer) render(ctx context.Context, backgroundPath, audioPath, script, outPath string) error {
	caption := captionText(script)

	filter := fmt.Sprintf(
		"scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,"+
			"drawtext=fontfile=%s:text='%s':fontsize=56:fontcolor=white:"+
			"box=1:boxcolor=black@0.5:boxborderw=10:x=(w-text_w)/2:y=h-text_h-180",
		c.FontFile, escapeDrawtext(caption),
	)

	args := []string{"-y", "-i", backgroundPath}
	limit := float64(c.MaxDurationSec)

	if audioPath != "" {
		if dur, err := c.duration(ctx, audioPath); err == nil && dur < limit {
			limit = dur
		}
		args = append(args, "-i", audioPath,
			"-map", "0:v:0", "-map", "1:a:0",
			"-c:a", "aac", "-b:a", "192k",
		)
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-t", fmt.Sprintf("%.2f", limit),
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outPath,
	)

	return c.run(ctx, args...)
}

// thumbnail extracts the frame at t=1s and draws the stroked title over it.
func (c *Composer) thumbnail(ctx context.Context, videoPath, title, outPath string) error {
	filter := fmt.Sprintf(
		"drawtext=fontfile=%s:text='%s':fontsize=72:fontcolor=white:"+
			"borderw=4:bordercolor=black:x=(w-text_w)/2:y=(h-text_h)/2",
		c.FontFile, escapeDrawtext(captionText(title)),
	)

	return c.run(ctx,
		"-y",
		"-ss", "1",
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", filter,
		"-q:v", "2",
		outPath,
	)
}

// captionText keeps the overlay readable: first sentence-ish chunk, capped.
func captionText(script string) string {
	s := strings.TrimSpace(script)
	if idx := strings.IndexAny(s, ".!?"); idx > 0 && idx < 90 {
		s = s[:idx+1]
	}
	if len(s) > 90 {
		s = s[:87] + "..."
	}
	return s
}

// escapeDrawtext escapes the characters ffmpeg's drawtext treats specially.
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}

func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// probeDuration reads a media file's duration in seconds via ffprobe.
func probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	var dur float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur); err != nil {
		return 0, err
	}
	return dur, nil
}
