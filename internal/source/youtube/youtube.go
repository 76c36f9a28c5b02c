// Package youtube resolves YouTube links into Playables by shelling out
// to yt-dlp for the direct stream URL, then fetching it over HTTP. It also
// exposes the metadata, playlist, and search helpers behind the
// /api/v1/search/youtube routes.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"nightingale/internal/track"
)

// Config holds YouTube extractor configuration.
type Config struct {
	CookiesFromBrowser string
	CookiesFile        string
}

var config Config

const (
	defaultCookiesPath = "/app/secrets/youtube_cookies.txt"
	runtimeCookiesPath = "/tmp/yt-cookies.txt"
)

// SetConfig sets the YouTube extractor configuration.
func SetConfig(c Config) {
	config = c
}

// LoadConfigFromEnv loads configuration from environment variables.
func LoadConfigFromEnv() {
	config.CookiesFromBrowser = os.Getenv("YT_COOKIES_BROWSER")
	config.CookiesFile = os.Getenv("YT_COOKIES_FILE")
}

func getCookieArgs() []string {
	cookiesFile := strings.TrimSpace(config.CookiesFile)
	if cookiesFile != "" {
		return []string{"--cookies", prepareCookieFile(cookiesFile)}
	}
	cookiesFromBrowser := strings.TrimSpace(config.CookiesFromBrowser)
	if cookiesFromBrowser != "" {
		return []string{"--cookies-from-browser", cookiesFromBrowser}
	}
	if _, err := os.Stat(defaultCookiesPath); err == nil {
		return []string{"--cookies", prepareCookieFile(defaultCookiesPath)}
	}
	return nil
}

func prepareCookieFile(sourcePath string) string {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return sourcePath
	}
	if err := os.WriteFile(runtimeCookiesPath, data, 0600); err != nil {
		return sourcePath
	}
	return runtimeCookiesPath
}

// Player implements source.SourcePlayer for YouTube links.
type Player struct{}

// New creates a YouTube SourcePlayer.
func New() *Player { return &Player{} }

// PlayURL resolves url to a direct audio stream via yt-dlp, fetches it, and
// returns the HTTP response body as the Playable's input. Metadata is
// best-effort: a failed ExtractMetadata call never fails PlayURL, it just
// leaves Meta at the zero value beyond Title/URL.
func (p *Player) PlayURL(ctx context.Context, url string) (track.Playable, error) {
	streamURL, err := ResolveStreamURL(ctx, url)
	if err != nil {
		return track.Playable{}, fmt.Errorf("youtube: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return track.Playable{}, fmt.Errorf("youtube: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return track.Playable{}, fmt.Errorf("youtube: fetch stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return track.Playable{}, fmt.Errorf("youtube: stream fetch status %d", resp.StatusCode)
	}

	meta := track.Meta{URL: url}
	if m, merr := ExtractMetadata(ctx, url); merr == nil {
		meta.Title = m.Title
		meta.Duration = float64(m.Duration)
		meta.Thumbnail = m.Thumbnail
	}

	return track.Playable{Input: resp.Body, Meta: meta}, nil
}

// ResolveStreamURL extracts the direct audio stream URL for url via
// yt-dlp's format-selector fallback chain. Exported so the external
// extractor (source/external) can reuse the same invocation for
// non-YouTube links.
func ResolveStreamURL(ctx context.Context, rawURL string) (string, error) {
	rawURL = normalizeYouTubeURL(rawURL)
	args := []string{
		"--ignore-config",
		"--no-playlist",
		"--no-warnings",
		"--no-check-certificate",
		"--socket-timeout", "10",
	}
	args = append(args, getJsRuntimeArgs()...)
	args = append(args, getCookieArgs()...)

	formatSelectors := []string{"bestaudio/best", "bestaudio", "best"}
	for _, selector := range formatSelectors {
		formatArgs := append(append([]string{}, args...), "-f", selector, "--get-url", rawURL)
		url, err := runYtDlpGetURL(ctx, formatArgs)
		if err == nil {
			return url, nil
		}
	}

	fallbackArgs := append(append([]string{}, args...), "--get-url", rawURL)
	return runYtDlpGetURL(ctx, fallbackArgs)
}

func getJsRuntimeArgs() []string {
	if _, err := exec.LookPath("node"); err == nil {
		return []string{"--js-runtimes", "node"}
	}
	if _, err := exec.LookPath("deno"); err == nil {
		return []string{"--js-runtimes", "deno"}
	}
	return nil
}

// Metadata holds the JSON output from yt-dlp.
type Metadata struct {
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// ExtractMetadata extracts track metadata without downloading.
func ExtractMetadata(ctx context.Context, rawURL string) (*Metadata, error) {
	rawURL = normalizeYouTubeURL(rawURL)
	args := []string{
		"--ignore-config",
		"--no-playlist",
		"--no-warnings",
		"--no-check-certificate",
		"--socket-timeout", "10",
		"-j",
		"--skip-download",
	}
	args = append(args, getJsRuntimeArgs()...)
	args = append(args, getCookieArgs()...)
	args = append(args, rawURL)

	out, err := exec.CommandContext(ctx, "yt-dlp", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if meta.Thumbnail == "" {
		if videoID := extractYouTubeID(rawURL); videoID != "" {
			meta.Thumbnail = "https://i.ytimg.com/vi/" + videoID + "/mqdefault.jpg"
		}
	}
	return &meta, nil
}

// IsPlaylist reports whether rawURL is a YouTube playlist link.
func IsPlaylist(rawURL string) bool {
	return strings.Contains(normalizeYouTubeURL(rawURL), "list=")
}

// PlaylistEntry represents a single video in a playlist.
type PlaylistEntry struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// ExtractPlaylist extracts all videos from a YouTube playlist.
func ExtractPlaylist(ctx context.Context, playlistURL string) ([]PlaylistEntry, error) {
	playlistURL = normalizeYouTubeURL(playlistURL)
	args := []string{
		"--ignore-config",
		"--yes-playlist",
		"--flat-playlist",
		"--no-warnings",
		"--no-check-certificate",
		"--socket-timeout", "15",
		"-j",
	}
	args = append(args, getJsRuntimeArgs()...)
	args = append(args, getCookieArgs()...)
	args = append(args, playlistURL)

	out, err := exec.CommandContext(ctx, "yt-dlp", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	entries := make([]PlaylistEntry, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		var entry struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Duration  int    `json:"duration"`
			Thumbnail string `json:"thumbnail"`
			URL       string `json:"url"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		url := entry.URL
		if url == "" && entry.ID != "" {
			url = "https://www.youtube.com/watch?v=" + entry.ID
		}
		thumbnail := entry.Thumbnail
		if thumbnail == "" && entry.ID != "" {
			thumbnail = "https://i.ytimg.com/vi/" + entry.ID + "/mqdefault.jpg"
		}
		entries = append(entries, PlaylistEntry{URL: url, Title: entry.Title, Duration: entry.Duration, Thumbnail: thumbnail})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no videos found in playlist")
	}
	return entries, nil
}

func runYtDlpGetURL(ctx context.Context, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}
	for _, line := range lines {
		if strings.Contains(line, "mime=audio") || strings.Contains(line, "audio/") {
			return strings.TrimSpace(line), nil
		}
	}
	return strings.TrimSpace(lines[0]), nil
}

var (
	videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	embedPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/.*[?&]v=([a-zA-Z0-9_-]{11})`),
	}
)

func isYouTubeID(value string) bool {
	return videoIDPattern.MatchString(value)
}

func normalizeYouTubeURL(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(trimmed, "youtube.com") || strings.Contains(trimmed, "youtu.be") {
		return trimmed
	}
	if isYouTubeID(trimmed) {
		return "https://www.youtube.com/watch?v=" + trimmed
	}
	return trimmed
}

func extractYouTubeID(value string) string {
	if isYouTubeID(value) {
		return value
	}
	for _, pattern := range embedPatterns {
		if match := pattern.FindStringSubmatch(value); len(match) > 1 {
			return match[1]
		}
	}
	return ""
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Channel   string `json:"channel"`
}

// Search searches YouTube for videos matching query, capped to limit
// results (clamped to 1..10, default 5).
func Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 10 {
		limit = 10
	}
	searchQuery := fmt.Sprintf("ytsearch%d:%s", limit, query)

	args := []string{
		"--ignore-config",
		"--flat-playlist",
		"--no-warnings",
		"--no-check-certificate",
		"--socket-timeout", "10",
		"-j",
	}
	args = append(args, getJsRuntimeArgs()...)
	args = append(args, getCookieArgs()...)
	args = append(args, searchQuery)

	out, err := exec.CommandContext(ctx, "yt-dlp", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	results := make([]SearchResult, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		var entry struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Duration  int    `json:"duration"`
			Thumbnail string `json:"thumbnail"`
			Channel   string `json:"channel"`
			Uploader  string `json:"uploader"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		thumbnail := entry.Thumbnail
		if thumbnail == "" && entry.ID != "" {
			thumbnail = "https://i.ytimg.com/vi/" + entry.ID + "/mqdefault.jpg"
		}
		channel := entry.Channel
		if channel == "" {
			channel = entry.Uploader
		}
		results = append(results, SearchResult{
			ID:        entry.ID,
			URL:       "https://www.youtube.com/watch?v=" + entry.ID,
			Title:     entry.Title,
			Duration:  entry.Duration,
			Thumbnail: thumbnail,
			Channel:   channel,
		})
	}
	return results, nil
}
