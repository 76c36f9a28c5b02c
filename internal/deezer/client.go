package deezer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"
)

const (
	getUserURL  = "https://www.deezer.com/ajax/gw-light.php?method=deezer.getUserData&input=3&api_version=1.0&api_token="
	getTrackURL = "https://www.deezer.com/ajax/gw-light.php?method=song.getListData&input=3&api_version=1.0&api_token="
	baseAPIURL  = "https://api.deezer.com/2.0/"
	searchURL   = "https://api.deezer.com/2.0/search?q="
	streamURL   = "https://media.deezer.com/v1/get_url"

	sessionLifetime = 30 * time.Minute
)

// linkPattern matches https://www.deezer.com/{track,album,playlist}/{id},
// with an optional two-letter locale segment.
var linkPattern = regexp.MustCompile(`^https?://(?:www\.)?deezer\.com/(?:[a-z]{2}/)?(track|album|playlist)/(\d+)`)

// ItemKind discriminates a Deezer link target.
type ItemKind string

const (
	KindTrack    ItemKind = "track"
	KindAlbum    ItemKind = "album"
	KindPlaylist ItemKind = "playlist"
)

// ParseLink extracts the kind and numeric id from a deezer.com URL.
func ParseLink(url string) (ItemKind, uint64, bool) {
	m := linkPattern.FindStringSubmatch(url)
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return ItemKind(m[1]), id, true
}

// CanHandle reports whether url is a recognized Deezer track/album/
// playlist link.
func CanHandle(url string) bool {
	_, _, ok := ParseLink(url)
	return ok
}

type session struct {
	licenseToken string
	csrfToken    string
	mediaURL     string
	cookie       string
}

// Client is an anonymous Deezer API client: search and lookups go through
// the public api.deezer.com surface, stream resolution goes through the
// private gw-light endpoints the deezer.com web player itself uses.
type Client struct {
	http *http.Client

	mu      sync.RWMutex
	sess    *session
	validUntil time.Time
}

// NewClient builds a Deezer client using httpClient for all requests (nil
// selects http.DefaultClient).
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient}
}

// maintenance re-initializes the anonymous session if it has expired.
func (c *Client) maintenance(ctx context.Context) error {
	c.mu.RLock()
	stale := time.Now().After(c.validUntil)
	c.mu.RUnlock()
	if !stale {
		return nil
	}
	return c.initialize(ctx)
}

func (c *Client) initialize(ctx context.Context) error {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Errorf("deezer: random token: %w", err)
	}
	token := hex.EncodeToString(buf[:])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getUserURL+token, nil)
	if err != nil {
		return fmt.Errorf("deezer: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deezer: init request: %w", err)
	}
	defer resp.Body.Close()

	var cookie string
	for _, v := range resp.Header.Values("set-cookie") {
		if cookie != "" {
			cookie += "; "
		}
		cookie += v
	}

	var parsed struct {
		Results struct {
			User struct {
				Options struct {
					LicenseToken string `json:"license_token"`
				} `json:"OPTIONS"`
			} `json:"USER"`
			CheckForm string `json:"checkForm"`
			URLMedia  string `json:"URL_MEDIA"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("deezer: decode init response: %w", err)
	}

	c.mu.Lock()
	c.sess = &session{
		licenseToken: parsed.Results.User.Options.LicenseToken,
		csrfToken:    parsed.Results.CheckForm,
		mediaURL:     parsed.Results.URLMedia,
		cookie:       cookie,
	}
	c.validUntil = time.Now().Add(sessionLifetime)
	c.mu.Unlock()
	return nil
}

// Search queries the public Deezer search API.
func (c *Client) Search(ctx context.Context, query string) ([]Track, error) {
	if err := c.maintenance(ctx); err != nil {
		return nil, err
	}
	var out publicSearchResponse
	if err := c.getJSON(ctx, searchURL+url.QueryEscape(query), &out); err != nil {
		return nil, err
	}
	tracks := make([]Track, 0, len(out.Data))
	for _, it := range out.Data {
		tracks = append(tracks, it.toTrack())
	}
	return tracks, nil
}

// GetTrack fetches a single track by id from the public API.
func (c *Client) GetTrack(ctx context.Context, id uint64) (Track, error) {
	var item publicItem
	if err := c.getJSON(ctx, fmt.Sprintf("%strack/%d", baseAPIURL, id), &item); err != nil {
		return Track{}, err
	}
	return item.toTrack(), nil
}

// GetTrackByISRC fetches a single track by its ISRC code from the public
// API.
func (c *Client) GetTrackByISRC(ctx context.Context, isrc string) (Track, error) {
	var item publicItem
	if err := c.getJSON(ctx, baseAPIURL+"track/isrc:"+url.PathEscape(isrc), &item); err != nil {
		return Track{}, err
	}
	return item.toTrack(), nil
}

// GetAlbum fetches an album and its tracks from the public API.
func (c *Client) GetAlbum(ctx context.Context, id uint64) (Album, error) {
	var resp publicAlbumResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%salbum/%d", baseAPIURL, id), &resp); err != nil {
		return Album{}, err
	}
	album := Album{
		ID:          resp.ID,
		Title:       resp.Title,
		Link:        resp.Link,
		CoverXL:     resp.CoverXL,
		TrackNumber: resp.NbTracks,
		DurationMS:  resp.Duration * 1000,
		Author:      resp.Artist.Name,
	}
	for _, it := range resp.Tracks.Data {
		album.Tracks = append(album.Tracks, it.toTrack())
	}
	return album, nil
}

// GetPlaylist fetches a playlist and its tracks from the public API.
func (c *Client) GetPlaylist(ctx context.Context, id uint64) (Playlist, error) {
	var resp publicPlaylistResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%splaylist/%d", baseAPIURL, id), &resp); err != nil {
		return Playlist{}, err
	}
	pl := Playlist{
		ID:          resp.ID,
		Title:       resp.Title,
		Description: resp.Description,
		Public:      resp.Public,
		Link:        resp.Link,
		PictureXL:   resp.PictureXL,
		TrackNumber: resp.NbTracks,
		DurationMS:  resp.Duration * 1000,
		Creator:     resp.Creator.Name,
	}
	for _, it := range resp.Tracks.Data {
		pl.Tracks = append(pl.Tracks, it.toTrack())
	}
	return pl, nil
}

// ResolveStreamURL resolves trackID's current CDN stream URL via the
// private gw-light track-token lookup followed by the media get_url
// call.
func (c *Client) ResolveStreamURL(ctx context.Context, trackID uint64) (string, error) {
	if err := c.maintenance(ctx); err != nil {
		return "", err
	}

	c.mu.RLock()
	sess := c.sess
	c.mu.RUnlock()
	if sess == nil {
		return "", fmt.Errorf("deezer: client not initialized")
	}

	trackToken, err := c.fetchTrackToken(ctx, sess, trackID)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"license_token": sess.licenseToken,
		"media": []map[string]any{{
			"type": "FULL",
			"formats": []map[string]string{
				{"cipher": "BF_CBC_STRIPE", "format": "MP3_256"},
				{"cipher": "BF_CBC_STRIPE", "format": "MP3_128"},
				{"cipher": "BF_CBC_STRIPE", "format": "MP3_MISC"},
			},
		}},
		"track_tokens": []string{trackToken},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("deezer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, streamURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("deezer: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("deezer: stream request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Data []struct {
			Media []struct {
				Sources []struct {
					URL string `json:"url"`
				} `json:"sources"`
			} `json:"media"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("deezer: decode stream response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Media) == 0 || len(out.Data[0].Media[0].Sources) == 0 {
		return "", fmt.Errorf("deezer: no stream source for track %d", trackID)
	}
	return out.Data[0].Media[0].Sources[0].URL, nil
}

func (c *Client) fetchTrackToken(ctx context.Context, sess *session, trackID uint64) (string, error) {
	payload, err := json.Marshal(map[string]any{"sng_ids": []uint64{trackID}})
	if err != nil {
		return "", fmt.Errorf("deezer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, getTrackURL+sess.csrfToken, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("deezer: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", sess.cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("deezer: track token request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Results struct {
			Count int `json:"count"`
			Data  []struct {
				TrackToken string `json:"TRACK_TOKEN"`
			} `json:"data"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("deezer: decode track token response: %w", err)
	}
	if out.Results.Count == 0 || len(out.Results.Data) == 0 {
		return "", fmt.Errorf("deezer: track %d not found", trackID)
	}
	return out.Results.Data[0].TrackToken, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("deezer: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deezer: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("deezer: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("deezer: decode: %w", err)
	}
	return nil
}

// openStream fetches trackID's raw encrypted CDN body.
func (c *Client) openStream(ctx context.Context, trackID uint64) (io.ReadCloser, error) {
	mediaURL, err := c.ResolveStreamURL(ctx, trackID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("deezer: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deezer: cdn fetch: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("deezer: cdn status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
