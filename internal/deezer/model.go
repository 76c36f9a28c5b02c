package deezer

// Track is Nightingale's view of a Deezer track, built from either the
// public search/lookup API or the private getListData response.
type Track struct {
	ID         uint64  `json:"id"`
	Author     string  `json:"author"`
	DurationMS uint64  `json:"duration_ms"`
	Title      string  `json:"title"`
	URI        string  `json:"uri"`
	ArtworkURL string  `json:"artwork_url,omitempty"`
	ISRC       string  `json:"isrc,omitempty"`
}

// Album is an album lookup result with its track listing.
type Album struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Link        string  `json:"link"`
	CoverXL     string  `json:"cover_xl"`
	TrackNumber int     `json:"track_number"`
	DurationMS  uint64  `json:"duration_ms"`
	Author      string  `json:"author"`
	Tracks      []Track `json:"tracks"`
}

// Playlist is a playlist lookup result with its track listing.
type Playlist struct {
	ID          uint64  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Public      bool    `json:"public"`
	Link        string  `json:"link"`
	PictureXL   string  `json:"picture_xl"`
	TrackNumber int     `json:"track_number"`
	DurationMS  uint64  `json:"duration_ms"`
	Creator     string  `json:"creator"`
	Tracks      []Track `json:"tracks"`
}

// publicItem is the shape shared by search results and track lookups from
// api.deezer.com.
type publicItem struct {
	ID       uint64 `json:"id"`
	Artist   struct{ Name string `json:"name"` } `json:"artist"`
	Duration uint64 `json:"duration"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Album    *struct {
		Cover string `json:"cover"`
	} `json:"album,omitempty"`
	ISRC string `json:"isrc,omitempty"`
}

func (it publicItem) toTrack() Track {
	t := Track{
		ID:         it.ID,
		Author:     it.Artist.Name,
		DurationMS: it.Duration * 1000,
		Title:      it.Title,
		URI:        it.Link,
		ISRC:       it.ISRC,
	}
	if it.Album != nil {
		t.ArtworkURL = it.Album.Cover
	}
	return t
}

type publicSearchResponse struct {
	Data  []publicItem `json:"data"`
	Total int          `json:"total"`
}

type publicAlbumResponse struct {
	publicItem
	CoverXL  string `json:"cover_xl"`
	NbTracks int    `json:"nb_tracks"`
	Tracks   struct {
		Data []publicItem `json:"data"`
	} `json:"tracks"`
}

type publicPlaylistResponse struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	Link        string `json:"link"`
	PictureXL   string `json:"picture_xl"`
	NbTracks    int    `json:"nb_tracks"`
	Duration    uint64 `json:"duration"`
	Creator     struct {
		Name string `json:"name"`
	} `json:"creator"`
	Tracks struct {
		Data []publicItem `json:"data"`
	} `json:"tracks"`
}
