package httpapi

import (
	"encoding/json"
	"fmt"

	"nightingale/internal/driver"
	"nightingale/internal/track"
)

// PlayOptions is the body of POST /:session/players/:guild/play.
type PlayOptions struct {
	// ForcePlay pauses whatever is playing and starts the provided track
	// immediately; the paused track resumes once the forced one ends.
	ForcePlay bool       `json:"force_play"`
	Source    PlaySource `json:"source"`
}

// PlaySource is the tagged client-supplied source descriptor:
//
//	{"type": "link",  "data": {"force_ytdlp": false, "link": "..."}}
//	{"type": "http",  "data": {"track": {...}, "link": "..."}}
//	{"type": "bytes", "data": {"track": {...}, "bytes": "<base64>"}}
//
// Decoding is two-pass: peek the discriminator, then unmarshal the matching
// variant.
type PlaySource struct {
	inner track.PlaySource
}

type linkData struct {
	ForceYtdlp bool   `json:"force_ytdlp"`
	Link       string `json:"link"`
}

type httpData struct {
	Track *track.Meta `json:"track"`
	Link  string      `json:"link"`
}

type bytesData struct {
	Track *track.Meta `json:"track"`
	Bytes []byte      `json:"bytes"`
}

// UnmarshalJSON implements the two-pass tagged decode.
func (p *PlaySource) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	switch envelope.Type {
	case "link":
		var d linkData
		if err := json.Unmarshal(envelope.Data, &d); err != nil {
			return err
		}
		if d.Link == "" {
			return fmt.Errorf("link source requires a link")
		}
		p.inner = track.PlaySource{Kind: track.KindLink, ForceExternal: d.ForceYtdlp, URL: d.Link}
	case "http":
		var d httpData
		if err := json.Unmarshal(envelope.Data, &d); err != nil {
			return err
		}
		if d.Link == "" {
			return fmt.Errorf("http source requires a link")
		}
		p.inner = track.PlaySource{Kind: track.KindHTTP, URL: d.Link, Meta: d.Track}
	case "bytes":
		var d bytesData
		if err := json.Unmarshal(envelope.Data, &d); err != nil {
			return err
		}
		if len(d.Bytes) == 0 {
			return fmt.Errorf("bytes source requires a non-empty payload")
		}
		p.inner = track.PlaySource{Kind: track.KindBytes, Data: d.Bytes, Meta: d.Track}
	case "":
		return fmt.Errorf("source type missing")
	default:
		return fmt.Errorf("unknown source type %q", envelope.Type)
	}
	return nil
}

// MarshalJSON re-emits the tagged wire form, so a decoded source
// round-trips.
func (p PlaySource) MarshalJSON() ([]byte, error) {
	var envelope struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}
	switch p.inner.Kind {
	case track.KindLink:
		envelope.Type = "link"
		envelope.Data = linkData{ForceYtdlp: p.inner.ForceExternal, Link: p.inner.URL}
	case track.KindHTTP:
		envelope.Type = "http"
		envelope.Data = httpData{Track: p.inner.Meta, Link: p.inner.URL}
	case track.KindBytes:
		envelope.Type = "bytes"
		envelope.Data = bytesData{Track: p.inner.Meta, Bytes: p.inner.Data}
	default:
		return nil, fmt.Errorf("unknown source kind %d", p.inner.Kind)
	}
	return json.Marshal(envelope)
}

// Descriptor returns the decoded runtime descriptor.
func (p PlaySource) Descriptor() track.PlaySource { return p.inner }

// ConnectionInfo is the optional body of PATCH .../update. A present body
// connects the player's driver to the given channel; an absent body
// disconnects it.
type ConnectionInfo struct {
	ChannelID uint64 `json:"channel_id"`
	Endpoint  string `json:"endpoint"`
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

func (ci *ConnectionInfo) toDriver(guildID uint64) *driver.ConnectInfo {
	return &driver.ConnectInfo{
		GuildID:   guildID,
		ChannelID: ci.ChannelID,
		Endpoint:  ci.Endpoint,
		Token:     ci.Token,
		SessionID: ci.SessionID,
	}
}
