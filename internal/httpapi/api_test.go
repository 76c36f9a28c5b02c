package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"nightingale/internal/config"
	"nightingale/internal/driver"
	"nightingale/internal/metrics"
	"nightingale/internal/session"
	"nightingale/internal/source"
)

const testPassword = "hunter2"

type fakeHandle struct{ id uint64 }

func (h *fakeHandle) ID() uint64                                { return h.id }
func (h *fakeHandle) Stop()                                     {}
func (h *fakeHandle) SetVolume(float64)                         {}
func (h *fakeHandle) Pause()                                    {}
func (h *fakeHandle) Resume()                                   {}
func (h *fakeHandle) Seek(context.Context, time.Duration) error { return nil }

type fakeDriver struct {
	events chan driver.Event
	next   atomic.Uint64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{events: make(chan driver.Event, 16)}
}

func (d *fakeDriver) Connect(context.Context, driver.ConnectInfo) error { return nil }
func (d *fakeDriver) Leave(context.Context) error                       { return nil }
func (d *fakeDriver) Events() <-chan driver.Event                       { return d.events }
func (d *fakeDriver) Play(context.Context, io.Reader) (driver.Handle, error) {
	return &fakeHandle{id: d.next.Add(1)}, nil
}

func newTestAPI(t *testing.T) (*API, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sources := source.New(nil, nil, nil, nil)
	sessions := session.New(sources, func(uint64) driver.Driver { return newFakeDriver() }, session.Options{})
	a := New(sessions, nil, metrics.New(), config.ServerConfig{Password: testPassword})

	router, err := a.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return a, router
}

func do(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", testPassword)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body %q is not a message: %v", w.Body.String(), err)
	}
	return body.Message
}

func TestAuthRejectsMissingPassword(t *testing.T) {
	_, router := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != wwwAuthenticate {
		t.Fatalf("WWW-Authenticate = %q, want %q", got, wwwAuthenticate)
	}
}

func TestAuthRejectsWrongPassword(t *testing.T) {
	_, router := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	req.Header.Set("Authorization", "wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestInfoWithAuth(t *testing.T) {
	_, router := newTestAPI(t)

	w := do(router, http.MethodGet, "/api/v1/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp InfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if resp.System.GoVersion == "" {
		t.Fatal("go_version missing from info payload")
	}
}

func newSessionWithPlayer(t *testing.T, a *API, guild uint64) string {
	t.Helper()
	s := a.sessions.Create(42)
	s.Playback().PlayerFor(guild)
	return s.ID
}

func TestSetVolumeBounds(t *testing.T) {
	a, router := newTestAPI(t)
	id := newSessionWithPlayer(t, a, 1)

	cases := []struct {
		volume string
		status int
	}{
		{"0", http.StatusOK},
		{"512", http.StatusOK},
		{"200", http.StatusOK},
		{"513", http.StatusBadRequest},
		{"-1", http.StatusBadRequest},
		{"abc", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := do(router, http.MethodPatch, "/"+id+"/players/1/set_volume/"+tc.volume, nil)
		if w.Code != tc.status {
			t.Fatalf("volume %q: status = %d, want %d", tc.volume, w.Code, tc.status)
		}
		if tc.status == http.StatusBadRequest {
			if got := message(t, w); got != "Volume must be an integer between 0 and 512" {
				t.Fatalf("volume %q: message = %q", tc.volume, got)
			}
		}
	}
}

func TestSeekWithoutTrackIsNotPresent(t *testing.T) {
	a, router := newTestAPI(t)
	id := newSessionWithPlayer(t, a, 1)

	w := do(router, http.MethodPatch, "/"+id+"/players/1/seek/1000", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestPlayerRoutesUnknownSession(t *testing.T) {
	_, router := newTestAPI(t)

	w := do(router, http.MethodGet, "/no-such-session/players/1/info", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (NotPresent)", w.Code)
	}
}

func TestPlayBytesSource(t *testing.T) {
	a, router := newTestAPI(t)
	id := newSessionWithPlayer(t, a, 1)

	body, _ := json.Marshal(map[string]any{
		"force_play": false,
		"source": map[string]any{
			"type": "bytes",
			"data": map[string]any{
				"track": map[string]any{"title": "inline blob"},
				"bytes": []byte("not really audio"),
			},
		},
	})

	w := do(router, http.MethodPost, "/"+id+"/players/1/play", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var meta struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.Title != "inline blob" {
		t.Fatalf("title = %q, want caller override", meta.Title)
	}
}

func TestPlayRejectsMalformedSource(t *testing.T) {
	a, router := newTestAPI(t)
	id := newSessionWithPlayer(t, a, 1)

	body := []byte(`{"force_play": false, "source": {"type": "nonsense", "data": {}}}`)
	w := do(router, http.MethodPost, "/"+id+"/players/1/play", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDeezerSearchParamValidation(t *testing.T) {
	_, router := newTestAPI(t)

	w := do(router, http.MethodGet, "/api/v1/search/deezer/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("no params: status = %d, want 400", w.Code)
	}

	w = do(router, http.MethodGet, "/api/v1/search/deezer/search?query=a&id=1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("both params: status = %d, want 400", w.Code)
	}
	if got := message(t, w); got != "`query`, `id` and `isrc` are mutually exclusive" {
		t.Fatalf("message = %q", got)
	}
}

func TestWSConnectRequiresUserID(t *testing.T) {
	_, router := newTestAPI(t)

	w := do(router, http.MethodGet, "/ws", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
