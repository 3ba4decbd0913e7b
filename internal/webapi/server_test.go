package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/gallery-sweep/internal/medialib"
	"github.com/fpang/gallery-sweep/internal/medialib/localfs"
	"github.com/fpang/gallery-sweep/internal/prefs"
	"github.com/fpang/gallery-sweep/internal/resolve"
	"github.com/fpang/gallery-sweep/internal/triage"
)

type testEnv struct {
	srv   *httptest.Server
	lib   *localfs.Library
	store *triage.Store
}

// newTestEnv serves a directory with a.jpg (oldest) through c.jpg (newest).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		p := filepath.Join(root, name)
		if err := os.WriteFile(p, []byte("img-"+name), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := base.Add(time.Duration(i) * time.Hour)
		os.Chtimes(p, mt, mt)
	}
	lib, err := localfs.New(root, localfs.Options{})
	if err != nil {
		t.Fatal(err)
	}
	notices := &NoticeQueue{}
	store := triage.New(lib, resolve.New(lib), triage.WithNotifier(notices))
	p := prefs.NewFileStore(filepath.Join(t.TempDir(), "prefs.toml"))
	s := New(store, p, WithNotices(notices), WithFileSource(lib))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, lib: lib, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, out
}

func currentID(t *testing.T, state map[string]interface{}) string {
	t.Helper()
	cur, ok := state["current"].(map[string]interface{})
	if !ok {
		return ""
	}
	return cur["id"].(string)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" || resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing security headers: %v", resp.Header)
	}
}

func TestTriageFlow(t *testing.T) {
	env := newTestEnv(t)

	_, state := env.do(t, http.MethodGet, "/api/state", "")
	if state["current"] != nil || state["total"].(float64) != 0 {
		t.Fatalf("initial state = %v", state)
	}

	resp, state := env.do(t, http.MethodPost, "/api/load", `{"append":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load = %d %v", resp.StatusCode, state)
	}
	if currentID(t, state) != "c.jpg" || state["total"].(float64) != 3 {
		t.Fatalf("after load = %v", state)
	}
	cur := state["current"].(map[string]interface{})
	if !strings.HasPrefix(cur["uri"].(string), "file://") || cur["sourceUri"] != "ph://c.jpg" {
		t.Errorf("current asset = %v", cur)
	}

	_, state = env.do(t, http.MethodPost, "/api/mark", `{"id":"c.jpg","status":"discard"}`)
	if state["discarded"].(float64) != 1 {
		t.Errorf("after mark = %v", state)
	}
	_, state = env.do(t, http.MethodPost, "/api/advance", "")
	if currentID(t, state) != "b.jpg" {
		t.Errorf("after advance = %v", state)
	}
	_, state = env.do(t, http.MethodPost, "/api/retreat", "")
	if currentID(t, state) != "c.jpg" {
		t.Errorf("after retreat = %v", state)
	}

	resp, body := env.do(t, http.MethodPost, "/api/delete", "")
	if resp.StatusCode != http.StatusOK || body["deleted"].(float64) != 1 {
		t.Fatalf("delete = %d %v", resp.StatusCode, body)
	}
	state = body["state"].(map[string]interface{})
	if state["total"].(float64) != 2 || currentID(t, state) != "b.jpg" {
		t.Errorf("state after delete = %v", state)
	}
	notices, _ := state["notices"].([]interface{})
	if len(notices) == 0 || !strings.Contains(notices[len(notices)-1].(map[string]interface{})["message"].(string), "Deleted 1 item(s)") {
		t.Errorf("notices = %v", notices)
	}
	if _, err := os.Stat(filepath.Join(env.lib.Root(), "c.jpg")); !os.IsNotExist(err) {
		t.Error("c.jpg still in library")
	}

	_, body = env.do(t, http.MethodPost, "/api/delete", "")
	if body["nothingToDelete"] != true {
		t.Errorf("second delete = %v", body)
	}
}

func TestMarkErrors(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/load", "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"bad status", `{"id":"a.jpg","status":"maybe"}`, http.StatusBadRequest},
		{"unknown id", `{"id":"zzz.jpg","status":"keep"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/mark", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if _, ok := body["error"]; !ok {
				t.Errorf("body = %v, want error field", body)
			}
		})
	}
}

func TestDeleteRefusedIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.lib.SetConfirm(func(ctx context.Context, assets []medialib.Asset) (bool, error) {
		return false, nil
	})
	env.do(t, http.MethodPost, "/api/load", "")
	env.do(t, http.MethodPost, "/api/mark", `{"id":"a.jpg","status":"discard"}`)

	resp, body := env.do(t, http.MethodPost, "/api/delete", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
	_, state := env.do(t, http.MethodGet, "/api/state", "")
	if state["discarded"].(float64) != 1 || state["total"].(float64) != 3 {
		t.Errorf("state after refusal = %v", state)
	}
}

func TestPrefsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, body := env.do(t, http.MethodGet, "/api/prefs", "")
	if body["suppressOnboarding"] != false {
		t.Errorf("initial prefs = %v", body)
	}
	resp, _ := env.do(t, http.MethodPut, "/api/prefs", `{"suppressOnboarding":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put = %d", resp.StatusCode)
	}
	_, body = env.do(t, http.MethodGet, "/api/prefs", "")
	if body["suppressOnboarding"] != true {
		t.Errorf("saved prefs = %v", body)
	}
	resp, _ = env.do(t, http.MethodPut, "/api/prefs", `nope`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad put = %d", resp.StatusCode)
	}
}

func TestMediaEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/load", "")

	resp, err := http.Get(env.srv.URL + "/api/media?id=b.jpg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("media = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	r, _ := env.do(t, http.MethodGet, "/api/media?id=missing.jpg", "")
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("missing = %d", r.StatusCode)
	}
	r, _ = env.do(t, http.MethodGet, "/api/media", "")
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("no id = %d", r.StatusCode)
	}
}

type httpsLibrary struct{}

func (httpsLibrary) ListAssets(ctx context.Context, opts medialib.ListOptions) (medialib.Page, error) {
	return medialib.Page{Assets: []medialib.Asset{{ID: "k.jpg", MediaType: medialib.MediaTypePhoto, URI: "s3://b/k.jpg"}}}, nil
}

func (httpsLibrary) ExtendedInfo(ctx context.Context, a medialib.Asset) (medialib.ExtendedInfo, error) {
	return medialib.ExtendedInfo{LocalURI: "https://b.s3.amazonaws.com/k.jpg?sig=1"}, nil
}

func (httpsLibrary) DeleteAssets(ctx context.Context, assets []medialib.Asset) (bool, error) {
	return false, errors.New("read-only")
}

func TestMediaRedirectsToResolvedURL(t *testing.T) {
	lib := httpsLibrary{}
	store := triage.New(lib, resolve.New(lib))
	srv := httptest.NewServer(New(store, nil).Handler())
	defer srv.Close()
	env := &testEnv{srv: srv, store: store}

	env.do(t, http.MethodPost, "/api/load", "")
	resp, _ := env.do(t, http.MethodGet, "/api/media?id=k.jpg", "")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://b.s3.amazonaws.com/k.jpg?sig=1" {
		t.Errorf("redirect = %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	r, _ := env.do(t, http.MethodGet, "/api/prefs", "")
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("prefs without store = %d", r.StatusCode)
	}

	env.do(t, http.MethodPost, "/api/mark", `{"id":"k.jpg","status":"discard"}`)
	r, body := env.do(t, http.MethodPost, "/api/delete", "")
	if r.StatusCode != http.StatusBadGateway {
		t.Errorf("library error = %d %v", r.StatusCode, body)
	}
}

func TestNoticeQueueBounded(t *testing.T) {
	q := &NoticeQueue{}
	for i := 0; i < maxNotices+5; i++ {
		q.Notify(triage.Notice{Title: "n"})
	}
	if got := len(q.Drain()); got != maxNotices {
		t.Errorf("drained %d, want %d", got, maxNotices)
	}
	if got := len(q.Drain()); got != 0 {
		t.Errorf("second drain = %d", got)
	}
}
