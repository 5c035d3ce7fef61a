package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/database"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/speech"
	"github.com/iabetor/speakd/internal/storage"
	"github.com/iabetor/speakd/internal/transcode"
	"github.com/iabetor/speakd/internal/tts"
)

var testKeywords = tts.Keywords{
	Female: []string{"zira", "hazel", "aria", "jenny", "sonia", "female"},
	Male:   []string{"david", "mark", "guy", "ryan", "male"},
}

type fakeEngine struct {
	mu     sync.Mutex
	fail   bool
	voices []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "zira", Name: "Microsoft Zira Desktop"},
		{ID: "david", Name: "Microsoft David Desktop"},
	}, nil
}

func (f *fakeEngine) SynthesizeToFile(ctx context.Context, text string, opts tts.Options, path string) error {
	f.mu.Lock()
	f.voices = append(f.voices, opts.Voice)
	f.mu.Unlock()
	if f.fail {
		return errors.New("engine down")
	}
	return audio.WriteWAVFile(path, audio.Float32ToBytes([]float32{0.1, 0.2, 0.3, 0.4}), audio.Mono16(16000))
}

type mp3Backend struct{}

func (mp3Backend) Name() string                    { return "fake-mp3" }
func (mp3Backend) Probe(ctx context.Context) error { return nil }
func (mp3Backend) Transcode(ctx context.Context, wavPath, mp3Path string) error {
	return os.WriteFile(mp3Path, []byte{0xFF, 0xFB, 0x90, 0x64, 0x00, 0x00}, 0644)
}

type fakeHistory struct {
	records []database.Record
	limit   int
}

func (h *fakeHistory) Recent(ctx context.Context, limit int) ([]database.Record, error) {
	h.limit = limit
	return h.records, nil
}

type testServer struct {
	handler http.Handler
	engine  *fakeEngine
	outDir  string
}

func newTestServer(t *testing.T, tc *transcode.Adapter, history HistoryReader) *testServer {
	t.Helper()
	out := filepath.Join(t.TempDir(), "audio")
	dir, err := storage.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	engine := &fakeEngine{}
	svc := speech.NewService(speech.Config{
		Engine:     engine,
		Keywords:   testKeywords,
		Dir:        dir,
		Transcoder: tc,
	})
	h := NewRouter(RouterConfig{
		Service:  svc,
		History:  history,
		Defaults: speech.Defaults{Voice: "female", Rate: 200},
	})
	return &testServer{handler: h, engine: engine, outDir: out}
}

func postSpeak(h http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSpeak_Example(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	rec := postSpeak(s.handler, url.Values{"text": {"Hello world"}, "voice": {"male"}, "rate": {"150"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "audio/") {
		t.Errorf("Content-Type = %q, want audio/*", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty body")
	}
}

func TestSpeak_WAVWhenTranscoderUnavailable(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	rec := postSpeak(s.handler, url.Values{"text": {"hi"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != audio.MimeWAV {
		t.Errorf("Content-Type = %q, want %q", ct, audio.MimeWAV)
	}
	if got := audio.SniffMime(rec.Body.Bytes()); got != audio.MimeWAV {
		t.Errorf("body should be wav, sniffed %q", got)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "speech_") || !strings.Contains(cd, ".wav") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}

func TestSpeak_MP3WhenTranscoderAvailable(t *testing.T) {
	s := newTestServer(t, transcode.WithBackend(mp3Backend{}), nil)

	rec := postSpeak(s.handler, url.Values{"text": {"hi"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != audio.MimeMP3 {
		t.Errorf("Content-Type = %q, want %q", ct, audio.MimeMP3)
	}
	if got := audio.SniffMime(rec.Body.Bytes()); got != audio.MimeMP3 {
		t.Errorf("body should start with mp3 magic, got % x", rec.Body.Bytes())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".mp3") {
		t.Errorf("filename should end in .mp3: %q", cd)
	}
}

func TestSpeak_Multipart(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	body := "--b\r\nContent-Disposition: form-data; name=\"text\"\r\n\r\nhello\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/speak", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestSpeak_BadInput(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	cases := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing text", url.Values{}, "No text provided."},
		{"whitespace text", url.Values{"text": {"  \t\n "}}, "No text provided."},
		{"bad rate", url.Values{"text": {"hi"}, "rate": {"fast"}}, "Invalid rate."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := postSpeak(s.handler, c.form)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != c.want {
				t.Errorf("body = %q, want %q", got, c.want)
			}
		})
	}

	entries, _ := os.ReadDir(s.outDir)
	if len(entries) != 0 {
		t.Errorf("rejected requests should not create files, found %d", len(entries))
	}
}

func TestSpeak_SynthesisFailure(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)
	s.engine.fail = true

	rec := postSpeak(s.handler, url.Values{"text": {"hi"}})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Speech synthesis failed." {
		t.Errorf("body = %q", got)
	}
}

func TestSpeak_MaleAndFemaleUseDifferentVoices(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	postSpeak(s.handler, url.Values{"text": {"a"}, "voice": {"male"}})
	postSpeak(s.handler, url.Values{"text": {"a"}, "voice": {"FEMALE"}})

	if len(s.engine.voices) != 2 {
		t.Fatalf("expected 2 synth calls, got %d", len(s.engine.voices))
	}
	if s.engine.voices[0] != "david" || s.engine.voices[1] != "zira" {
		t.Errorf("unexpected voices %v", s.engine.voices)
	}
}

func TestSpeak_ConcurrentRequests(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	const n = 50
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := postSpeak(s.handler, url.Values{"text": {fmt.Sprintf("request %d", i)}})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	for i, c := range codes {
		if c != http.StatusOK {
			t.Fatalf("request %d: status %d", i, c)
		}
	}
	entries, err := os.ReadDir(s.outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("expected %d distinct files, got %d", n, len(entries))
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/speak"`) || !strings.Contains(body, `value="200"`) {
		t.Errorf("index page missing form: %s", body)
	}

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

// brokenWriter 模拟客户端中途断开，所有写入都失败。
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *brokenWriter) WriteHeader(int) {}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestIndex_RenderErrorLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.L
	logger.L = zap.New(core).Sugar()
	t.Cleanup(func() { logger.L = prev })

	s := newTestServer(t, transcode.Disabled(), nil)
	s.handler.ServeHTTP(&brokenWriter{}, httptest.NewRequest(http.MethodGet, "/", nil))

	if logs.FilterMessageSnippet("渲染首页失败").Len() != 1 {
		t.Errorf("expected render failure to be logged, got %+v", logs.All())
	}
}

func TestSpeak_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speak", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, transcode.WithBackend(mp3Backend{}), nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" || body["engine"] != "fake" || body["transcoder"] != "available" {
		t.Errorf("unexpected healthz %v", body)
	}
}

func TestListVoices(t *testing.T) {
	s := newTestServer(t, transcode.Disabled(), nil)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/voices", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var voices []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Gender string `json:"gender"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &voices); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(voices) != 2 || voices[0].Gender != "female" || voices[1].Gender != "male" {
		t.Errorf("unexpected voices %+v", voices)
	}
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, transcode.Disabled(), nil)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("limits", func(t *testing.T) {
		h := &fakeHistory{records: []database.Record{{ID: "abc", MimeType: audio.MimeWAV, CreatedAt: time.Now()}}}
		s := newTestServer(t, transcode.Disabled(), h)

		cases := []struct {
			query string
			code  int
			limit int
		}{
			{"", http.StatusOK, defaultHistoryLimit},
			{"?limit=5", http.StatusOK, 5},
			{"?limit=100000", http.StatusOK, maxHistoryLimit},
			{"?limit=-1", http.StatusBadRequest, 0},
			{"?limit=abc", http.StatusBadRequest, 0},
		}
		for _, c := range cases {
			h.limit = 0
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history"+c.query, nil))
			if rec.Code != c.code {
				t.Errorf("%q: status = %d, want %d", c.query, rec.Code, c.code)
			}
			if h.limit != c.limit {
				t.Errorf("%q: limit = %d, want %d", c.query, h.limit, c.limit)
			}
		}
	})
}

func TestRecovery(t *testing.T) {
	h := withRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestSpeak_RateLimited(t *testing.T) {
	dir, err := storage.Open(filepath.Join(t.TempDir(), "audio"))
	if err != nil {
		t.Fatal(err)
	}
	svc := speech.NewService(speech.Config{Engine: &fakeEngine{}, Keywords: testKeywords, Dir: dir})
	h := NewRouter(RouterConfig{
		Service:   svc,
		Defaults:  speech.Defaults{Voice: "female", Rate: 200},
		RateLimit: 0.001,
		RateBurst: 1,
	})

	if rec := postSpeak(h, url.Values{"text": {"first"}}); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := postSpeak(h, url.Values{"text": {"second"}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// 限流只作用于 /speak
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz should not be rate limited, status = %d", rec.Code)
	}
}
