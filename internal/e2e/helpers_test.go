package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"chatd/internal/engine"
	"chatd/internal/engine/enginetest"
	"chatd/internal/httpapi"
	"chatd/internal/manager"
	"chatd/internal/registry"
	"chatd/internal/session"
	"chatd/internal/store"
	"chatd/internal/template"
)

// createTempModelsDir creates a temporary directory populated with empty .gguf files
// and returns the directory path and the list of model IDs (filenames).
func createTempModelsDir(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("write temp model %s: %v", p, err)
		}
	}
	return dir, names
}

// scriptedModels hands out one scripted model per file path, created on
// first load and reused afterwards.
type scriptedModels struct {
	mu     sync.Mutex
	byPath map[string]*enginetest.Model
}

func newScriptedModels() *scriptedModels {
	return &scriptedModels{byPath: make(map[string]*enginetest.Model)}
}

func (s *scriptedModels) get(path string) *enginetest.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byPath[path]
	if !ok {
		m = enginetest.New(filepath.Base(path), 512)
		s.byPath[path] = m
	}
	return m
}

func (s *scriptedModels) load(path string, _ engine.ModelParams) (engine.Model, error) {
	return s.get(path), nil
}

var testTemplate = template.Template{
	Preset:       "test",
	User:         template.Affix{Prefix: "U:", Suffix: "\n"},
	Bot:          template.Affix{Prefix: "A:", Suffix: "\n"},
	StopSequence: "<|end|>",
}

// newServerForDir starts the HTTP API over a manager backed by scripted
// models and a conversation store at dbPath. stop shuts everything down and
// is also registered as cleanup.
func newServerForDir(t *testing.T, modelsDir, defaultModel, dbPath string, models *scriptedModels) (srv *httptest.Server, mgr *manager.Manager, stop func()) {
	t.Helper()
	reg, err := registry.LoadDir(modelsDir)
	if err != nil {
		t.Fatalf("scan models: %v", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mgr = manager.New(manager.Config{
		Registry:     reg,
		DefaultModel: defaultModel,
		Session:      session.Config{Template: testTemplate, Seed: 1},
		Loader:       models.load,
		Store:        st,
	})
	srv = httptest.NewServer(httpapi.NewMux(mgr))
	var once sync.Once
	stop = func() {
		once.Do(func() {
			srv.Close()
			_ = mgr.Close()
			_ = st.Close()
		})
	}
	t.Cleanup(stop)
	return srv, mgr, stop
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
