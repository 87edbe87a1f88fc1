package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, f := range names {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestLoadDir_FiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.GGUF", "a.gguf", "not-model.txt", "model.bin")
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "a.gguf" || models[1].ID != "b.GGUF" {
		t.Fatalf("unexpected order: %+v", models)
	}
	if models[0].Path != filepath.Join(dir, "a.gguf") {
		t.Fatalf("unexpected path: %s", models[0].Path)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "chatd-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	touch(t, hTmp, "x.gguf")
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDir_MissingDir(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestLoadDir_Metadata(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "OLMoE-1B-7B-0924-Instruct-Q4_K_M.gguf", "TinyLlama.Q8_0.gguf", "plain.gguf")
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string][2]string{
		"OLMoE-1B-7B-0924-Instruct-Q4_K_M.gguf": {"Q4_K_M", "olmoe"},
		"TinyLlama.Q8_0.gguf":                   {"Q8_0", "tinyllama"},
		"plain.gguf":                            {"", ""},
	}
	for _, m := range models {
		w := want[m.ID]
		if m.Quant != w[0] || m.Family != w[1] {
			t.Fatalf("%s: quant=%q family=%q, want %q %q", m.ID, m.Quant, m.Family, w[0], w[1])
		}
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "m.gguf", "other.gguf")
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, ref := range []string{"m.gguf", "m", filepath.Join(dir, "m.gguf")} {
		got, ok := Find(models, ref)
		if !ok || got.ID != "m.gguf" {
			t.Fatalf("Find(%q) = %+v, %v", ref, got, ok)
		}
	}
	if _, ok := Find(models, "missing"); ok {
		t.Fatalf("expected miss")
	}
	if _, ok := Find(models, ""); ok {
		t.Fatalf("expected miss on empty ref")
	}
}
