package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\nmodel: m1\ntemplate: chatml\ntop_k: 20\ntop_p: 0.5\nkeep_partial: true\ncors_origins: [\"http://a\", \"http://b\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.Model != "m1" || cfg.Template != "chatml" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.TopK != 20 || cfg.TopP != 0.5 || !cfg.KeepPartial || len(cfg.CORSOrigins) != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","history_limit":4,"seed":7,"db_path":"/tmp/x.db"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.HistoryLimit != 4 || cfg.Seed != 7 || cfg.DBPath != "/tmp/x.db" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSONC(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.jsonc", `{
  // chat defaults
  "system_prompt": "be brief",
  "max_tokens": 1024, /* window cap */
  "stop_sequence": "<|end|>",
}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SystemPrompt != "be brief" || cfg.MaxTokens != 1024 || cfg.StopSequence != "<|end|>" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\ntemperature=0.2\nsnapshot_compression=\"lz4\"\nrespond_burst=3\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.Temperature != 0.2 || cfg.SnapshotCompression != "lz4" || cfg.RespondBurst != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}
