package core

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `{
  "server": {"bind_address": "0.0.0.0", "bind_port": 8080},
  "problems": [
    {
      "id": 1,
      "name": "add",
      "type": "standard",
      "misc": {"packing": [[1, 2]]},
      "cases": [
        {"score": 50, "input_file": "a.in", "answer_file": "a.ans", "time_limit": 1000000},
        {"score": 50, "input_file": "b.in", "answer_file": "b.ans", "time_limit": 1000000}
      ]
    }
  ],
  "languages": [
    {"name": "cpp", "file_name": "main.cpp", "command": ["/usr/bin/g++", "%INPUT%", "-o", "%OUTPUT%"]}
  ]
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("REDIS_URL")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.BindAddress != "0.0.0.0" || cfg.Server.BindPort != 8080 {
		t.Fatalf("explicit server settings should survive, got %+v", cfg.Server)
	}
	if cfg.RedisURL == "" || cfg.DatabaseURL == "" {
		t.Fatal("expected default DSNs to be populated")
	}
}

func TestLoadConfigDefaultsBindAddressAndPort(t *testing.T) {
	path := writeConfig(t, `{"problems": [], "languages": []}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.BindAddress != "127.0.0.1" || cfg.Server.BindPort != 12345 {
		t.Fatalf("got %+v, want the documented defaults", cfg.Server)
	}
}

func TestLoadConfigRejectsDuplicatePackingIndex(t *testing.T) {
	body := `{
		"problems": [{"id": 1, "name": "p", "type": "standard",
			"misc": {"packing": [[1, 2], [2, 3]]},
			"cases": [{"score": 10}, {"score": 10}, {"score": 10}]}],
		"languages": []
	}`
	path := writeConfig(t, body)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for a case index reused across packing groups")
	}
}

func TestLoadConfigEnvOverridesOperationalSettings(t *testing.T) {
	path := writeConfig(t, `{"problems": [], "languages": []}`)
	t.Setenv("DATABASE_URL", "postgres://test/db")
	t.Setenv("REDIS_URL", "redis://test:6379/1")
	t.Setenv("WORKER_CONCURRENCY", "9")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://test/db" {
		t.Fatalf("got %q", cfg.DatabaseURL)
	}
	if cfg.RedisURL != "redis://test:6379/1" {
		t.Fatalf("got %q", cfg.RedisURL)
	}
	if cfg.WorkerConcurrency != 9 {
		t.Fatalf("got %d, want 9", cfg.WorkerConcurrency)
	}
}

func TestNewProblemSetBuildsLookups(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ps := NewProblemSet(cfg)
	problem, ok := ps.Problem(1)
	if !ok {
		t.Fatal("expected problem 1 to be present")
	}
	if len(problem.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(problem.Cases))
	}
	if len(problem.Misc.Packing) != 1 {
		t.Fatalf("expected packing groups to carry through, got %+v", problem.Misc)
	}

	if _, ok := ps.Problem(999); ok {
		t.Fatal("unknown problem id should not resolve")
	}

	lang, ok := ps.Language("cpp")
	if !ok || lang.FileName != "main.cpp" {
		t.Fatalf("got %+v, ok=%v", lang, ok)
	}

	if ids := ps.AllProblemIDs(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("got %v, want [1]", ids)
	}
}
