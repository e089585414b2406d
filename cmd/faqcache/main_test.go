package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/faqcache/internal/models"
)

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"how", "do", "I", "reset"}, "how do I reset"},
		{[]string{"how do I reset"}, "how do I reset"},
		{[]string{" padded ", ""}, "padded"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := joinArgs(tt.args); got != tt.want {
			t.Errorf("joinArgs(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  data_dir: "data"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

// writeDirectConfig writes a config that runs fully in-process with the mock vectorizer.
func writeDirectConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  data_dir: "data"
embedding:
  provider: mock
  dimensions: 32
relevance:
  provider: overlap
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestDirectMode_saveQueryDelete(t *testing.T) {
	configPath := writeDirectConfig(t)
	base := []string{"--server=", "--config", configPath, "--output", "json"}

	out, err := execute(t, append(base, "save", "--answer", "Use the reset link.", "how", "do", "I", "reset", "my", "password")...)
	if err != nil {
		t.Fatalf("save: %v\n%s", err, out)
	}
	var saved models.SaveResult
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("save output is not JSON: %v\n%s", err, out)
	}
	if !saved.Success || saved.DuplicateDetected {
		t.Errorf("unexpected save result: %+v", saved)
	}

	out, err = execute(t, append(base, "query", "how do I reset my password")...)
	if err != nil {
		t.Fatalf("query: %v\n%s", err, out)
	}
	var hit models.QueryResult
	if err := json.Unmarshal([]byte(out), &hit); err != nil {
		t.Fatalf("query output is not JSON: %v\n%s", err, out)
	}
	if !hit.CacheHit || hit.Answer != "Use the reset link." {
		t.Errorf("expected a hit with the saved answer, got %+v", hit)
	}

	out, err = execute(t, append(base, "delete", "how do I reset my password")...)
	if err != nil {
		t.Fatalf("delete: %v\n%s", err, out)
	}
	var deleted models.DeleteResult
	if err := json.Unmarshal([]byte(out), &deleted); err != nil {
		t.Fatalf("delete output is not JSON: %v\n%s", err, out)
	}
	if !deleted.Success || deleted.DeletedCount != 1 {
		t.Errorf("unexpected delete result: %+v", deleted)
	}

	out, err = execute(t, append(base, "history", "--limit", "10")...)
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	if !strings.Contains(out, "delete") || !strings.Contains(out, "save") {
		t.Errorf("history should list both events, got %s", out)
	}
}

func TestInitializeComponents_storageSwitchesFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  data_dir: "data"
  hot_index: false
  legacy_check: false
embedding:
  provider: mock
  dimensions: 32
relevance:
  provider: overlap
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	loaded, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	comps, err := initializeComponents(ctx, loaded, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer comps.Close()

	if comps.Store.HotIndex() {
		t.Error("storage.hot_index: false should select SQL distance scans")
	}
	if err := comps.Engine.Init(ctx); err != nil {
		t.Fatal(err)
	}
	saved, err := comps.Engine.Save(ctx, models.SaveRequest{Question: "where is the office", Answer: "Main street 1"})
	if err != nil || !saved.Success {
		t.Fatalf("save: %+v %v", saved, err)
	}
	res := comps.Engine.Query(ctx, models.QueryRequest{Query: "where is the office"})
	if !res.CacheHit || res.Answer != "Main street 1" {
		t.Errorf("expected a hit through the SQL path, got %+v", res)
	}
}

func TestDirectMode_reconstructFromCSV(t *testing.T) {
	configPath := writeDirectConfig(t)
	corpus := filepath.Join(filepath.Dir(configPath), "faq.csv")
	csv := "Question,Answer\nWhat are your opening hours?,9 to 5\nWhere is the office?,Main street 1\n"
	if err := os.WriteFile(corpus, []byte(csv), 0600); err != nil {
		t.Fatal(err)
	}
	base := []string{"--server=", "--config", configPath, "--output", "json"}

	out, err := execute(t, append(base, "reconstruct", "--corpus", corpus, "--no-backup")...)
	if err != nil {
		t.Fatalf("reconstruct: %v\n%s", err, out)
	}
	var rebuilt models.ReconstructResult
	if err := json.Unmarshal([]byte(out), &rebuilt); err != nil {
		t.Fatalf("reconstruct output is not JSON: %v\n%s", err, out)
	}
	if !rebuilt.Success || rebuilt.ItemsProcessed != 2 {
		t.Errorf("unexpected reconstruct result: %+v", rebuilt)
	}

	out, err = execute(t, append(base, "stats")...)
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	var stats models.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out)
	}
	if stats.TotalEntries != 2 {
		t.Errorf("total entries = %d, want 2", stats.TotalEntries)
	}
}

func TestReconstructRequest_fallsBackToConfig(t *testing.T) {
	configPath := writeDirectConfig(t)
	var err error
	cfg, _, err = loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Corpus.Path = "/srv/faq.xlsx"
	reconstructCorpus, reconstructCollection, reconstructNoBackup = "", "", true
	defer func() { reconstructNoBackup = false }()

	req := reconstructRequest()
	if req.CorpusPath != "/srv/faq.xlsx" {
		t.Errorf("corpus path = %q, want config value", req.CorpusPath)
	}
	if req.BackupExisting == nil || *req.BackupExisting {
		t.Error("--no-backup should disable the backup")
	}
}

func TestOutputFlagRejectsUnknownFormat(t *testing.T) {
	configPath := writeDirectConfig(t)
	_, err := execute(t, "--server=", "--config", configPath, "--output", "yaml", "stats")
	if err == nil {
		t.Error("expected an error for an unknown output format")
	}
	outputFlag = "text"
}
