package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Point the category file somewhere empty so a real one cannot leak in.
	t.Setenv("CATEGORIES_FILE", filepath.Join(t.TempDir(), "none.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ScanInterval != 600*time.Second {
		t.Fatalf("expected 600s scan interval, got %s", cfg.ScanInterval)
	}
	if cfg.CheckInterval != 300*time.Second {
		t.Fatalf("expected 300s check interval, got %s", cfg.CheckInterval)
	}
	if cfg.CheckWarmup != 30*time.Second {
		t.Fatalf("expected 30s warmup, got %s", cfg.CheckWarmup)
	}
	if cfg.FastSaleMinutes != 30 {
		t.Fatalf("expected fast-sale threshold 30, got %d", cfg.FastSaleMinutes)
	}
	if cfg.CategoryDelay != 2*time.Second || cfg.ListingDelay != 1*time.Second {
		t.Fatalf("unexpected delays: %s / %s", cfg.CategoryDelay, cfg.ListingDelay)
	}
	if cfg.DBPath != "fast_seller.db" {
		t.Fatalf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.ListenAddr != ":8000" {
		t.Fatalf("unexpected listen addr %s", cfg.ListenAddr)
	}

	if len(cfg.Categories) != 2 {
		t.Fatalf("expected 2 default categories, got %d", len(cfg.Categories))
	}
	if cfg.Categories[0].Key != "hobby" || cfg.Categories[1].Key != "fishing" {
		t.Fatalf("unexpected default categories: %+v", cfg.Categories)
	}
}

func TestLoad_DurationFormats(t *testing.T) {
	t.Setenv("CATEGORIES_FILE", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("SCAN_INTERVAL", "120")
	t.Setenv("CHECK_INTERVAL", "2m30s")
	t.Setenv("CHECK_WARMUP", "garbage")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.ScanInterval != 120*time.Second {
		t.Fatalf("bare seconds: expected 120s, got %s", cfg.ScanInterval)
	}
	if cfg.CheckInterval != 2*time.Minute+30*time.Second {
		t.Fatalf("duration string: expected 2m30s, got %s", cfg.CheckInterval)
	}
	if cfg.CheckWarmup != 30*time.Second {
		t.Fatalf("unparseable value should fall back to default, got %s", cfg.CheckWarmup)
	}
}

func TestLoad_CategoryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	data := `- key: audio
  name: オーディオ
  url: https://netmall.hardoff.co.jp/cate/00010003/
- key: camera
  name: カメラ
  url: https://netmall.hardoff.co.jp/cate/00010002/
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write category file: %v", err)
	}
	t.Setenv("CATEGORIES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(cfg.Categories) != 2 {
		t.Fatalf("expected 2 categories from file, got %d", len(cfg.Categories))
	}
	if cfg.Categories[0].Key != "audio" || cfg.Categories[0].Name != "オーディオ" {
		t.Fatalf("unexpected first category: %+v", cfg.Categories[0])
	}
	if cfg.Categories[1].Key != "camera" {
		t.Fatalf("file order must be preserved, got %+v", cfg.Categories[1])
	}
}

func TestLoad_CategoryFileRejectsIncompleteEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	if err := os.WriteFile(path, []byte("- name: 名前だけ\n"), 0o644); err != nil {
		t.Fatalf("write category file: %v", err)
	}
	t.Setenv("CATEGORIES_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an entry without key and url")
	}
}
