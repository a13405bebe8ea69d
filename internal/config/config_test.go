package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Export.Output != DefaultOutput {
		t.Errorf("Export.Output = %q, want %q", cfg.Export.Output, DefaultOutput)
	}
	if cfg.Export.Root != "/" {
		t.Errorf("Export.Root = %q, want %q", cfg.Export.Root, "/")
	}
	if cfg.Export.Extension != DefaultExtension {
		t.Errorf("Export.Extension = %q, want %q", cfg.Export.Extension, DefaultExtension)
	}
	if cfg.Export.Concurrency != DefaultConcurrency {
		t.Errorf("Export.Concurrency = %d, want %d", cfg.Export.Concurrency, DefaultConcurrency)
	}
	if cfg.Serve.Host != DefaultHost {
		t.Errorf("Serve.Host = %q, want %q", cfg.Serve.Host, DefaultHost)
	}
	if cfg.Serve.Port != DefaultPort {
		t.Errorf("Serve.Port = %d, want %d", cfg.Serve.Port, DefaultPort)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	configJSON := `{
		"name": "my-site",
		"baseURL": "https://example.com",
		"build": {
			"command": "go",
			"args": ["run", "./cmd/site"],
			"env": {"SITE_ENV": "production"}
		},
		"export": {
			"output": "public",
			"concurrency": 8,
			"withContent": true
		},
		"deploy": {
			"bucket": "my-site-bucket",
			"prefix": "www",
			"region": "us-east-1"
		},
		"serve": {
			"port": 4000
		}
	}`

	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Name != "my-site" {
		t.Errorf("Name = %q, want %q", cfg.Name, "my-site")
	}
	if cfg.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://example.com")
	}
	if cfg.Build.Command != "go" {
		t.Errorf("Build.Command = %q, want %q", cfg.Build.Command, "go")
	}
	if len(cfg.Build.Args) != 2 || cfg.Build.Args[1] != "./cmd/site" {
		t.Errorf("Build.Args = %v, want [run ./cmd/site]", cfg.Build.Args)
	}
	if cfg.Build.Env["SITE_ENV"] != "production" {
		t.Errorf("Build.Env[SITE_ENV] = %q, want %q", cfg.Build.Env["SITE_ENV"], "production")
	}
	if cfg.Export.Output != "public" {
		t.Errorf("Export.Output = %q, want %q", cfg.Export.Output, "public")
	}
	if cfg.Export.Concurrency != 8 {
		t.Errorf("Export.Concurrency = %d, want %d", cfg.Export.Concurrency, 8)
	}
	if !cfg.Export.WithContent {
		t.Error("Export.WithContent = false, want true")
	}
	if cfg.Deploy.Bucket != "my-site-bucket" {
		t.Errorf("Deploy.Bucket = %q, want %q", cfg.Deploy.Bucket, "my-site-bucket")
	}
	if cfg.Serve.Port != 4000 {
		t.Errorf("Serve.Port = %d, want %d", cfg.Serve.Port, 4000)
	}

	// Defaults fill in what the file omits.
	if cfg.Serve.Host != DefaultHost {
		t.Errorf("Serve.Host = %q, want default %q", cfg.Serve.Host, DefaultHost)
	}
	if cfg.Export.Root != "/" {
		t.Errorf("Export.Root = %q, want default %q", cfg.Export.Root, "/")
	}

	if cfg.Path() != configPath {
		t.Errorf("Path = %q, want %q", cfg.Path(), configPath)
	}
	if cfg.Dir() != tmpDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir(), tmpDir)
	}
}

func TestLoad_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "E101") {
		t.Errorf("expected E101 error, got: %v", err)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E102") {
		t.Errorf("expected E102 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Serve.Port = 9000
	cfg.Name = "roundtrip"

	// Save should fail without configPath set
	if err := cfg.Save(); err == nil {
		t.Error("expected error when saving without path")
	}

	// SaveTo should work
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	// Reload and verify
	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Serve.Port != 9000 {
		t.Errorf("Serve.Port = %d, want %d", loaded.Serve.Port, 9000)
	}
	if loaded.Name != "roundtrip" {
		t.Errorf("Name = %q, want %q", loaded.Name, "roundtrip")
	}

	// Now Save should work
	loaded.Serve.Port = 9001
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Serve.Port != 9001 {
		t.Errorf("Serve.Port = %d, want %d", reloaded.Serve.Port, 9001)
	}
}

func TestValidate(t *testing.T) {
	cfg := New()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass for valid config: %v", err)
	}

	cfg.Serve.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for negative port")
	}

	cfg.Serve.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for port > 65535")
	}

	cfg = New()
	cfg.Export.Concurrency = -2
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for negative concurrency")
	}

	cfg = New()
	cfg.Export.Root = "posts"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for relative export root")
	}

	cfg = New()
	cfg.Export.Extension = "html"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for extension without dot")
	}

	cfg = New()
	cfg.BaseURL = "example.com/no-scheme"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for relative baseURL")
	}

	cfg.BaseURL = "https://example.com"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass for absolute baseURL: %v", err)
	}
}

func TestServeAddress(t *testing.T) {
	cfg := New()
	cfg.Serve.Port = 8080
	cfg.Serve.Host = "0.0.0.0"

	if addr := cfg.ServeAddress(); addr != "0.0.0.0:8080" {
		t.Errorf("ServeAddress = %q, want %q", addr, "0.0.0.0:8080")
	}
}

func TestServeURL(t *testing.T) {
	cfg := New()

	if url := cfg.ServeURL(); url != "http://localhost:8080" {
		t.Errorf("ServeURL = %q, want %q", url, "http://localhost:8080")
	}
}

func TestOutputPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	// Relative output resolves against the config directory.
	if got := cfg.OutputPath(); got != filepath.Join(tmpDir, "dist") {
		t.Errorf("OutputPath = %q, want %q", got, filepath.Join(tmpDir, "dist"))
	}

	// Absolute output is used as-is.
	cfg.Export.Output = "/absolute/path"
	if got := cfg.OutputPath(); got != "/absolute/path" {
		t.Errorf("OutputPath absolute = %q, want %q", got, "/absolute/path")
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	if _, err := FindProjectRoot(nestedDir); err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find root from nested directory
	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	// Should find root from middle directory
	root, err = FindProjectRoot(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Serve.Port != DefaultPort {
		t.Errorf("Serve.Port = %d, want %d", cfg.Serve.Port, DefaultPort)
	}
	if cfg.Serve.Host != DefaultHost {
		t.Errorf("Serve.Host = %q, want %q", cfg.Serve.Host, DefaultHost)
	}
	if cfg.Export.Output != DefaultOutput {
		t.Errorf("Export.Output = %q, want %q", cfg.Export.Output, DefaultOutput)
	}
	if cfg.Export.Concurrency != DefaultConcurrency {
		t.Errorf("Export.Concurrency = %d, want %d", cfg.Export.Concurrency, DefaultConcurrency)
	}
}
