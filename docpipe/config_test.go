package docpipe

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "doctext.yaml", []byte(`
max_file_size: 2048
workers: 3
generic_command: /opt/bin/markitdown
generic_args: ["--keep-data-uris"]
generic_timeout: 30s
ocr_language: fra
disable_ocr: true
`))

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxFileSize != 2048 || cfg.Workers != 3 {
		t.Fatalf("sizes = %d/%d", cfg.MaxFileSize, cfg.Workers)
	}
	if cfg.GenericCommand != "/opt/bin/markitdown" || len(cfg.GenericArgs) != 1 || cfg.GenericArgs[0] != "--keep-data-uris" {
		t.Fatalf("generic = %q %v", cfg.GenericCommand, cfg.GenericArgs)
	}
	if cfg.GenericTimeout != 30*time.Second {
		t.Fatalf("generic_timeout = %v", cfg.GenericTimeout)
	}
	if cfg.OCRLanguage != "fra" || !cfg.DisableOCR || cfg.DisableGeneric {
		t.Fatalf("ocr = %q disable_ocr=%v disable_generic=%v", cfg.OCRLanguage, cfg.DisableOCR, cfg.DisableGeneric)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	bad := writeFile(t, dir, "bad.yaml", []byte("workers: [1, 2"))
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("expected parse error")
	}
	neg := writeFile(t, dir, "neg.yaml", []byte("workers: -1"))
	if _, err := LoadConfig(neg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.defaults()
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.GenericCommand != "markitdown" || cfg.OCRCommand != "tesseract" || cfg.OCRLanguage != "eng" {
		t.Errorf("commands = %q %q %q", cfg.GenericCommand, cfg.OCRCommand, cfg.OCRLanguage)
	}
	if cfg.GenericTimeout != 60*time.Second || cfg.OCRTimeout != 2*time.Minute {
		t.Errorf("timeouts = %v %v", cfg.GenericTimeout, cfg.OCRTimeout)
	}
	if cfg.MaxImagePixels != 100_000_000 {
		t.Errorf("MaxImagePixels = %d", cfg.MaxImagePixels)
	}
	if cfg.Logger == nil {
		t.Error("Logger is nil")
	}
}
